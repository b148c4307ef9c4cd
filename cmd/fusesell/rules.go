package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fusesell/fusesell/internal/schedule"
	"github.com/fusesell/fusesell/internal/store"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage scheduling rules",
}

var rulesGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the effective scheduling rule for an org or team",
	RunE:  runRulesGet,
}

var rulesSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Create or update a scheduling rule",
	RunE:  runRulesSet,
}

var (
	ruleOrgID    string
	ruleTeamID   string
	ruleName     string
	ruleStart    string
	ruleEnd      string
	ruleDelay    int
	ruleTimezone string
	ruleFollowUp int
)

func init() {
	rulesCmd.AddCommand(rulesGetCmd, rulesSetCmd)

	rulesGetCmd.Flags().StringVar(&ruleOrgID, "org", "", "organization ID (required)")
	rulesGetCmd.Flags().StringVar(&ruleTeamID, "team", "", "team ID")
	rulesGetCmd.MarkFlagRequired("org")

	rulesSetCmd.Flags().StringVar(&ruleOrgID, "org", "", "organization ID (required)")
	rulesSetCmd.Flags().StringVar(&ruleTeamID, "team", "", "team ID")
	rulesSetCmd.Flags().StringVar(&ruleName, "name", "default", "rule name")
	rulesSetCmd.Flags().StringVar(&ruleStart, "start", "08:00", "business hours start (HH:MM)")
	rulesSetCmd.Flags().StringVar(&ruleEnd, "end", "20:00", "business hours end (HH:MM)")
	rulesSetCmd.Flags().IntVar(&ruleDelay, "delay", 2, "default send delay in hours")
	rulesSetCmd.Flags().StringVar(&ruleTimezone, "tz", "Asia/Bangkok", "IANA timezone")
	rulesSetCmd.Flags().IntVar(&ruleFollowUp, "follow-up-delay", 120, "follow-up delay in hours")
	rulesSetCmd.MarkFlagRequired("org")
}

func runRulesGet(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	rule := schedule.NewResolver(a.store, a.logger).Resolve(cmd.Context(), ruleOrgID, ruleTeamID)
	return printJSON(rule)
}

func runRulesSet(cmd *cobra.Command, args []string) error {
	if _, err := time.Parse("15:04", ruleStart); err != nil {
		return fmt.Errorf("invalid --start %q: want HH:MM", ruleStart)
	}
	if _, err := time.Parse("15:04", ruleEnd); err != nil {
		return fmt.Errorf("invalid --end %q: want HH:MM", ruleEnd)
	}
	if _, err := time.LoadLocation(ruleTimezone); err != nil {
		return fmt.Errorf("invalid --tz %q: %w", ruleTimezone, err)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.store.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	rule := &store.SchedulingRule{
		ID:                 uuid.NewString(),
		OrgID:              ruleOrgID,
		TeamID:             ruleTeamID,
		Name:               ruleName,
		Active:             true,
		BusinessHoursStart: ruleStart,
		BusinessHoursEnd:   ruleEnd,
		DefaultDelayHours:  ruleDelay,
		Timezone:           ruleTimezone,
		FollowUpDelayHours: ruleFollowUp,
	}
	if err := a.store.UpsertSchedulingRule(cmd.Context(), rule); err != nil {
		return err
	}
	return printJSON(rule)
}
