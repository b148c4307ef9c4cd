package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fusesell/fusesell/internal/config"
)

var continueCmd = &cobra.Command{
	Use:   "continue [process-id]",
	Short: "Continue a prior run with a reviewer action",
	Args:  cobra.ExactArgs(1),
	RunE:  runContinue,
}

var (
	contOrgID     string
	contTeamID    string
	contCustomer  string
	contAction    string
	contDraftID   string
	contRecipient string
	contRecName   string
	contSendNow   bool
	contReason    string
)

func init() {
	continueCmd.Flags().StringVar(&contOrgID, "org", "", "organization ID (required)")
	continueCmd.Flags().StringVar(&contTeamID, "team", "", "team ID")
	continueCmd.Flags().StringVar(&contCustomer, "customer", "", "customer ID")
	continueCmd.Flags().StringVar(&contAction, "action", "draft_write", "action: draft_write, draft_rewrite, send, close")
	continueCmd.Flags().StringVar(&contDraftID, "draft", "", "draft ID (required for draft_rewrite and send)")
	continueCmd.Flags().StringVar(&contRecipient, "recipient", "", "recipient email address (required for send)")
	continueCmd.Flags().StringVar(&contRecName, "recipient-name", "", "recipient display name")
	continueCmd.Flags().BoolVar(&contSendNow, "now", false, "send immediately instead of scheduling")
	continueCmd.Flags().StringVar(&contReason, "reason", "", "close reason (for close)")
	continueCmd.MarkFlagRequired("org")
}

func runContinue(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.store.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	r, err := a.runner()
	if err != nil {
		return err
	}

	result, err := r.Execute(cmd.Context(), &config.RunConfig{
		OrgID:             contOrgID,
		TeamID:            contTeamID,
		CustomerID:        contCustomer,
		ContinueProcessID: args[0],
		Action:            contAction,
		SelectedDraftID:   contDraftID,
		RecipientAddress:  contRecipient,
		RecipientName:     contRecName,
		SendImmediately:   contSendNow,
		CloseReason:       contReason,
	})
	if err != nil {
		return err
	}
	return printJSON(result)
}
