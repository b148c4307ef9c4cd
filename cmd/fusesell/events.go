package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fusesell/fusesell/internal/schedule"
	"github.com/fusesell/fusesell/internal/store"
	"github.com/fusesell/fusesell/pkg/schema"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Manage scheduled delivery events",
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled events",
	RunE:  runEventsList,
}

var eventsCancelCmd = &cobra.Command{
	Use:   "cancel [event-id]",
	Short: "Cancel a scheduled event",
	Args:  cobra.ExactArgs(1),
	RunE:  runEventsCancel,
}

var (
	evOrgID   string
	evProcess string
	evStatus  string
	evDue     bool
	evLimit   int
)

func init() {
	eventsCmd.AddCommand(eventsListCmd, eventsCancelCmd)

	eventsListCmd.Flags().StringVar(&evOrgID, "org", "", "filter by organization ID")
	eventsListCmd.Flags().StringVar(&evProcess, "process", "", "filter by process ID")
	eventsListCmd.Flags().StringVar(&evStatus, "status", "", "filter by status: pending, executed, cancelled, failed")
	eventsListCmd.Flags().BoolVar(&evDue, "due", false, "only events due now")
	eventsListCmd.Flags().IntVar(&evLimit, "limit", 50, "maximum events to list")
}

func runEventsList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	filter := store.EventFilter{
		OrgID:     evOrgID,
		ProcessID: evProcess,
		Limit:     evLimit,
	}
	if evStatus != "" {
		status := schema.EventStatus(evStatus)
		filter.Status = &status
	}
	if evDue {
		now := time.Now().UTC()
		filter.DueBefore = &now
	}

	events, err := a.store.ListScheduledEvents(cmd.Context(), filter)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tSTATUS\tSCHEDULED\tRECIPIENT\tPROCESS")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			ev.ID, ev.Kind, ev.Status,
			ev.ScheduledTime.UTC().Format(time.RFC3339),
			ev.RecipientAddress, ev.ProcessID,
		)
	}
	return w.Flush()
}

func runEventsCancel(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	scheduler := schedule.NewScheduler(a.store, schedule.NewResolver(a.store, a.logger), a.logger, time.Now)
	if err := scheduler.Cancel(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("event %s cancelled\n", args[0])
	return nil
}
