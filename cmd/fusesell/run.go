package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fusesell/fusesell/internal/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the outreach pipeline for one prospect",
	RunE:  runRun,
}

var (
	runOrgID     string
	runTeamID    string
	runCustomer  string
	runInput     string
	runSkip      []string
	runStopAfter string
)

func init() {
	runCmd.Flags().StringVar(&runOrgID, "org", "", "organization ID (required)")
	runCmd.Flags().StringVar(&runTeamID, "team", "", "team ID")
	runCmd.Flags().StringVar(&runCustomer, "customer", "", "customer ID")
	runCmd.Flags().StringVar(&runInput, "input", "-", "prospect input JSON file, or - for stdin")
	runCmd.Flags().StringSliceVar(&runSkip, "skip", nil, "stage names to skip")
	runCmd.Flags().StringVar(&runStopAfter, "stop-after", "", "stop after this stage")
	runCmd.MarkFlagRequired("org")
}

func runRun(cmd *cobra.Command, args []string) error {
	input, err := readInput(runInput)
	if err != nil {
		return err
	}

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
		OrgID:      runOrgID,
		TeamID:     runTeamID,
		CustomerID: runCustomer,
		SkipStages: runSkip,
		StopAfter:  runStopAfter,
		InputData:  input,
	})
	if err != nil {
		return err
	}
	return printJSON(result)
}

func readInput(path string) (json.RawMessage, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("input is not valid JSON")
	}
	return json.RawMessage(data), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
