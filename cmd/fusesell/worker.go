package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fusesell/fusesell/internal/delivery"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the delivery worker until interrupted",
	RunE:  runWorker,
}

var workerPoll string

func init() {
	workerCmd.Flags().StringVar(&workerPoll, "poll", delivery.DefaultPollSpec, "cron spec for the delivery poll")
}

func runWorker(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.store.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	w, err := delivery.NewWorker(a.store, delivery.NewLogGateway(a.logger), workerPoll, a.logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("delivery worker running", "poll", workerPoll)

	<-ctx.Done()
	return w.Stop()
}
