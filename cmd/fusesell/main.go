package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fusesell/fusesell/internal/config"
	"github.com/fusesell/fusesell/internal/content"
	"github.com/fusesell/fusesell/internal/delivery"
	"github.com/fusesell/fusesell/internal/logging"
	"github.com/fusesell/fusesell/internal/pipeline"
	"github.com/fusesell/fusesell/internal/schedule"
	"github.com/fusesell/fusesell/internal/stage"
	"github.com/fusesell/fusesell/internal/stages"
	"github.com/fusesell/fusesell/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "fusesell",
	Short: "FuseSell - sales outreach pipeline",
	Long:  `FuseSell runs the multi-stage outreach pipeline: prospect intake, data preparation, lead scoring, drafting, and scheduled delivery.`,
	// No RunE - defaults to showing help when no subcommand is provided.
}

var (
	flagDBPath   string
	flagLogLevel string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "database file path (default ~/.fusesell/fusesell.db)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(continueCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles the wired runtime the subcommands share.
type app struct {
	cfg    Config
	logger *slog.Logger
	store  store.Store
}

func openApp() (*app, error) {
	cfg := loadConfig()

	handler := logging.NewCorrelationHandler(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	logger := slog.New(handler)

	if err := os.MkdirAll(fusesellDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.NewLibSQLStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &app{cfg: cfg, logger: logger, store: st}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close store", slog.Any("error", err))
	}
}

// runner wires the stage registry and pipeline runner over the app's
// store.
func (a *app) runner() (*pipeline.Runner, error) {
	scheduler := schedule.NewScheduler(a.store, schedule.NewResolver(a.store, a.logger), a.logger, time.Now)

	reg := stage.NewRegistry()
	if err := stages.RegisterAll(reg, stages.Deps{
		Store:     a.store,
		Scheduler: scheduler,
		Gateway:   delivery.NewLogGateway(a.logger),
		Generator: content.NewTemplateGenerator(),
		Policy:    stages.NewSendPolicy(a.store, a.logger),
		Logger:    a.logger,
	}); err != nil {
		return nil, err
	}

	validator, err := config.NewValidator()
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(a.store, reg, validator, a.logger), nil
}
