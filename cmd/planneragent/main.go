package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"planner-agent/internal/bot"
	"planner-agent/internal/calendar"
	"planner-agent/internal/config"
	"planner-agent/internal/greeting"
	"planner-agent/internal/logging"
	"planner-agent/internal/repository"
	"planner-agent/internal/server"
	"planner-agent/internal/service"
	"planner-agent/internal/supervisor"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "planneragent",
		Short:         "Personal planner agent: todos, reminders, special days and anniversaries over Telegram",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: $CONFIG_PATH or ./config.yaml)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(importCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the agent (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	return cfg, nil
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireTelegram(); err != nil {
		return err
	}
	logger := logging.Logger()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	db, err := repository.NewDB(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer repository.Close(db)

	// Polling needs a client that outlives the long-poll wait; sends use the
	// delivery timeout.
	pollAPI, err := bot.NewAPI(cfg.Telegram.Token, 90*time.Second)
	if err != nil {
		return err
	}
	sendAPI, err := bot.NewAPI(cfg.Telegram.Token, cfg.Delivery.Timeout)
	if err != nil {
		return err
	}

	bridge := service.NewDeliveryBridge(
		bot.NewTelegramSender(sendAPI, cfg.Delivery.RatePerSecond),
		service.BridgeConfig{Recipients: cfg.Telegram.OwnerIDs, Timeout: cfg.Delivery.Timeout},
		logger,
	)
	bridge.Start()
	defer bridge.Close()

	greeter := greeting.NewClient(greeting.Config{
		APIKey:  cfg.Greeting.APIKey,
		BaseURL: cfg.Greeting.BaseURL,
		Model:   cfg.Greeting.Model,
		Timeout: cfg.Greeting.Timeout,
	}, logger)

	reminders := service.NewReminderService(
		service.NewSchedulerService(loc, logging.Component("cron")),
		bridge,
		calendar.New(loc),
		greeter,
		service.ReminderConfig{
			Location:   loc,
			DailyAt:    cfg.Scheduler.DailyAt,
			LeadTime:   cfg.Scheduler.LeadTime,
			LatePolicy: cfg.Scheduler.LatePolicy,
		},
		logger,
	)
	defer reminders.Stop()

	store := service.NewEntryStore(repository.NewEntryRepository(db), reminders, loc, logger)
	if err := store.Load(ctx); err != nil {
		return err
	}
	service.Rehydrate(store, reminders, time.Now(), loc, logger)
	if err := reminders.StartDailyJob(store); err != nil {
		return fmt.Errorf("start daily job: %w", err)
	}

	tree := supervisor.New(logger, supervisor.TreeConfig{})
	tree.Add(bot.New(pollAPI, store, reminders, repository.NewOwnerRepository(db), bot.Options{Owners: cfg.Telegram.OwnerIDs, Model: cfg.Greeting.Model}, logger))
	if cfg.HTTP.Addr != "" {
		tree.Add(server.NewService(cfg.HTTP.Addr, server.NewRouter(store, reminders), logger))
	}

	logger.Info().Str("tz", loc.String()).Int("owners", len(cfg.Telegram.OwnerIDs)).Msg("planner agent started")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}
	logger.Info().Msg("shutdown complete")
	return nil
}
