package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/autopost-bot/internal/bot"
	"github.com/autopost-bot/internal/channels"
	"github.com/autopost-bot/internal/config"
	"github.com/autopost-bot/internal/draft"
	"github.com/autopost-bot/internal/publisher"
	"github.com/autopost-bot/internal/report"
	"github.com/autopost-bot/internal/scheduler"
	"github.com/autopost-bot/internal/storage/sqlite"
	"github.com/autopost-bot/internal/telegram"
	"github.com/autopost-bot/pkg/logger"
	"github.com/autopost-bot/pkg/ratelimit"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "autopost-bot",
		Short: "Scheduled auto-posting bot for Telegram channels",
		Long: `Runs the auto-post daemon: the admin authoring flow, the
publication scheduler with timed retraction, and the channel pool
subscriber refresh.`,
		RunE: runBot,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runBot(cmd *cobra.Command, args []string) error {
	var err error

	// Load config
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Initialize logger
	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	log.Info().Msg("Starting autopost bot")

	// Storage
	repo, err := sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Rate limiter and gateway
	limiter := ratelimit.NewMultiLimiter()
	limiter.AddLimiter(ratelimit.LimiterTelegramSend, cfg.RateLimit.MessagesPerSecond, cfg.RateLimit.Burst)
	limiter.AddLimiter(ratelimit.LimiterTelegramAPI, 5, 5)

	gateway, err := telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.Debug, limiter, log)
	if err != nil {
		return err
	}

	// Publishing pipeline
	pub := publisher.New(gateway, repo, log)
	ret := publisher.NewRetractor(gateway, repo, log)
	reports := report.NewEmitter(gateway, cfg.Telegram.AdminID, log)

	sched := scheduler.New(repo, pub, ret, reports, log)

	// Authoring
	builder := draft.NewBuilder(repo, sched, draft.Defaults{
		Hour:          cfg.Publishing.DefaultHour,
		Minute:        cfg.Publishing.DefaultMinute,
		Daily:         cfg.Publishing.DefaultDaily,
		DurationHours: cfg.Publishing.DefaultDurationHours,
	}, log)

	channelMgr := channels.NewManager(repo, gateway, log)
	app := bot.New(gateway, cfg.Telegram.AdminID, builder, channelMgr, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Recover pending runs from storage
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// Subscriber refresh runs out-of-band on a cron cadence
	c := cron.New(cron.WithLogger(cronLogger{log}))
	_, err = c.AddFunc(cfg.Scheduler.RefreshCron, func() {
		if _, err := channelMgr.RefreshSubscribers(context.Background()); err != nil {
			log.Error().Err(err).Msg("Subscriber refresh failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule subscriber refresh: %w", err)
	}
	c.Start()
	log.Info().Str("cron", cfg.Scheduler.RefreshCron).Msg("Subscriber refresh scheduled")

	// Admin update loop
	go app.Run(ctx)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down")
	cancel()
	c.Stop()
	sched.Stop()

	return nil
}

// cronLogger adapts our logger for cron
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info().Msgf(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Msgf(msg, keysAndValues...)
}
