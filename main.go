package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"sysclean-bot/bot"
	"sysclean-bot/classifier"
	"sysclean-bot/config"
	"sysclean-bot/moderation"
	"sysclean-bot/scheduler"
	"sysclean-bot/settings"
	"sysclean-bot/stats"
	"sysclean-bot/storage"
)

const reportJob = "daily-report"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "sysclean",
		Short:        "Telegram bot that removes system messages from group chats",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(configPath)
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", config.GetConfigPath(),
		"config file path (env SYSCLEAN_CONFIG)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Start polling Telegram and moderating chats",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runBot(configPath)
			},
		},
		newClassifyCommand(&configPath),
		newJournalCommand(&configPath),
	)

	return cmd
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}

func runBot(configPath string) error {
	// Set up structured logging before config so load errors are logged too
	setupLogging("info")

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "error", err)
		return err
	}
	setupLogging(cfg.LogLevel)
	slog.Info("starting system message cleaner", "profile", cfg.Profile, "config", configPath)

	// Initialize database
	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		slog.Error("failed to initialize database", "path", cfg.DBPath, "error", err)
		return err
	}
	defer db.Close()
	slog.Info("database initialized", "path", cfg.DBPath)

	// Initialize Telegram bot
	httpClient := &http.Client{Timeout: time.Duration(cfg.PollTimeoutSecs+10) * time.Second}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.TelegramToken, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		slog.Error("failed to initialize Telegram bot", "error", err)
		return err
	}
	tg := bot.NewTelegram(api)
	slog.Info("telegram bot initialized", "username", api.Self.UserName, "id", api.Self.ID)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			slog.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	// Initialize moderation
	var settingsOpts []settings.Option
	if cfg.PersistSettings {
		settingsOpts = append(settingsOpts, settings.WithStore(&settingsStoreAdapter{db}))
	}
	st := settings.New(cfg.InitialSettings(), settingsOpts...)
	if err := st.Load(ctx); err != nil {
		slog.Warn("failed to load stored settings, using configured defaults", "error", err)
	}

	tracker := stats.NewTracker()
	executor := moderation.NewExecutor(tg, tg, tracker,
		moderation.WithSelfID(tg.SelfID()),
		moderation.WithProfile(cfg.ClassifierProfile()),
		moderation.WithNotifyTimeout(cfg.NotifyTimeout),
		moderation.WithJournal(&journalAdapter{db}),
	)
	engine := moderation.NewEngine(classifier.New(cfg.Tables()), st, tracker, executor)
	slog.Info("moderation ready", "profile", engine.Profile(), "settings", engine.Settings())

	// Initialize scheduler
	sched, err := scheduler.NewScheduler(cfg.Timezone)
	if err != nil {
		slog.Error("failed to initialize scheduler", "timezone", cfg.Timezone, "error", err)
		return err
	}

	app := &App{
		cfg:       cfg,
		db:        db,
		engine:    engine,
		sender:    tg,
		retention: time.Duration(cfg.JournalRetentionDays) * 24 * time.Hour,
		now:       time.Now,
	}

	if err := sched.Schedule(reportJob, cfg.ReportTime, func() {
		app.runDailyReport(context.Background())
	}); err != nil {
		slog.Error("failed to schedule daily report", "error", err)
		return err
	}
	sched.Start()
	defer sched.Stop()
	slog.Info("daily report scheduled", "time", cfg.ReportTime, "timezone", cfg.Timezone, "chat_id", cfg.ReportChatID)

	// Run the bot
	commands := bot.NewCommandHandler(tg, tg, engine, tg.SelfID())
	router := bot.NewRouter(commands, engine)
	dispatcher := bot.NewDispatcher(api, router, bot.WithPollTimeout(cfg.PollTimeoutSecs))

	slog.Info("starting bot polling")
	dispatcher.Run(ctx)

	snap := engine.StatsSnapshot()
	slog.Info("bot stopped", "deleted", snap.Deleted, "errors", snap.Errors, "uptime", snap.Uptime.String())
	return nil
}

// Sender sends plain text messages.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// App holds the dependencies of scheduled jobs.
type App struct {
	cfg       *config.Config
	db        *storage.DB
	engine    *moderation.Engine
	sender    Sender
	retention time.Duration
	now       func() time.Time
}

// runDailyReport prunes the journal, logs the counters and sends a summary to
// the report chat when one is configured.
func (a *App) runDailyReport(ctx context.Context) {
	now := a.now()

	pruned, err := a.db.PruneEntriesBefore(ctx, now.Add(-a.retention))
	if err != nil {
		slog.Warn("failed to prune journal", "error", err)
	}

	actions, err := a.db.CountActionsSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		slog.Warn("failed to count journal actions", "error", err)
	}

	snap := a.engine.StatsSnapshot()
	slog.Info("daily report",
		"deleted", snap.Deleted,
		"errors", snap.Errors,
		"efficiency", snap.Efficiency,
		"actions_24h", actions,
		"pruned", pruned,
	)

	if a.cfg.ReportChatID == 0 {
		return
	}
	if err := a.sender.SendMessage(ctx, a.cfg.ReportChatID, bot.FormatDailyReport(snap, actions, pruned)); err != nil {
		slog.Warn("failed to send daily report", "chat_id", a.cfg.ReportChatID, "error", err)
	}
}

func printErr(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}
