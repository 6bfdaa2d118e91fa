package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tgbot "github.com/go-telegram/bot"
	"github.com/spf13/cobra"

	"github.com/edgard/wisewhisper/internal/bot"
	"github.com/edgard/wisewhisper/internal/bot/handlers"
	"github.com/edgard/wisewhisper/internal/bot/tasks"
	"github.com/edgard/wisewhisper/internal/config"
	"github.com/edgard/wisewhisper/internal/database"
	"github.com/edgard/wisewhisper/internal/llm"
	"github.com/edgard/wisewhisper/internal/logger"
	"github.com/edgard/wisewhisper/internal/prompt"
	"github.com/edgard/wisewhisper/internal/telegram"
)

func newServeCommand(opts *config.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, *opts, cmd.OutOrStdout())
		},
	}
}

// serve initializes every component in dependency order and blocks until ctx
// is cancelled or a component fails. The configuration is loaded first, so a
// missing token stops the process before anything else starts. Logs go to out.
func serve(ctx context.Context, opts config.Options, out io.Writer) error {
	cfg, err := config.LoadConfig(opts)
	if err != nil {
		slog.Error("Failed to load configuration", "path", opts.ConfigPath, "error", err)
		return err
	}

	log := logger.NewLogger(out, cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	var (
		stats   prompt.StatsRecorder
		taskMap = map[string]tasks.ScheduledTaskFunc{}
	)
	if cfg.Database.Path != "" {
		db, err := database.NewDB(cfg.Database.Path)
		if err != nil {
			log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
			return err
		}
		defer database.CloseDB(db)
		store := database.NewStore(db, log)
		stats = store
		taskMap = tasks.RegisterAllTasks(tasks.TaskDeps{
			Logger: log,
			Store:  store,
			Config: cfg,
		})
	} else {
		log.Info("Generation stats disabled, no database path configured")
	}

	gen, err := llm.New(ctx, cfg.Model, log)
	if err != nil {
		log.Error("Failed to initialize language model", "backend", cfg.Model.Backend, "error", err)
		return err
	}
	log.Info("Language model ready", "backend", gen.Name(), "model", cfg.Model.Name)

	adapter := prompt.New(gen, adapterOptions(cfg, stats), log)

	hDeps := handlers.HandlerDeps{
		Logger:    log,
		Config:    cfg,
		Responder: adapter,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log), handlers.Recover(log)),
		tgbot.WithDefaultHandler(handlers.NewMessageHandler(hDeps)),
		tgbot.WithErrorsHandler(func(err error) {
			log.Error("Telegram polling error", "error", err)
		}),
	}
	if cfg.Telegram.APIURL != "" {
		botOpts = append(botOpts, tgbot.WithServerURL(cfg.Telegram.APIURL))
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return err
	}

	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return err
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	if cfg.Telegram.DropPendingUpdates {
		if _, err := tg.DeleteWebhook(ctx, &tgbot.DeleteWebhookParams{DropPendingUpdates: true}); err != nil {
			log.Warn("Failed to drop pending updates", "error", err)
		}
	}

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return err
	}
	if err := telegram.PublishCommands(ctx, tg, cmdHandlers); err != nil {
		log.Warn("Failed to publish bot commands", "error", err)
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, taskMap)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return err
	}
	app := bot.NewBot(log, tg, sched)

	log.Info("Starting bot...")
	if err := app.Run(ctx); err != nil {
		log.Error("Bot stopped due to error", "error", err)
		return err
	}

	log.Info("Bot stopped gracefully.")
	return nil
}

func adapterOptions(cfg *config.Config, stats prompt.StatsRecorder) prompt.Options {
	return prompt.Options{
		MaxTokens:  cfg.Model.MaxTokens,
		Candidates: cfg.Model.Candidates,
		Timeout:    cfg.Model.Timeout,
		Fallback:   cfg.Messages.Fallback,
		Stats:      stats,
	}
}
