package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	apiPkg "github.com/tickd-io/tickd/internal/api"
	"github.com/tickd-io/tickd/internal/config"
	"github.com/tickd-io/tickd/internal/logbuf"
	"github.com/tickd-io/tickd/internal/platform/discord"
	"github.com/tickd-io/tickd/internal/scheduler"
	"github.com/tickd-io/tickd/internal/ticket"
	"github.com/tickd-io/tickd/internal/transcript"
)

func main() {
	configPath := flag.String("config", "", "Path to config JSON file")
	envFile := flag.String("env-file", ".env", "Path to .env file (ignored if missing)")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	// Set up logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logBuf := logbuf.New(2000)
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logbuf.NewHandler(jsonHandler, logBuf))

	// Load config (two modes: file, env). A .env file feeds the env mode.
	if err := godotenv.Load(*envFile); err == nil {
		logger.Debug("env file loaded", "path", *envFile)
	}
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("tickd starting", "close_policy", cfg.Tickets.ClosePolicy)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Ticket store
	os.MkdirAll(cfg.Tickets.DataDir, 0o755)
	dbPath := cfg.Tickets.DataDir + "/tickets.db"
	store, err := ticket.NewSQLiteStore(dbPath)
	if err != nil {
		logger.Error("failed to open ticket store", "path", dbPath, "error", err)
		os.Exit(1)
	}
	// store is cleaned up when the process exits

	// 2. Discord session + ticket manager
	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		logger.Error("failed to init discord session", "error", err)
		os.Exit(1)
	}

	exporter := &transcript.Exporter{
		Dir:         cfg.Transcripts.Dir,
		PageSize:    cfg.Transcripts.PageSize,
		MaxMessages: cfg.Transcripts.MaxMessages,
		Logger:      logger.With("component", "transcript"),
	}
	manager := ticket.New(session, ticket.NewSequence(), store, exporter, ticket.Options{
		CategoryName:        cfg.Tickets.Category,
		ArchiveCategoryName: cfg.Tickets.ArchiveCategory,
		StaffRoleName:       cfg.Tickets.StaffRole,
		ClosePolicy:         ticket.ClosePolicy(cfg.Tickets.ClosePolicy),
		ConfirmTTL:          cfg.ConfirmTTL(),
	}, logger.With("component", "ticket"))

	// 3. Maintenance jobs
	sched := scheduler.New(logger.With("component", "scheduler"))
	sched.Add("confirm-sweep", "@every 1m", func() {
		manager.SweepConfirmations()
	})
	if retention := cfg.Retention(); retention > 0 {
		sched.Add("transcript-retention", "@hourly", func() {
			if n, err := exporter.Prune(retention); err != nil {
				logger.Warn("transcript prune failed", "error", err)
			} else if n > 0 {
				logger.Info("transcripts pruned", "removed", n)
			}
		})
	}
	go safeGo(logger, "scheduler", func() { sched.Start(ctx) })

	// 4. Discord bot
	bot := discord.NewBot(session, manager, cfg.Discord.GuildID, logger.With("component", "discord"))
	botErr := make(chan error, 1)
	go safeGo(logger, "discord-bot", func() {
		if err := bot.Start(ctx); err != nil && ctx.Err() == nil {
			botErr <- err
		}
	})

	// 5. Admin API server
	apiSrv := apiPkg.NewServer(store, apiPkg.Config{
		Host: cfg.API.Host,
		Port: cfg.API.Port,
		Key:  cfg.API.Key,
	}, logger.With("component", "api"), logBuf)
	go safeGo(logger, "api-server", func() { apiSrv.Start(ctx) })
	logger.Info("api server started", "port", cfg.API.Port)

	// 6. Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig)
	case err := <-botErr:
		logger.Error("discord bot failed", "error", err)
		cancel()
		os.Exit(1)
	}
	cancel()
	logger.Info("tickd stopped")
}

// safeGo runs fn with panic recovery.
func safeGo(logger *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("goroutine panicked", "name", name, "panic", fmt.Sprintf("%v", r))
		}
	}()
	fn()
}
