package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"casesync/internal/config"
	"casesync/internal/engine"
	"casesync/internal/legacy"
	"casesync/internal/logging"
	"casesync/internal/remote"
	"casesync/internal/remote/realtime"
	"casesync/internal/store"
	"casesync/internal/store/snapshots"
)

func buildLogger(format string) logging.Logger {
	switch format {
	case "zerolog":
		return logging.NewZerologLogger(zerolog.New(os.Stderr).With().Timestamp().Logger())
	case "json":
		return logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	default:
		return logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	}
}

func main() {
	cfg := config.LoadConfig()
	log := buildLogger(cfg.LogFormat)
	ctx := context.Background()

	repo, err := snapshots.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Error(ctx, "cannot open snapshot database", "dsn", cfg.DatabaseDSN, "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	api := remote.NewHTTPClient(cfg.RemoteEndpoint, cfg.AccessToken)
	if !api.SessionActive() {
		if err := signIn(ctx, api); err != nil {
			log.Error(ctx, "sign-in failed", "error", err)
			os.Exit(1)
		}
	}

	st := store.New(repo, log)
	mirror := legacy.NewClient(cfg.LegacyEndpoint, log)
	listener := realtime.NewListener(cfg.RealtimeEndpoint, api.Token, log)

	eng := engine.New(engine.Options{
		Store:              st,
		Remote:             api,
		Legacy:             mirror,
		Events:             listener,
		Logger:             log,
		RevalidateInterval: cfg.RevalidateInterval,
		GraceWindow:        cfg.GraceWindow,
		Retention:          cfg.Retention,
	})
	if err := eng.Init(ctx); err != nil {
		log.Error(ctx, "engine init failed", "error", err)
		os.Exit(1)
	}

	log.Info(ctx, "casesync agent started", "cases", len(eng.GetAll()))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := eng.Shutdown(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "shutdown incomplete", "error", err)
	}
}
