package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lectern-ai/lectern/internal/app"
	"github.com/lectern-ai/lectern/internal/config"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle SIGINT/SIGTERM for graceful shutdown
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c
		cancel()
	}()

	cfg := config.LoadConfig()
	application, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer application.Close()

	go func() {
		if err := application.UploadReaper.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("upload reaper stopped")
		}
	}()

	go func() {
		if err := application.Server.Start(); err != nil {
			log.Error().Err(err).Msg("http server failed")
			cancel()
		}
	}()

	log.Info().Msg("lectern is running")
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := application.Server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
