package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"radiobot/internal/config"
	"radiobot/internal/discord"
	"radiobot/internal/logger"
	"radiobot/internal/storage"
	"radiobot/internal/web"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Setup(cfg.LogLevel, cfg.LogFile)

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	defer store.Close()

	bot, err := discord.New(cfg, store)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build bot")
	}

	go func() {
		if err := web.NewServer(bot, store).Run(ctx, cfg.WebAddr); err != nil {
			log.Error().Err(err).Msg("admin server error")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- bot.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
		<-errCh
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("bot error")
		}
		cancel()
	}

	log.Info().Msg("bot exited cleanly")
}
