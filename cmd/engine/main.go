package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"bmsengine/internal/config"
	"bmsengine/internal/logger"
	"bmsengine/internal/processor"
)

func main() {
	configPath := flag.String("config", os.Getenv("BMSENGINE_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.LogLevel)
	log := logger.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// create processor
	p := processor.New(cfg)

	if err := p.Run(ctx); err != nil {
		log.Error().Err(err).Msg("processor exited")
		os.Exit(1)
	}
	log.Info().Msg("exited")
}
