package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"njord/internal/asset"
	"njord/internal/config"
	"njord/internal/feed"
	"njord/internal/net"
	"njord/internal/pair"
	"njord/internal/store"
)

func main() {
	envPath := flag.String("env", "", "Path to an optional .env file")
	flag.Parse()

	cfg := config.LoadFromEnv(*envPath)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	st, err := store.Open(cfg.Pair.DataDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Pair.DataDir).Msg("unable to open order store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close order store")
		}
	}()

	tradingPair, err := pair.New(
		asset.Class(cfg.Pair.BaseAsset),
		asset.Class(cfg.Pair.QuoteAsset),
		st,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to create trading pair")
	}
	if err := tradingPair.Restore(); err != nil {
		log.Fatal().Err(err).Msg("unable to restore order book")
	}

	// Setup the market data feed and the TCP gateway.
	hub := feed.NewHub()
	tradingPair.SetReporter(hub)
	srv := net.New(cfg.Gateway.Address, cfg.Gateway.Port, tradingPair)

	go func() {
		if err := hub.Run(ctx, cfg.Feed.Address); err != nil {
			log.Error().Err(err).Msg("feed exited")
		}
	}()
	go srv.Run(ctx)

	// Block on running the server.
	<-ctx.Done()
}
