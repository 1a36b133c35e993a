// Command console runs the cafe admin console API over either a SurrealDB
// instance or the in-memory store for local development.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/lumacafe/console/pkg/console"
	"github.com/lumacafe/console/pkg/store"
	"github.com/lumacafe/console/pkg/store/memstore"
	"github.com/lumacafe/console/pkg/store/surreal"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to TOML config file")
		addr       = flag.String("addr", "", "listen address (overrides config)")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if *debug {
		log = log.Level(zerolog.DebugLevel)
	} else {
		log = log.Level(zerolog.InfoLevel)
	}

	cfg, err := console.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rs store.RemoteStore
	switch cfg.Store.Backend {
	case "surreal":
		s, err := surreal.New(ctx, surreal.Config{
			URL:       cfg.Store.URL,
			Namespace: cfg.Store.Namespace,
			Database:  cfg.Store.Database,
			Username:  cfg.Store.Username,
			Password:  cfg.Store.Password,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("connect store")
		}
		defer func() {
			if err := s.Close(context.Background()); err != nil {
				log.Warn().Err(err).Msg("close store")
			}
		}()
		rs = s
		log.Info().Str("url", cfg.Store.URL).Msg("using surrealdb store")
	case "memory":
		rs = memstore.New()
		log.Info().Msg("using in-memory store")
	}

	app := console.New(cfg, rs, log)
	if err := app.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("server")
	}
}
