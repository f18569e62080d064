package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/keibalab/umadata/internal/config"
	"github.com/keibalab/umadata/internal/datadir"
	"github.com/keibalab/umadata/internal/httpapi"
	"github.com/keibalab/umadata/internal/index"
	"github.com/keibalab/umadata/internal/logx"
	"github.com/keibalab/umadata/internal/query"
	"github.com/keibalab/umadata/internal/target"
	"github.com/keibalab/umadata/internal/training"
)

func main() {
	var (
		configPath = flag.String("config", "", "optional YAML config file (env vars otherwise)")
		addr       = flag.String("addr", "", "listen address (overrides config)")
		racesRoot  = flag.String("races", "", "scraped race document root (overrides config)")
		targetRoot = flag.String("target", "", "fixed-width export root (overrides config)")
		prebuild   = flag.Bool("prebuild", false, "build the reverse index before serving")
	)
	flag.Parse()

	logger := logx.NewLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *racesRoot != "" {
		cfg.RacesRoot = *racesRoot
	}
	if *targetRoot != "" {
		cfg.TargetRoot = *targetRoot
	}

	idx, err := index.NewStore(cfg.RacesRoot, cfg.IndexStateDir, cfg.IndexHorizonYears)
	if err != nil {
		logger.Fatal().Err(err).Msg("open index store")
	}
	idx.SetLogger(func(format string, args ...any) {
		logger.Info().Msgf(format, args...)
	})
	defer idx.Close()

	reader := target.NewReader(cfg.TargetRoot, logger.With().Str("component", "reader").Logger())
	reader.SetDirTTL(cfg.DirCacheTTL)

	gen := training.NewGenerator(reader, cfg.RacesRoot, func(regNum string) string {
		if h, ok := reader.FindHorse(regNum); ok {
			return h.Name
		}
		return ""
	}, logger.With().Str("component", "training").Logger())

	svc := query.New(idx, reader, gen, logger.With().Str("component", "query").Logger())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *prebuild {
		if err := idx.Build(); err != nil {
			logger.Fatal().Err(err).Msg("build index")
		}
		stats := idx.Stats()
		logger.Info().
			Int("horses", stats.Horses).
			Int("races", stats.Races).
			Msg("index prebuilt")
	}

	if cfg.Watch {
		if _, err := datadir.Watch(ctx, reader, logger.With().Str("component", "watch").Logger(),
			cfg.RacesRoot, cfg.TargetRoot); err != nil {
			logger.Warn().Err(err).Msg("data root watch failed, relying on cache TTL")
		}
	}

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      httpapi.NewRouter(logger, svc, idx),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("api server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http server shutdown error")
	}
	logger.Info().Msg("shutdown complete")
}
