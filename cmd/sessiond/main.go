package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/example/ride-search/internal/autocomplete"
	"github.com/example/ride-search/internal/config"
	"github.com/example/ride-search/internal/history"
	httpapi "github.com/example/ride-search/internal/http"
	"github.com/example/ride-search/internal/ingest"
	"github.com/example/ride-search/internal/logging"
	"github.com/example/ride-search/internal/participation"
	"github.com/example/ride-search/internal/payments"
	"github.com/example/ride-search/internal/search"
)

func main() {
	cfg, err := config.LoadGatewayConfig()
	logger := logging.New(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	deps := httpapi.Deps{
		Exec: search.NewClient(cfg.SearchAPIURL, cfg.SearchTimeout, logger),
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		deps.Redis = rdb
	}

	cityFetcher := autocomplete.NewHTTPFetcher(cfg.CityAPIURL)
	var cache autocomplete.Cache
	if rdb != nil {
		cache = autocomplete.NewRedisCache(rdb, cfg.CityCacheTTL)
	} else {
		lruCache, err := autocomplete.NewLRUCache(cfg.CityCacheSize)
		if err != nil {
			logger.Error("building city cache", "error", err)
			os.Exit(1)
		}
		cache = lruCache
	}
	deps.Cities = &autocomplete.CachedFetcher{Fetcher: cityFetcher, Cache: cache}

	if cfg.PGDSN != "" {
		pg, err := history.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("connecting to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		deps.History = pg
	} else {
		deps.History = history.NewMemoryStore(0)
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		deps.Producer = producer
	}

	if cfg.ParticipationAPIURL != "" {
		var holder payments.SeatHolder
		if os.Getenv("STRIPE_API_KEY") != "" {
			holder = payments.NewStripeSeatHolder()
		}
		deps.Participation = participation.NewClient(cfg.ParticipationAPIURL, holder, logger)
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewServer(cfg, logger, deps),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("session gateway listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("gateway stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("gateway stopped")
}
