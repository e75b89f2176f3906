package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/ride-search/internal/config"
	"github.com/example/ride-search/internal/history"
	"github.com/example/ride-search/internal/logging"
)

var (
	eventsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_search_events_consumed_total",
		Help: "Total search events consumed",
	})
	eventsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_search_events_invalid_total",
		Help: "Total malformed search events received",
	})
	historyWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_history_writes_total",
		Help: "Total search records persisted",
	})
	historyErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_history_errors_total",
		Help: "Total history persistence failures",
	})
)

func init() {
	prometheus.MustRegister(eventsConsumed, eventsInvalid, historyWrites, historyErrors)
}

func main() {
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", "", "address to serve prometheus metrics on (overrides METRICS_ADDR)")
	flag.Parse()

	cfg, err := config.LoadConsumerConfig()
	logger := logging.New(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}

	var store history.Store
	if cfg.PGDSN != "" {
		pg, err := history.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("connecting to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		store = pg
	} else {
		store = history.NewMemoryStore(0)
		logger.Warn("PG_DSN not set, keeping history in memory")
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	sink := &recordSink{store: store, redis: rdb}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(200)
			w.Write([]byte("ok"))
		})
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := rdb.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		logger.Info("metrics/health listening", "addr", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaTopic,
		GroupID:  cfg.KafkaGroup,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	defer func() {
		_ = r.Close()
		_ = rdb.Close()
	}()

	logger.Info("consumer listening", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers, "group", cfg.KafkaGroup)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down consumer")
				return
			}
			logger.Warn("kafka read error", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		eventsConsumed.Inc()

		var rec history.Record
		if err := json.Unmarshal(m.Value, &rec); err != nil {
			eventsInvalid.Inc()
			logger.Warn("invalid search event", "error", err)
			continue
		}

		if err := persistWithRetry(ctx, sink, &rec, 3, 200*time.Millisecond); err != nil {
			historyErrors.Inc()
			logger.Warn("persisting search record failed", "record_id", rec.ID, "error", err)
			continue
		}
		historyWrites.Inc()
	}
}

// RecordSink is the subset of persistence operations the consumer needs,
// split out so retry behavior is testable without Kafka or Redis.
type RecordSink interface {
	Save(ctx context.Context, rec *history.Record) error
	BumpRoute(ctx context.Context, route string) error
}

type recordSink struct {
	store history.Store
	redis *redis.Client
}

func (s *recordSink) Save(ctx context.Context, rec *history.Record) error {
	return s.store.SaveSearch(ctx, rec)
}

func (s *recordSink) BumpRoute(ctx context.Context, route string) error {
	return s.redis.ZIncrBy(ctx, "routes:popular", 1, route).Err()
}

// persistWithRetry saves the record, then bumps the route popularity.
// Each step retries independently with exponential backoff, so a
// transient Redis failure never re-inserts an already-saved record.
func persistWithRetry(ctx context.Context, sink RecordSink, rec *history.Record, attempts int, delay time.Duration) error {
	if err := retryStep(func() error { return sink.Save(ctx, rec) }, attempts, delay); err != nil {
		return err
	}
	return retryStep(func() error { return sink.BumpRoute(ctx, rec.Route()) }, attempts, delay)
}

func retryStep(step func() error, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = step(); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}
