package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// GatewayConfig captures all tunable parameters for the session gateway.
// Values load from environment variables with defaults good enough to run
// locally against a dev backend.
type GatewayConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	SearchAPIURL  string
	SearchTimeout time.Duration
	PageLimit     int

	CityAPIURL        string
	AutocompleteQuiet time.Duration
	AutocompleteLimit int
	CityCacheSize     int
	CityCacheTTL      time.Duration

	ParticipationAPIURL string

	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string

	LogLevel string
}

func defaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		HTTPAddr:          ":8080",
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   15 * time.Second,
		SearchAPIURL:      "http://localhost:8000/api/search",
		SearchTimeout:     10 * time.Second,
		PageLimit:         18,
		CityAPIURL:        "https://geo.api.gouv.fr/communes",
		AutocompleteQuiet: 300 * time.Millisecond,
		AutocompleteLimit: 10,
		CityCacheSize:     512,
		CityCacheTTL:      10 * time.Minute,
		KafkaTopic:        "search-events",
		LogLevel:          "info",
	}
}

// LoadGatewayConfig reads the environment, accumulating every problem
// instead of stopping at the first.
func LoadGatewayConfig() (GatewayConfig, error) {
	cfg := defaultGatewayConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	setStringFromEnv(&cfg.SearchAPIURL, "SEARCH_API_URL")
	setDurationFromEnv(&cfg.SearchTimeout, "SEARCH_TIMEOUT", &errs)
	setIntFromEnv(&cfg.PageLimit, "SEARCH_PAGE_LIMIT", &errs)

	setStringFromEnv(&cfg.CityAPIURL, "CITY_API_URL")
	setDurationFromEnv(&cfg.AutocompleteQuiet, "AUTOCOMPLETE_QUIET", &errs)
	setIntFromEnv(&cfg.AutocompleteLimit, "AUTOCOMPLETE_LIMIT", &errs)
	setIntFromEnv(&cfg.CityCacheSize, "CITY_CACHE_SIZE", &errs)
	setDurationFromEnv(&cfg.CityCacheTTL, "CITY_CACHE_TTL", &errs)

	setStringFromEnv(&cfg.ParticipationAPIURL, "PARTICIPATION_API_URL")

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.PageLimit <= 0 {
		errs = append(errs, fmt.Errorf("SEARCH_PAGE_LIMIT must be > 0"))
	}
	if cfg.AutocompleteLimit <= 0 {
		errs = append(errs, fmt.Errorf("AUTOCOMPLETE_LIMIT must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

// ConsumerConfig covers the search-event consumer process.
type ConsumerConfig struct {
	MetricsAddr string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroup   string

	RedisAddr     string
	RedisPassword string

	PGDSN string

	LogLevel string
}

func LoadConsumerConfig() (ConsumerConfig, error) {
	cfg := ConsumerConfig{
		MetricsAddr:  ":2112",
		KafkaBrokers: []string{"localhost:9092"},
		KafkaTopic:   "search-events",
		KafkaGroup:   "ride-search-consumer",
		RedisAddr:    "localhost:6379",
		LogLevel:     "info",
	}
	var errs []error

	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")
	setStringFromEnv(&cfg.RedisAddr, "REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.PGDSN = os.Getenv("PG_DSN")
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if len(cfg.KafkaBrokers) == 0 {
		errs = append(errs, fmt.Errorf("KAFKA_BROKERS must not be empty"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
