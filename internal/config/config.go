package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/climate-analytics-service/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Analysis configuration.
	SignificanceAlpha    float64
	PercentileLevels     []float64
	MissingValueSentinel *float64
	CacheSize            int
	ResultEncoding       string

	// Animation configuration.
	AnimationStepUnit     domain.StepUnit
	AnimationStart        time.Time
	AnimationEnd          time.Time
	AnimationSpeed        float64
	AnimationTickInterval time.Duration
	AnimationAutoplay     bool

	// API rate limiting.
	APIRateLimit float64
	APIRateBurst int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaEnabled:       parseBool("KAFKA_ENABLED", false),
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "analysis-requests"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "analysis-results"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "climate-analytics"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
		ResultEncoding:     strings.ToLower(sharedcfg.EnvOrDefault("RESULT_ENCODING", "json")),
		AnimationAutoplay:  parseBool("ANIMATION_AUTOPLAY", false),
	}

	if cfg.SignificanceAlpha, err = parseFloat("SIGNIFICANCE_ALPHA", "0.05"); err != nil {
		return nil, err
	}
	if cfg.PercentileLevels, err = parseLevels(sharedcfg.EnvOrDefault("PERCENTILE_LEVELS", "10,25,50,75,90,95,99")); err != nil {
		return nil, err
	}
	if s := os.Getenv("MISSING_VALUE_SENTINEL"); s != "" {
		v, perr := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if perr != nil {
			return nil, fmt.Errorf("invalid MISSING_VALUE_SENTINEL %q", s)
		}
		cfg.MissingValueSentinel = &v
	}
	if cfg.CacheSize, err = parsePositiveInt("CACHE_SIZE", "1000"); err != nil {
		return nil, err
	}

	if cfg.AnimationStepUnit, err = domain.ParseStepUnit(sharedcfg.EnvOrDefault("ANIMATION_STEP_UNIT", "month")); err != nil {
		return nil, errors.New("invalid ANIMATION_STEP_UNIT")
	}
	if cfg.AnimationStart, err = parseDate("ANIMATION_START", "2020-01-01"); err != nil {
		return nil, err
	}
	if cfg.AnimationEnd, err = parseDate("ANIMATION_END", "2024-12-31"); err != nil {
		return nil, err
	}
	if cfg.AnimationSpeed, err = parseFloat("ANIMATION_SPEED", "2"); err != nil {
		return nil, err
	}
	tick, err := time.ParseDuration(sharedcfg.EnvOrDefault("ANIMATION_TICK_INTERVAL", "100ms"))
	if err != nil || tick <= 0 {
		return nil, errors.New("invalid ANIMATION_TICK_INTERVAL")
	}
	cfg.AnimationTickInterval = tick

	if cfg.APIRateLimit, err = parseFloat("API_RATE_LIMIT", "50"); err != nil {
		return nil, err
	}
	if cfg.APIRateBurst, err = parsePositiveInt("API_RATE_BURST", "100"); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required")
		}
		if c.KafkaSourceTopic == "" {
			return errors.New("KAFKA_SOURCE_TOPIC is required")
		}
		if c.KafkaSinkTopic == "" {
			return errors.New("KAFKA_SINK_TOPIC is required")
		}
	}
	if c.SignificanceAlpha <= 0 || c.SignificanceAlpha >= 1 {
		return fmt.Errorf("SIGNIFICANCE_ALPHA %g must be in (0, 1)", c.SignificanceAlpha)
	}
	if err := c.AnalysisOptions().Validate(); err != nil {
		return fmt.Errorf("invalid analysis options: %w", err)
	}
	if c.ResultEncoding != "json" && c.ResultEncoding != "msgpack" {
		return fmt.Errorf("invalid RESULT_ENCODING %q: want json or msgpack", c.ResultEncoding)
	}
	if c.AnimationEnd.Before(c.AnimationStart) {
		return errors.New("ANIMATION_END is before ANIMATION_START")
	}
	if c.AnimationSpeed <= 0 {
		return errors.New("ANIMATION_SPEED must be positive")
	}
	if c.APIRateLimit <= 0 {
		return errors.New("API_RATE_LIMIT must be positive")
	}
	return nil
}

// AnalysisOptions returns the options consumed by the analysis core.
func (c *Config) AnalysisOptions() domain.Options {
	levels := make([]float64, len(c.PercentileLevels))
	copy(levels, c.PercentileLevels)
	return domain.Options{
		SignificanceAlpha:    c.SignificanceAlpha,
		PercentileLevels:     levels,
		AnimationStepUnit:    c.AnimationStepUnit,
		MissingValueSentinel: c.MissingValueSentinel,
	}
}

func parseBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func parseFloat(key, def string) (float64, error) {
	s := sharedcfg.EnvOrDefault(key, def)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return v, nil
}

func parsePositiveInt(key, def string) (int, error) {
	s := sharedcfg.EnvOrDefault(key, def)
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", key, s)
	}
	return n, nil
}

func parseDate(key, def string) (time.Time, error) {
	s := sharedcfg.EnvOrDefault(key, def)
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: want YYYY-MM-DD", key, s)
	}
	return t, nil
}

// parseLevels reads a comma-separated list such as "10,50,90".
func parseLevels(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	levels := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid PERCENTILE_LEVELS entry %q", p)
		}
		levels = append(levels, v)
	}
	if err := domain.ValidateLevels(levels); err != nil {
		return nil, fmt.Errorf("invalid PERCENTILE_LEVELS: %w", err)
	}
	return levels, nil
}
