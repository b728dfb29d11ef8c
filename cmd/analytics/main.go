package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	httpadapter "github.com/couchcryptid/climate-analytics-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/climate-analytics-service/internal/adapter/kafka"
	"github.com/couchcryptid/climate-analytics-service/internal/analysis"
	"github.com/couchcryptid/climate-analytics-service/internal/animation"
	"github.com/couchcryptid/climate-analytics-service/internal/config"
	"github.com/couchcryptid/climate-analytics-service/internal/domain"
	"github.com/couchcryptid/climate-analytics-service/internal/observability"
	"github.com/couchcryptid/climate-analytics-service/internal/pipeline"
)

// alwaysReady is the readiness check when no pipeline runs.
type alwaysReady struct{}

func (alwaysReady) CheckReadiness(context.Context) error { return nil }

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	analyzer, err := analysis.NewAnalyzer(cfg.AnalysisOptions(), logger, metrics)
	if err != nil {
		logger.Error("invalid analysis options", "error", err)
		os.Exit(1)
	}
	var service analysis.Service = analyzer
	if cfg.CacheSize > 0 {
		service = analysis.NewCachedAnalyzer(analyzer, cfg.CacheSize, metrics)
		logger.Info("analysis cache enabled", "max_entries", cfg.CacheSize)
	}

	clock, err := animation.NewClock(cfg.AnimationStart, cfg.AnimationEnd, cfg.AnimationSpeed, cfg.AnimationStepUnit)
	if err != nil {
		logger.Error("invalid animation settings", "error", err)
		os.Exit(1)
	}
	player := animation.NewPlayer(clock, nil, cfg.AnimationTickInterval, func(s domain.AnimationState) {
		metrics.AnimationFrames.Inc()
		logger.Debug("animation frame", "current_time", s.CurrentTime, "step_unit", s.StepUnit)
	}, logger)
	if cfg.AnimationAutoplay {
		clock.Play()
		metrics.AnimationPlaying.Set(1)
	}

	var (
		ready  sharedobs.ReadinessChecker = alwaysReady{}
		p      *pipeline.Pipeline
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
	)
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		processor := analysis.NewProcessor(service, cfg.ResultEncoding, logger)
		p = pipeline.New(reader, processor, writer, logger, metrics, cfg.BatchSize)
		ready = p
		logger.Info("kafka pipeline enabled",
			"brokers", cfg.KafkaBrokers,
			"source_topic", cfg.KafkaSourceTopic,
			"sink_topic", cfg.KafkaSinkTopic,
		)
	} else {
		logger.Info("kafka pipeline disabled")
	}

	api := httpadapter.NewAPI(service, clock, metrics, logger)
	limiter := rate.NewLimiter(rate.Limit(cfg.APIRateLimit), cfg.APIRateBurst)
	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, api, limiter, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := player.Run(ctx); err != nil {
			logger.Error("animation player error", "error", err)
		}
	}()

	if p != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	wg.Wait()
	metrics.AnimationPlaying.Set(0)

	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
