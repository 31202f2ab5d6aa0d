package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pranavjoshi/trivia-gateway/internal/config"
	"github.com/pranavjoshi/trivia-gateway/internal/logging"
	"github.com/pranavjoshi/trivia-gateway/internal/metrics"
	"github.com/pranavjoshi/trivia-gateway/internal/question"
	"github.com/pranavjoshi/trivia-gateway/internal/question/external"
	"github.com/pranavjoshi/trivia-gateway/internal/server"
)

// Application aggregates shared infrastructure (cache backend, HTTP server,
// background workers).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	redis *redis.Client
	http  *http.Server

	prefetchWorker *question.PrefetchWorker
	prefetchQueue  chan question.PrefetchRequest
	bgCancels      []context.CancelFunc
}

// New bootstraps config, logger, the cache backend and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	recorder := metrics.NewRecorder(nil)

	var redisClient *redis.Client
	var cache question.Cache
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		cache = question.NewRedisCache(redisClient, cfg.Cache.TTL)
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("using redis question cache")
	} else {
		cache = question.NewMemoryCache(cfg.Cache.TTL)
		logger.Info().Dur("ttl", cfg.Cache.TTL).Msg("using in-memory question cache")
	}

	upstreamClient := external.NewClient(cfg.Upstream.BaseURL, nil)
	fetcher := question.NewFetcher(upstreamClient, question.FetcherOptions{
		MaxRetries:  cfg.Upstream.MaxRetries,
		Timeout:     cfg.Upstream.FetchTimeout,
		BackoffUnit: cfg.Upstream.BackoffUnit,
	}, logger, recorder)

	var filler question.ShortfallFiller
	if cfg.Quiz.GenericFallback {
		filler = question.NewGenericFiller(fetcher)
		logger.Info().Msg("generic fallback fill enabled")
	}

	distributor := question.NewDistributor(fetcher, cache, filler, logger, recorder)

	var prefetchWorker *question.PrefetchWorker
	var prefetchQueue chan question.PrefetchRequest
	if len(cfg.Quiz.PrewarmTopics) > 0 && cfg.Quiz.PrewarmInterval > 0 {
		prefetchQueue = make(chan question.PrefetchRequest, 4)
		prefetchWorker = question.NewPrefetchWorker(distributor, prefetchQueue, logger, cfg.Quiz.PrefetchTimeout)
		logger.Info().
			Strs("topics", cfg.Quiz.PrewarmTopics).
			Dur("interval", cfg.Quiz.PrewarmInterval).
			Msg("cache prewarm enabled")
	}

	apiServer := server.NewHTTPServer(cfg, logger, distributor, recorder)

	return &Application{
		cfg:            cfg,
		logger:         logger,
		redis:          redisClient,
		http:           apiServer,
		prefetchWorker: prefetchWorker,
		prefetchQueue:  prefetchQueue,
		bgCancels:      make([]context.CancelFunc, 0, 1),
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.startBackgroundWorkers(ctx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	for _, cancel := range a.bgCancels {
		cancel()
	}
	if a.prefetchWorker != nil {
		a.prefetchWorker.Stop()
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error().Err(err).Msg("redis shutdown error")
		}
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}

func (a *Application) startBackgroundWorkers(ctx context.Context) {
	if a.prefetchWorker == nil {
		return
	}

	go a.prefetchWorker.Run()

	bgCtx, cancel := context.WithCancel(ctx)
	a.bgCancels = append(a.bgCancels, cancel)
	go func() {
		ticker := time.NewTicker(a.cfg.Quiz.PrewarmInterval)
		defer ticker.Stop()
		req := question.PrefetchRequest{
			Topics: a.cfg.Quiz.PrewarmTopics,
			Total:  a.cfg.Quiz.DefaultQuestionCount,
		}
		// Warm once at startup, then on every tick.
		a.enqueuePrefetch(req)
		for {
			select {
			case <-bgCtx.Done():
				return
			case <-ticker.C:
				a.enqueuePrefetch(req)
			}
		}
	}()
}

func (a *Application) enqueuePrefetch(req question.PrefetchRequest) {
	select {
	case a.prefetchQueue <- req:
	default:
		a.logger.Warn().Msg("prefetch queue full, skipping prewarm tick")
	}
}
