package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"trivia-gateway"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Upstream Upstream
	Cache    Cache
	Quiz     Quiz
	Redis    Redis
}

// Upstream tunes the question-bank fetch primitive.
type Upstream struct {
	BaseURL      string        `env:"OPENTDB_BASE_URL" envDefault:"https://opentdb.com"`
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT_SECONDS" envDefault:"5s"`
	MaxRetries   int           `env:"MAX_RETRIES" envDefault:"3"`
	BackoffUnit  time.Duration `env:"BACKOFF_UNIT_SECONDS" envDefault:"0.4s"`
}

// Cache governs the response cache TTL, applied uniformly to all entries.
type Cache struct {
	TTL time.Duration `env:"CACHE_TTL_SECONDS" envDefault:"120s"`
}

// Redis selects the shared cache backend. Leave Addr empty to run with the
// in-process cache instead.
type Redis struct {
	Addr     string `env:"REDIS_ADDR"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Quiz groups gameplay defaults and the optional warm/fill behaviors.
type Quiz struct {
	DefaultQuestionCount int           `env:"DEFAULT_QUESTION_COUNT" envDefault:"5"`
	GenericFallback      bool          `env:"GENERIC_FALLBACK" envDefault:"false"`
	PrewarmTopics        []string      `env:"PREWARM_TOPICS" envSeparator:","`
	PrewarmInterval      time.Duration `env:"PREWARM_INTERVAL" envDefault:"0"`
	PrefetchTimeout      time.Duration `env:"PREFETCH_TIMEOUT_SECONDS" envDefault:"10s"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
