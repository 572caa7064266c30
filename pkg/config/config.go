package config

import (
	"fmt"
	"log"
	"net/url"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type (
	Config struct {
		HTTP      HTTP      `envPrefix:"HTTP_"`
		Logger    Logger    `envPrefix:"LOGGER_"`
		Telemetry Telemetry `envPrefix:"TELEMETRY_"`
		Cache     Cache     `envPrefix:"CACHE_"`
		Build     Build     `envPrefix:"BUILD_"`
		Renderer  Renderer  `envPrefix:"RENDERER_"`
	}

	HTTP struct {
		Server Server `envPrefix:"SERVER_"`
	}

	// Server is the optional status server. An empty port disables it.
	Server struct {
		Port         string        `env:"PORT"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
		IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`

		// TileCacheSize is how many tiles the tile endpoint keeps in memory.
		TileCacheSize int `env:"TILE_CACHE_SIZE" envDefault:"1024" validate:"gt=0"`
	}

	Logger struct {
		Level string `env:"LEVEL" envDefault:"info"`
	}

	Telemetry struct {
		Enabled        bool   `env:"ENABLED" envDefault:"false"`
		ServiceName    string `env:"SERVICE_NAME" envDefault:"guide-helper-tilebuilder"`
		ServiceVersion string `env:"SERVICE_VERSION" envDefault:"1.0.0"`
		Environment    string `env:"ENVIRONMENT" envDefault:"production"`
		OTLPEndpoint   string `env:"OTLP_ENDPOINT" envDefault:"otel-collector.observability.svc.cluster.local:4317"`
	}

	Cache struct {
		Dir   string `env:"DIR,required" validate:"required"`
		Type  string `env:"TYPE" envDefault:"sqlite" validate:"oneof=sqlite memory filesystem redis"`
		Redis Redis  `envPrefix:"REDIS_"`
	}

	// Redis is only read when Cache.Type is redis.
	Redis struct {
		Addr     string `env:"ADDR" envDefault:"localhost:6379"`
		Password string `env:"PASSWORD"`
		DB       int    `env:"DB" envDefault:"0" validate:"gte=0"`
	}

	Build struct {
		Manifest         string        `env:"MANIFEST,required" validate:"required"`
		Concurrency      int           `env:"CONCURRENCY" envDefault:"0" validate:"gte=0"`
		FailFast         bool          `env:"FAIL_FAST" envDefault:"false"`
		Timeout          time.Duration `env:"TIMEOUT" envDefault:"0s"`
		ProgressInterval time.Duration `env:"PROGRESS_INTERVAL" envDefault:"5s"`
	}

	Renderer struct {
		UpstreamURL string        `env:"UPSTREAM_URL,required" validate:"required,url"`
		PathPattern string        `env:"PATH_PATTERN" envDefault:"/{tileset}/{z}/{x}/{y}"`
		UserAgent   string        `env:"USER_AGENT" envDefault:"GuideHelper/1.0 (https://github.com/jaennil/guide_helper)"`
		Timeout     time.Duration `env:"TIMEOUT" envDefault:"30s"`
		Gzip        bool          `env:"GZIP" envDefault:"false"`
	}
)

func New() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Printf("NOTICE: .env file not found or cannot be loaded: %v\n", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Redacted returns a copy of the config that is safe to log. The Redis
// password is masked and credentials in the upstream URL are hidden.
func (c Config) Redacted() Config {
	if c.Cache.Redis.Password != "" {
		c.Cache.Redis.Password = redactedMark
	}
	if u, err := url.Parse(c.Renderer.UpstreamURL); err == nil && u.User != nil {
		c.Renderer.UpstreamURL = u.Redacted()
	}
	return c
}

const redactedMark = "xxxxx"

// Workers returns the configured build concurrency, falling back to the
// number of CPUs when unset.
func (b Build) Workers() int {
	if b.Concurrency <= 0 {
		return runtime.NumCPU()
	}
	return b.Concurrency
}
