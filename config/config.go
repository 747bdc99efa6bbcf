package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Env            string   `env:"APP_ENV" envDefault:"development"`
	HTTPAddr       string   `env:"HTTP_ADDR" envDefault:":5200"`
	DatabaseURL    string   `env:"DATABASE_URL,required,notEmpty"`
	AutoMigrate    bool     `env:"DB_AUTO_MIGRATE" envDefault:"true"`
	GatewayToken   string   `env:"GAME_SERVICE_TOKEN,required,notEmpty"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	Feed struct {
		DefaultPageSize int `env:"FEED_DEFAULT_PAGE_SIZE" envDefault:"20"`
		MaxPageSize     int `env:"FEED_MAX_PAGE_SIZE" envDefault:"100"`
	}

	Ranking struct {
		// latest_first | earliest_first
		PredictionTieBreak string `env:"PREDICTION_TIE_BREAK" envDefault:"latest_first"`
		TriviaTieBreak     string `env:"TRIVIA_TIE_BREAK" envDefault:"latest_first"`
	}

	Redis struct {
		Addr        string `env:"REDIS_ADDR"`
		Password    string `env:"REDIS_PASSWORD" envDefault:""`
		DB          int    `env:"REDIS_DB" envDefault:"0"`
		EventStream string `env:"EVENT_STREAM" envDefault:"activity:events"`
	}

	Scheduler struct {
		AutoFinishEnabled  bool          `env:"AUTO_FINISH_ENABLED" envDefault:"true"`
		AutoFinishInterval time.Duration `env:"AUTO_FINISH_INTERVAL" envDefault:"1m"`
	}

	Sync struct {
		ServiceURL   string        `env:"SYNC_SERVICE_URL"`
		Interval     time.Duration `env:"SYNC_INTERVAL" envDefault:"1m"`
		TeamsPath    string        `env:"TEAMS_SYNC_PATH" envDefault:"/api/v1/public/teams"`
		BalancesPath string        `env:"BALANCES_SYNC_PATH" envDefault:"/api/v1/public/balances"`
	}

	R2 struct {
		AccountID       string `env:"CLOUDFLARE_ACCOUNT_ID"`
		AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
		AccessKeySecret string `env:"R2_ACCESS_KEY_SECRET"`
		Bucket          string `env:"R2_BUCKET_NAME"`
		CDNBaseURL      string `env:"CDN_BASE_URL"`
	}
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Feed.MaxPageSize <= 0 {
		return nil, fmt.Errorf("FEED_MAX_PAGE_SIZE must be positive")
	}
	if cfg.Feed.DefaultPageSize > cfg.Feed.MaxPageSize {
		cfg.Feed.DefaultPageSize = cfg.Feed.MaxPageSize
	}
	return cfg, nil
}
