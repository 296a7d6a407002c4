package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName              string
	AppEnv               string
	AppPort              string
	DatabaseURL          string
	DatabaseMaxOpenConns int
	DatabaseMaxIdleConns int
	DatabaseConnMaxLife  time.Duration
	RedisURL             string
	NATSURL              string
	JWTSecret            string
	StatusSweepInterval  time.Duration
	LeaderboardCacheTTL  time.Duration
	CatalogBaseURL       string
	CatalogTimeout       time.Duration
	CatalogCacheTTL      time.Duration
	SubmissionFetchLimit int
	SyncConcurrency      int
	SyncEnabled          bool
	EventsChannel        string
	StreamKeepAlive      time.Duration
	MaxParticipantsLimit int
	CheckRateLimit       int
	CheckRateWindow      time.Duration
	CORSAllowOrigins     string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ARENA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Code Arena API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("status.sweep_interval", "60s")
	v.SetDefault("leaderboard.cache_ttl", "30s")
	v.SetDefault("catalog.base_url", "https://leetcode.com")
	v.SetDefault("catalog.timeout", "10s")
	v.SetDefault("catalog.cache_ttl", "6h")
	v.SetDefault("catalog.submission_limit", 20)
	v.SetDefault("sync.concurrency", 4)
	v.SetDefault("sync.enabled", true)
	v.SetDefault("events.channel", "arena")
	v.SetDefault("stream.keepalive", "20s")
	v.SetDefault("contest.max_participants_limit", 10000)
	v.SetDefault("check.rate_limit", 6)
	v.SetDefault("check.rate_window", "1m")

	durations := map[string]time.Duration{}
	for _, key := range []string{
		"database.conn_max_lifetime",
		"status.sweep_interval",
		"leaderboard.cache_ttl",
		"catalog.timeout",
		"catalog.cache_ttl",
		"stream.keepalive",
		"check.rate_window",
	} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed <= 0 {
			return Config{}, fmt.Errorf("%s must be positive", key)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:              v.GetString("app.name"),
		AppEnv:               v.GetString("app.env"),
		AppPort:              v.GetString("app.port"),
		DatabaseURL:          v.GetString("database.url"),
		DatabaseMaxOpenConns: v.GetInt("database.max_open_conns"),
		DatabaseMaxIdleConns: v.GetInt("database.max_idle_conns"),
		DatabaseConnMaxLife:  durations["database.conn_max_lifetime"],
		RedisURL:             v.GetString("redis.url"),
		NATSURL:              v.GetString("nats.url"),
		JWTSecret:            v.GetString("jwt.secret"),
		StatusSweepInterval:  durations["status.sweep_interval"],
		LeaderboardCacheTTL:  durations["leaderboard.cache_ttl"],
		CatalogBaseURL:       v.GetString("catalog.base_url"),
		CatalogTimeout:       durations["catalog.timeout"],
		CatalogCacheTTL:      durations["catalog.cache_ttl"],
		SubmissionFetchLimit: v.GetInt("catalog.submission_limit"),
		SyncConcurrency:      v.GetInt("sync.concurrency"),
		SyncEnabled:          v.GetBool("sync.enabled"),
		EventsChannel:        v.GetString("events.channel"),
		StreamKeepAlive:      durations["stream.keepalive"],
		MaxParticipantsLimit: v.GetInt("contest.max_participants_limit"),
		CheckRateLimit:       v.GetInt("check.rate_limit"),
		CheckRateWindow:      durations["check.rate_window"],
		CORSAllowOrigins:     v.GetString("cors.allow_origins"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.SyncConcurrency <= 0 {
		cfg.SyncConcurrency = 4
	}

	if cfg.SubmissionFetchLimit <= 0 {
		cfg.SubmissionFetchLimit = 20
	}

	if cfg.DatabaseMaxIdleConns > cfg.DatabaseMaxOpenConns && cfg.DatabaseMaxOpenConns > 0 {
		cfg.DatabaseMaxIdleConns = cfg.DatabaseMaxOpenConns
	}

	if cfg.MaxParticipantsLimit <= 0 {
		cfg.MaxParticipantsLimit = 10000
	}

	return cfg, nil
}
