package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"ghtrending/models"
)

const defaultEnvFile = ".env"

// Config holds all configuration for the application
type Config struct {
	LogLevel  string
	LogFormat string

	Database Database

	TrendingURL      string
	TrendingBaseURL  string
	TrendingLanguage string
	TrendingSince    models.TimeWindow
	FetchTimeout     time.Duration
	MaxRedirects     int

	Schedule   string
	Timezone   string
	RunOnStart bool

	HTTPAddr string

	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBaseURL     string
	SummaryBatchLimit int
	SummaryTimeout    time.Duration
}

// Database holds the storage connection settings.
type Database struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SummariesEnabled reports whether LLM enrichment is configured.
func (c *Config) SummariesEnabled() bool {
	return c.OpenAIAPIKey != ""
}

// NewConfig creates a new Config instance
func NewConfig() *Config {
	return &Config{}
}

// Load loads configuration from an optional .env file and environment variables
func (c *Config) Load() error {
	v := viper.New()
	setDefaults(v)

	envFile := os.Getenv("GHTRENDING_ENV_FILE")
	if envFile == "" {
		envFile = defaultEnvFile
	}
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	c.LogLevel = v.GetString("LOG_LEVEL")
	c.LogFormat = v.GetString("LOG_FORMAT")

	c.Database = Database{
		URL:             v.GetString("DATABASE_URL"),
		MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
		ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
	}
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	c.TrendingURL = v.GetString("TRENDING_URL")
	c.TrendingBaseURL = v.GetString("TRENDING_BASE_URL")
	c.TrendingLanguage = v.GetString("TRENDING_LANGUAGE")

	since, err := models.ParseTimeWindow(v.GetString("TRENDING_SINCE"))
	if err != nil {
		return fmt.Errorf("invalid TRENDING_SINCE: %w", err)
	}
	c.TrendingSince = since

	c.FetchTimeout = v.GetDuration("FETCH_TIMEOUT")
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive")
	}
	c.MaxRedirects = v.GetInt("FETCH_MAX_REDIRECTS")
	if c.MaxRedirects < 0 || c.MaxRedirects > 9 {
		return fmt.Errorf("FETCH_MAX_REDIRECTS must be between 0 and 9")
	}

	c.Schedule = v.GetString("SCHEDULE")
	c.Timezone = v.GetString("TIMEZONE")
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	c.RunOnStart = v.GetBool("RUN_ON_START")

	c.HTTPAddr = v.GetString("HTTP_ADDR")

	// Optional: enrichment is disabled without a key
	c.OpenAIAPIKey = v.GetString("OPENAI_API_KEY")
	c.OpenAIModel = v.GetString("OPENAI_MODEL")
	c.OpenAIBaseURL = v.GetString("OPENAI_BASE_URL")
	c.SummaryBatchLimit = v.GetInt("SUMMARY_BATCH_LIMIT")
	if c.SummaryBatchLimit < 0 {
		c.SummaryBatchLimit = 0
	}
	c.SummaryTimeout = v.GetDuration("SUMMARY_TIMEOUT")

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DATABASE_URL", "sqlite://./gh_trending.db")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 25)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "5m")

	v.SetDefault("TRENDING_URL", "https://github.com/trending")
	v.SetDefault("TRENDING_BASE_URL", "https://github.com")
	v.SetDefault("TRENDING_LANGUAGE", "")
	v.SetDefault("TRENDING_SINCE", string(models.Daily))
	v.SetDefault("FETCH_TIMEOUT", "30s")
	v.SetDefault("FETCH_MAX_REDIRECTS", 5)

	v.SetDefault("SCHEDULE", "0 10 * * *")
	v.SetDefault("TIMEZONE", "UTC")
	v.SetDefault("RUN_ON_START", false)

	v.SetDefault("HTTP_ADDR", ":8000")

	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_MODEL", "gpt-3.5-turbo")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com")
	v.SetDefault("SUMMARY_BATCH_LIMIT", 5)
	v.SetDefault("SUMMARY_TIMEOUT", "2m")
}
