package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the paperbot service
type Config struct {
	General GeneralConfig `mapstructure:"general"`
	Slack   SlackConfig   `mapstructure:"slack"`
	Gemini  GeminiConfig  `mapstructure:"gemini"`
	Summary SummaryConfig `mapstructure:"summary"`
	Storage StorageConfig `mapstructure:"storage"`
	Retry   RetryConfig   `mapstructure:"retry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Listen         string        `mapstructure:"listen"`
	Debug          bool          `mapstructure:"debug"`
	ProcessTimeout time.Duration `mapstructure:"process_timeout"`
}

// SlackConfig contains Slack API and webhook verification settings
type SlackConfig struct {
	BotToken      string        `mapstructure:"bot_token"`
	SigningSecret string        `mapstructure:"signing_secret"`
	ChannelIDs    []string      `mapstructure:"channel_ids"`
	APIBaseURL    string        `mapstructure:"api_base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

func (s SlackConfig) Validate() error {
	if strings.TrimSpace(s.BotToken) == "" {
		return fmt.Errorf("slack.bot_token is required")
	}
	if !strings.HasPrefix(s.BotToken, "xoxb-") {
		return fmt.Errorf("slack.bot_token should start with 'xoxb-'")
	}
	if strings.TrimSpace(s.SigningSecret) == "" {
		return fmt.Errorf("slack.signing_secret is required")
	}
	if len(s.ChannelIDs) == 0 {
		return fmt.Errorf("slack.channel_ids must list at least one channel")
	}
	return nil
}

// GeminiConfig contains the summarization model provider settings
type GeminiConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func (g GeminiConfig) Validate() error {
	if strings.TrimSpace(g.APIKey) == "" {
		return fmt.Errorf("gemini.api_key is required")
	}
	return nil
}

// SummaryConfig controls how documents are extracted and summarized
type SummaryConfig struct {
	DetailLevel   string `mapstructure:"detail_level"` // short, normal, detailed
	MaxPages      int    `mapstructure:"max_pages"`
	MaxInputChars int    `mapstructure:"max_input_chars"`
	MaxFileBytes  int64  `mapstructure:"max_file_bytes"`
	CacheEnabled  bool   `mapstructure:"cache_enabled"`
}

func (s SummaryConfig) Validate() error {
	switch s.DetailLevel {
	case "short", "normal", "detailed":
	default:
		return fmt.Errorf("summary.detail_level must be one of short, normal, detailed")
	}
	if s.MaxPages <= 0 {
		return fmt.Errorf("summary.max_pages must be > 0")
	}
	return nil
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings (webhook delivery dedup)
type RedisConfig struct {
	Host        string        `mapstructure:"host"`
	Port        string        `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DedupWindow time.Duration `mapstructure:"dedup_window"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// PostgresConfig contains Postgres connection settings (summary cache)
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a postgres connection string from the configured fields.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// RetryConfig defines the bounded retry policy shared by the summarizer and publisher
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	Multiplier  float64       `mapstructure:"multiplier"`
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetDefault("general.listen", ":8000")
	viper.SetDefault("general.process_timeout", 5*time.Minute)
	viper.SetDefault("slack.api_base_url", "https://slack.com/api")
	viper.SetDefault("slack.timeout", 30*time.Second)
	viper.SetDefault("gemini.model", "gemini-1.5-flash")
	viper.SetDefault("gemini.temperature", 0.3)
	viper.SetDefault("gemini.max_tokens", 4096)
	viper.SetDefault("gemini.timeout", 120*time.Second)
	viper.SetDefault("summary.detail_level", "normal")
	viper.SetDefault("summary.max_pages", 50)
	viper.SetDefault("summary.max_input_chars", 900000)
	viper.SetDefault("summary.max_file_bytes", int64(50*1024*1024))
	viper.SetDefault("summary.cache_enabled", true)
	viper.SetDefault("storage.redis.dedup_window", time.Hour)
	viper.SetDefault("retry.max_attempts", 3)
	viper.SetDefault("retry.base_delay", 2*time.Second)
	viper.SetDefault("retry.multiplier", 2.0)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("PAPERBOT")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv() // read in environment variables that match (PAPERBOT_*)

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Slack.Validate(); err != nil {
		panic(err)
	}
	if err := config.Gemini.Validate(); err != nil {
		panic(err)
	}
	if err := config.Summary.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Redis.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Postgres.Validate(); err != nil {
		panic(err)
	}
	return &config
}
