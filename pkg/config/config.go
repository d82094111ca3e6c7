package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Linear   LinearConfig   `mapstructure:"linear"`
	Gmail    GmailConfig    `mapstructure:"gmail"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Labels   LabelsConfig   `mapstructure:"labels"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelegramConfig struct {
	Token         string `mapstructure:"token"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type OpenAIConfig struct {
	APIKey          string  `mapstructure:"api_key"`
	ClassifierModel string  `mapstructure:"classifier_model"`
	CleanupModel    string  `mapstructure:"cleanup_model"`
	GeneratorModel  string  `mapstructure:"generator_model"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature"`
	ClassifyRetries int     `mapstructure:"classify_retries"`
}

type LinearConfig struct {
	APIKey            string `mapstructure:"api_key"`
	TeamID            string `mapstructure:"team_id"`
	FeedbackProjectID string `mapstructure:"feedback_project_id"`
	FeedbackStateID   string `mapstructure:"feedback_state_id"`
}

type GmailConfig struct {
	AccessToken string `mapstructure:"access_token"`
}

type WebhookConfig struct {
	MailSecret string `mapstructure:"mail_secret"`
}

type LabelsConfig struct {
	Priority []string `mapstructure:"priority"`
	Intake   string   `mapstructure:"intake"`
	Prefix   string   `mapstructure:"prefix"`
	AI       []string `mapstructure:"ai"`
}

type StorageConfig struct {
	Backend  string         `mapstructure:"backend"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("openai.classifier_model", "gpt-4o-mini")
	v.SetDefault("openai.cleanup_model", "gpt-4o-mini")
	v.SetDefault("openai.generator_model", "gpt-4o")
	v.SetDefault("openai.max_tokens", 1024)
	v.SetDefault("openai.temperature", 0.4)
	v.SetDefault("openai.classify_retries", 2)
	v.SetDefault("labels.priority", []string{"intake", "needs-response", "needs-review", "drafted"})
	v.SetDefault("labels.intake", "intake")
	v.SetDefault("labels.prefix", "ai_")
	v.SetDefault("labels.ai", []string{"ai_newsletter", "ai_receipt", "ai_notification", "ai_personal", "ai_vip"})
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.database.port", 5432)
	v.SetDefault("storage.database.host", "localhost")
	v.SetDefault("storage.database.user", "postgres")
	v.SetDefault("storage.database.sslmode", "disable")
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.ttl", 7*24*time.Hour)

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Storage.Database = dbConfig
	}

	// Get other environment variables
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}
	if secret := v.GetString("TELEGRAM_WEBHOOK_SECRET"); secret != "" {
		config.Telegram.WebhookSecret = secret
	}
	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}
	if apiKey := v.GetString("LINEAR_API_KEY"); apiKey != "" {
		config.Linear.APIKey = apiKey
	}
	if token := v.GetString("GMAIL_ACCESS_TOKEN"); token != "" {
		config.Gmail.AccessToken = token
	}
	if secret := v.GetString("MAIL_WEBHOOK_SECRET"); secret != "" {
		config.Webhook.MailSecret = secret
	}
	if addr := v.GetString("REDIS_ADDR"); addr != "" {
		config.Storage.Redis.Addr = addr
	}

	return &config, nil
}
