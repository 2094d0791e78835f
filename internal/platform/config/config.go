package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Webhooks  WebhooksConfig  `mapstructure:"webhooks"`
	Calendar  CalendarConfig  `mapstructure:"calendar"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type WebhooksConfig struct {
	// Secret is the shared secret the upstream provider signs payloads
	// with. Empty means webhooks are rejected unless Debug is set.
	Secret          string `mapstructure:"secret"`
	SignatureHeader string `mapstructure:"signature_header"`
	EventHeader     string `mapstructure:"event_header"`
	// Debug enables the development signature bypass. Never set in
	// production; the default configuration leaves it off.
	Debug bool `mapstructure:"debug"`
}

type CalendarConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	ErrorTTL        time.Duration `mapstructure:"error_ttl"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

type RateLimitConfig struct {
	WebhookPerMinute int `mapstructure:"webhook_per_minute"`
	APIReadPerMinute int `mapstructure:"api_read_per_minute"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.path", "data/staysync.db")
	viper.SetDefault("database.max_connections", 10)
	viper.SetDefault("webhooks.signature_header", "X-Webhook-Signature")
	viper.SetDefault("webhooks.event_header", "X-Webhook-Event")
	viper.SetDefault("calendar.ttl", time.Hour)
	viper.SetDefault("calendar.error_ttl", 10*time.Minute)
	viper.SetDefault("calendar.fetch_timeout", 15*time.Second)
	viper.SetDefault("calendar.refresh_interval", 30*time.Minute)
	viper.SetDefault("rate_limit.webhook_per_minute", 600)
	viper.SetDefault("rate_limit.api_read_per_minute", 1000)
	viper.SetDefault("logging.level", "info")
}
