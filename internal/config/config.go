package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Port        string `yaml:"port" env:"PORT" env-default:"8080"`
	Environment string `yaml:"environment" env:"ENVIRONMENT" env-default:"development"`
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	SupabaseURL       string `yaml:"supabase_url" env:"SUPABASE_URL"`
	SupabaseAnonKey   string `yaml:"supabase_anon_key" env:"SUPABASE_URL_ANON_KEY"`
	SupabaseKey       string `yaml:"supabase_service_key" env:"SUPABASE_SERVICE_ROLE_KEY"`
	SupabaseJWTSecret string `yaml:"supabase_jwt_secret" env:"SUPABASE_JWT_SECRET"`

	// MongoDB holds the callback audit log. Empty disables it.
	MongoDBURI      string `yaml:"mongodb_uri" env:"MONGODB_URI"`
	MongoDBPassword string `yaml:"mongodb_password" env:"MONGODB_PASSWORD"`

	// Kafka carries confirmation emails. No brokers means emails are logged only.
	KafkaBrokers []string `yaml:"kafka_brokers" env:"KAFKA_BROKERS" env-separator:","`
	EmailTopic   string   `yaml:"email_topic" env:"EMAIL_TOPIC" env-default:"payment-emails"`

	GatewayURL   string `yaml:"gateway_url" env:"PAYMENT_GATEWAY_URL"`
	DashboardURL string `yaml:"dashboard_url" env:"DASHBOARD_URL" env-default:"http://localhost:5173/dashboard"`

	PollInterval time.Duration `yaml:"poll_interval" env:"PAYMENT_POLL_INTERVAL" env-default:"1s"`
	PollTimeout  time.Duration `yaml:"poll_timeout" env:"PAYMENT_POLL_TIMEOUT" env-default:"5s"`

	RequireAuth bool     `yaml:"require_auth" env:"REQUIRE_AUTH" env-default:"false"`
	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS" env-separator:"," env-default:"http://localhost:5173,http://localhost:3000"`
}

// LoadConfig reads CONFIG_PATH (yaml) when set, then the environment, which
// wins over the file.
func LoadConfig() (*Config, error) {
	var cfg Config

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.StorageKey() == "" {
		return fmt.Errorf("SUPABASE_SERVICE_ROLE_KEY or SUPABASE_URL_ANON_KEY is required")
	}
	if c.GatewayURL == "" {
		return fmt.Errorf("PAYMENT_GATEWAY_URL is required")
	}
	if c.MongoDBURI != "" && strings.Contains(c.MongoDBURI, "<password>") && c.MongoDBPassword == "" {
		return fmt.Errorf("MONGODB_PASSWORD is required by MONGODB_URI")
	}
	if c.PollInterval <= 0 || c.PollTimeout < c.PollInterval {
		return fmt.Errorf("invalid poll settings: interval %s, timeout %s", c.PollInterval, c.PollTimeout)
	}
	return nil
}

// StorageKey prefers the service-role key, which bypasses row level security
// for the settlement writes.
func (c *Config) StorageKey() string {
	if c.SupabaseKey != "" {
		return c.SupabaseKey
	}
	return c.SupabaseAnonKey
}

func (c *Config) AuditEnabled() bool {
	return c.MongoDBURI != ""
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
