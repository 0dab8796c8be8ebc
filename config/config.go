package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	DatabaseURL        string        `envconfig:"DATABASE_URL"`
	Port               string        `envconfig:"PORT" default:"8080"`
	GoEnv              string        `envconfig:"GO_ENV" default:"development"`
	LogLevel           string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat          string        `envconfig:"LOG_FORMAT" default:"json"`
	Auth0Domain        string        `envconfig:"AUTH0_DOMAIN"`
	Auth0Audience      string        `envconfig:"AUTH0_AUDIENCE"`
	AWSRegion          string        `envconfig:"AWS_REGION" default:"us-east-1"`
	AWSS3Bucket        string        `envconfig:"AWS_S3_BUCKET"`
	AWSAccessKeyID     string        `envconfig:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string        `envconfig:"AWS_SECRET_ACCESS_KEY"`
	MediaURLTTL        time.Duration `envconfig:"MEDIA_URL_TTL" default:"1h"`
	RedisURL           string        `envconfig:"REDIS_URL"` // empty disables the order lock
	OrderLockTTL       time.Duration `envconfig:"ORDER_LOCK_TTL" default:"30s"`
	KafkaBrokers       []string      `envconfig:"KAFKA_BROKERS"` // empty disables event publishing
	KafkaOrderTopic    string        `envconfig:"KAFKA_ORDER_TOPIC" default:"order-events"`
	OrderNumberPrefix  string        `envconfig:"ORDER_NUMBER_PREFIX" default:"LD"`
	PhoneLength        int           `envconfig:"PHONE_LENGTH" default:"11"`
	CustomerPortalURL  string        `envconfig:"CUSTOMER_PORTAL_URL" default:"http://localhost:8501"`
	OrderSheetFont     string        `envconfig:"ORDER_SHEET_FONT"` // TTF with CJK glyphs for printed sheets
	CORSAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

var appConfig *Config

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	// Determine which environment file to load
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// Try to load environment-specific file first
	envFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envFile); err != nil {
		// If environment-specific file doesn't exist, try .env
		if err := godotenv.Load(); err != nil {
			// In production, environment variables are set directly
			log.Printf("No .env file found, using system environment variables")
		}
	} else {
		log.Printf("Loaded configuration from %s", envFile)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.PhoneLength <= 0 {
		return fmt.Errorf("PHONE_LENGTH must be positive, got %d", c.PhoneLength)
	}
	if c.OrderNumberPrefix == "" {
		return fmt.Errorf("ORDER_NUMBER_PREFIX is required")
	}
	return nil
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// RedisEnabled reports whether a redis URL was configured
func (c *Config) RedisEnabled() bool {
	return c.RedisURL != ""
}

// KafkaEnabled reports whether any kafka broker was configured
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// S3Enabled reports whether media storage is configured
func (c *Config) S3Enabled() bool {
	return c.AWSS3Bucket != ""
}

// GetConfig returns the process-wide configuration
func GetConfig() *Config {
	return appConfig
}

// SetConfig sets the process-wide configuration (main and tests)
func SetConfig(cfg *Config) {
	appConfig = cfg
}
