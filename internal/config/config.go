// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	HTTPPort       string        `envconfig:"HTTP_PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	AppURL         string        `envconfig:"APP_URL" default:"http://localhost:8080"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`

	MongoURI string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDB  string `envconfig:"MONGO_DB" default:"ecommerce"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"order-events"`

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	Bakong Bakong
}

// Bakong holds the payment gateway credentials.
type Bakong struct {
	APIURL     string        `envconfig:"BAKONG_API_URL" default:"https://api.bakong.gov.kh"`
	MerchantID string        `envconfig:"BAKONG_MERCHANT_ID" required:"true"`
	APIKey     string        `envconfig:"BAKONG_API_KEY" required:"true"`
	SecretKey  string        `envconfig:"BAKONG_SECRET_KEY" required:"true"`
	Timeout    time.Duration `envconfig:"BAKONG_TIMEOUT" default:"15s"`
}

// Load reads configuration from the environment. A missing .env file is not
// an error; explicit environment variables always win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
