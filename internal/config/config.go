// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/fjod/skinet/internal/store"
)

type Config struct {
	Env            string `env:"APP_ENV" envDefault:"development"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPPort       string `env:"HTTP_PORT" envDefault:"8080"`
	GRPCHealthPort string `env:"GRPC_HEALTH_PORT" envDefault:"50051"`
	// AllowedOrigins restricts websocket upgrades; empty allows any origin.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	DB    DBConfig
	Mongo MongoConfig
	Redis RedisConfig
	Kafka KafkaConfig

	StripeSecretKey     string        `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string        `env:"STRIPE_WEBHOOK_SECRET"`
	Currency            string        `env:"STRIPE_CURRENCY" envDefault:"usd"`
	BreakerMaxFailures  uint32        `env:"STRIPE_BREAKER_MAX_FAILURES" envDefault:"5"`
	BreakerOpenTimeout  time.Duration `env:"STRIPE_BREAKER_OPEN_TIMEOUT" envDefault:"30s"`

	JWTSecret string `env:"JWT_SECRET,required"`

	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ProductCacheTTL time.Duration `env:"PRODUCT_CACHE_TTL" envDefault:"10m"`
	// PaymentRateLimit is the number of intent requests per second allowed per client.
	PaymentRateLimit float64       `env:"PAYMENT_RATE_LIMIT" envDefault:"2"`
	PaymentRateBurst int           `env:"PAYMENT_RATE_BURST" envDefault:"5"`
	OutboxTick       time.Duration `env:"OUTBOX_TICK" envDefault:"2s"`
	HealthProbeTick  time.Duration `env:"HEALTH_PROBE_TICK" envDefault:"10s"`
}

type DBConfig struct {
	Driver         string `env:"DB_DRIVER" envDefault:"postgres"`
	Host           string `env:"DB_HOST" envDefault:"localhost"`
	Port           int    `env:"DB_PORT" envDefault:"5432"`
	User           string `env:"DB_USER" envDefault:"postgres"`
	Password       string `env:"DB_PASSWORD" envDefault:"postgres"`
	Name           string `env:"DB_NAME" envDefault:"storefront"`
	Path           string `env:"DB_PATH" envDefault:"storefront.db"`
	MigrationsPath string `env:"MIGRATIONS_PATH"`
}

type MongoConfig struct {
	URI    string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	DBName string `env:"MONGO_DB_NAME" envDefault:"storefront"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	// CacheDB holds cached API responses apart from carts.
	CacheDB int `env:"REDIS_CACHE_DB" envDefault:"1"`
}

type KafkaConfig struct {
	// Brokers empty means outbox events are dispatched in process.
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `env:"KAFKA_TOPIC" envDefault:"storefront-outbox"`
	GroupID string   `env:"KAFKA_GROUP_ID" envDefault:"storefront"`
}

// Load reads the process environment.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DB.Driver {
	case store.DriverPostgres, store.DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if c.IsProduction() && c.StripeSecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is required in production")
	}
	if c.IsProduction() && c.StripeWebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required in production")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func (c *Config) Credentials() *store.Credentials {
	return &store.Credentials{
		Driver:            c.DB.Driver,
		Host:              c.DB.Host,
		Port:              c.DB.Port,
		User:              c.DB.User,
		Password:          c.DB.Password,
		DBName:            c.DB.Name,
		Path:              c.DB.Path,
		MigrationsDirPath: c.DB.MigrationsPath,
	}
}
