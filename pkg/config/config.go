package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/sakashimaa/ecommerce-orders/pkg/utils"
)

type Config struct {
	Env      string  `yaml:"env" env:"ENV" env-default:"local"`
	LogLevel string  `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	HTTP     HTTP    `yaml:"http"`
	Postgres PG      `yaml:"postgres"`
	Redis    Redis   `yaml:"redis"`
	Kafka    Kafka   `yaml:"kafka"`
	Auth     Auth    `yaml:"auth"`
	Limiter  Limiter `yaml:"limiter"`
	Outbox   Outbox  `yaml:"outbox"`
	Tracing  Tracing `yaml:"tracing"`
}

type HTTP struct {
	Port    string        `yaml:"port" env:"HTTP_PORT" env-default:":3000"`
	Timeout time.Duration `yaml:"timeout" env-default:"4s"`
}

type PG struct {
	URL            string `yaml:"url" env:"DB_URL"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
}

type Redis struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"REDIS_CACHE_TTL" env-default:"10m"`
}

type Kafka struct {
	Brokers      []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`
	GroupID      string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"order-service-group"`
	OrderTopic   string   `yaml:"order_topic" env-default:"order_events"`
	UserTopic    string   `yaml:"user_topic" env-default:"user_events"`
	ProductTopic string   `yaml:"product_topic" env-default:"product_events"`
}

type Auth struct {
	AccessSecret string `yaml:"access_secret" env:"ACCESS_SECRET"`
}

type Limiter struct {
	Max        int           `yaml:"max" env-default:"20"`
	Expiration time.Duration `yaml:"expiration" env-default:"5s"`
}

type Outbox struct {
	BatchSize int           `yaml:"batch_size" env-default:"50"`
	Interval  time.Duration `yaml:"interval" env-default:"500ms"`
}

type Tracing struct {
	ServiceName string `yaml:"service_name" env-default:"order-service"`
	Endpoint    string `yaml:"endpoint" env:"JAEGER_ENDPOINT" env-default:"localhost:4318"`
}

func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	if cfg.Auth.AccessSecret == "" {
		return nil, fmt.Errorf("auth.access_secret is required")
	}

	return &cfg, nil
}

func MustLoad() *Config {
	configPath := utils.ParseWithFallback("CONFIG_PATH", "./config/local.yaml")

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	return cfg
}
