package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App           App           `yaml:"app"`
	HTTP          HTTP          `yaml:"http"`
	Log           Log           `yaml:"log"`
	Postgres      Postgres      `yaml:"postgres"`
	Redis         Redis         `yaml:"redis"`
	Kafka         Kafka         `yaml:"kafka"`
	Consumer      Consumer      `yaml:"consumer"`
	Resilience    Resilience    `yaml:"resilience"`
	Relay         Relay         `yaml:"relay"`
	Sweeper       Sweeper       `yaml:"sweeper"`
	Collaborators Collaborators `yaml:"collaborators"`
}

type App struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"vending-transaction"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
}

type HTTP struct {
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-default:"user"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD" env-default:"password"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB" env-default:"vending_db"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	PoolSize int    `yaml:"pool_size" env:"REDIS_POOL_SIZE" env-default:"10"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"vending-events"`
	GroupID string   `yaml:"group_id" env:"KAFKA_GROUP_ID"`
}

// Consumer controls the transport-level redelivery policy applied by the
// event router before a message is escalated to the dead-letter handler.
type Consumer struct {
	MaxRetries int           `yaml:"max_retries" env:"CONSUMER_MAX_RETRIES" env-default:"5"`
	Backoff    time.Duration `yaml:"backoff" env:"CONSUMER_BACKOFF" env-default:"1s"`
}

// Resilience configures the wrapper around synchronous collaborator calls:
// bulkhead cap, circuit breaker window, and the bounded retry inside it.
type Resilience struct {
	CallTimeout         time.Duration `yaml:"call_timeout" env:"RESILIENCE_CALL_TIMEOUT" env-default:"3s"`
	MaxAttempts         int           `yaml:"max_attempts" env:"RESILIENCE_MAX_ATTEMPTS" env-default:"3"`
	RetryBackoff        time.Duration `yaml:"retry_backoff" env:"RESILIENCE_RETRY_BACKOFF" env-default:"200ms"`
	BreakerInterval     time.Duration `yaml:"breaker_interval" env:"RESILIENCE_BREAKER_INTERVAL" env-default:"30s"`
	BreakerCooldown     time.Duration `yaml:"breaker_cooldown" env:"RESILIENCE_BREAKER_COOLDOWN" env-default:"15s"`
	BreakerMinRequests  uint32        `yaml:"breaker_min_requests" env:"RESILIENCE_BREAKER_MIN_REQUESTS" env-default:"5"`
	BreakerFailureRatio float64       `yaml:"breaker_failure_ratio" env:"RESILIENCE_BREAKER_FAILURE_RATIO" env-default:"0.6"`
	BulkheadLimit       int64         `yaml:"bulkhead_limit" env:"RESILIENCE_BULKHEAD_LIMIT" env-default:"8"`
}

// Relay paces the outbox poller that moves persisted events onto the bus.
type Relay struct {
	Interval  time.Duration `yaml:"interval" env:"RELAY_INTERVAL" env-default:"500ms"`
	BatchSize int           `yaml:"batch_size" env:"RELAY_BATCH_SIZE" env-default:"100"`
}

type Sweeper struct {
	Interval   time.Duration `yaml:"interval" env:"SWEEPER_INTERVAL" env-default:"1m"`
	StuckAfter time.Duration `yaml:"stuck_after" env:"SWEEPER_STUCK_AFTER" env-default:"5m"`
	BatchSize  int           `yaml:"batch_size" env:"SWEEPER_BATCH_SIZE" env-default:"50"`
}

// Collaborators holds base URLs of the synchronous internal services.
type Collaborators struct {
	InventoryURL      string `yaml:"inventory_url" env:"INVENTORY_URL" env-default:"http://localhost:8081"`
	PaymentGatewayURL string `yaml:"payment_gateway_url" env:"PAYMENT_GATEWAY_URL" env-default:"http://localhost:8082"`
	DispenserURL      string `yaml:"dispenser_url" env:"DISPENSER_URL" env-default:"http://localhost:8083"`
	InternalToken     string `yaml:"internal_token" env:"INTERNAL_SERVICE_TOKEN" env-default:"internal"`
}

func New() (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		// fallback to env vars if file not found
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	} else {
		// Allow env vars to override config file
		cleanenv.ReadEnv(cfg)
	}

	return cfg, nil
}
