package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Stripe       StripeConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	Reservations ReservationConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"AMAP_APP_ENV" required:"true"`
	Port         string `envconfig:"AMAP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"AMAP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AMAP_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"AMAP_DB_DSN"`
	Driver string `envconfig:"AMAP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"AMAP_DB_HOST"`
	LegacyPort     int    `envconfig:"AMAP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AMAP_DB_USER"`
	LegacyPassword string `envconfig:"AMAP_DB_PASSWORD"`
	LegacyName     string `envconfig:"AMAP_DB_NAME"`
	LegacySSLMode  string `envconfig:"AMAP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AMAP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AMAP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AMAP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AMAP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AMAP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"AMAP_REDIS_ADDR"`
	Password     string        `envconfig:"AMAP_REDIS_PASSWORD"`
	DB           int           `envconfig:"AMAP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AMAP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AMAP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AMAP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AMAP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AMAP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"AMAP_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AMAP_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"AMAP_JWT_EXPIRATION_MINUTES" default:"60"`
}

type StripeConfig struct {
	APIKey string `envconfig:"AMAP_STRIPE_API_KEY"`
	Secret string `envconfig:"AMAP_STRIPE_SECRET"`
	Env    string `envconfig:"AMAP_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type GCPConfig struct {
	ProjectID string `envconfig:"AMAP_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic   string `envconfig:"AMAP_PUBSUB_ORDERS_TOPIC" default:"amap-order-events"`
	PaymentsTopic string `envconfig:"AMAP_PUBSUB_PAYMENTS_TOPIC" default:"amap-payment-events"`
	StockTopic    string `envconfig:"AMAP_PUBSUB_STOCK_TOPIC" default:"amap-stock-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"AMAP_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"AMAP_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"AMAP_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"AMAP_CRON_INTERVAL" default:"1m"`
	LockTTL  time.Duration `envconfig:"AMAP_CRON_LOCK_TTL" default:"5m"`
}

type ReservationConfig struct {
	TTL time.Duration `envconfig:"AMAP_RESERVATION_TTL" default:"15m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"AMAP_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
