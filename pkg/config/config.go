package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "cookpay"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "COOKPAY_DB_DSN"
	EnvDBHost = "COOKPAY_DB_HOST"
	EnvDBUser = "COOKPAY_DB_USER"
	EnvDBName = "COOKPAY_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Gateway      GatewayConfig
	Settlement   SettlementConfig
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
	Env          string `envconfig:"COOKPAY_APP_ENV" required:"true"`
	Port         string `envconfig:"COOKPAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"COOKPAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"COOKPAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"COOKPAY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"COOKPAY_DB_DSN"`
	Driver string `envconfig:"COOKPAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"COOKPAY_DB_HOST"`
	LegacyPort     int    `envconfig:"COOKPAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"COOKPAY_DB_USER"`
	LegacyPassword string `envconfig:"COOKPAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"COOKPAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"COOKPAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COOKPAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COOKPAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COOKPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COOKPAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the local sqlite driver was selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, "sqlite")
}

type RedisConfig struct {
	URL          string        `envconfig:"COOKPAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"COOKPAY_REDIS_ADDR"`
	Password     string        `envconfig:"COOKPAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"COOKPAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COOKPAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COOKPAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COOKPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COOKPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COOKPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// GatewayConfig wires the mobile-money transfer provider.
type GatewayConfig struct {
	BaseURL         string        `envconfig:"COOKPAY_GATEWAY_BASE_URL" required:"true"`
	APIKey          string        `envconfig:"COOKPAY_GATEWAY_API_KEY" required:"true"`
	WebhookSecret   string        `envconfig:"COOKPAY_GATEWAY_WEBHOOK_SECRET"`
	TransferTimeout time.Duration `envconfig:"COOKPAY_GATEWAY_TRANSFER_TIMEOUT" default:"30s"`
}

// SettlementConfig tunes the clearance and payout policies.
type SettlementConfig struct {
	HoldHours             int           `envconfig:"COOKPAY_SETTLEMENT_HOLD_HOURS" default:"3"`
	MaxPayoutRetries      int           `envconfig:"COOKPAY_SETTLEMENT_MAX_PAYOUT_RETRIES" default:"3"`
	SweepInterval         time.Duration `envconfig:"COOKPAY_SETTLEMENT_SWEEP_INTERVAL" default:"5m"`
	SweepBatchSize        int           `envconfig:"COOKPAY_SETTLEMENT_SWEEP_BATCH_SIZE" default:"200"`
	DefaultCommissionRate string        `envconfig:"COOKPAY_SETTLEMENT_DEFAULT_COMMISSION_RATE" default:"10"`
	Currency              string        `envconfig:"COOKPAY_SETTLEMENT_CURRENCY" default:"XAF"`
}

// HoldDuration converts the configured hold window into a duration.
func (s SettlementConfig) HoldDuration() time.Duration {
	if s.HoldHours <= 0 {
		return 3 * time.Hour
	}
	return time.Duration(s.HoldHours) * time.Hour
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"COOKPAY_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required when the sqlite driver is selected", EnvDBDSN)
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
