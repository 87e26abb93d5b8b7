package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	Provisioning ProvisioningConfig
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
	Env          string `envconfig:"BRICKFOLIO_APP_ENV" required:"true"`
	Port         string `envconfig:"BRICKFOLIO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BRICKFOLIO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BRICKFOLIO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BRICKFOLIO_DB_DSN"`
	Driver string `envconfig:"BRICKFOLIO_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"BRICKFOLIO_DB_HOST"`
	Port     int    `envconfig:"BRICKFOLIO_DB_PORT" default:"5432"`
	User     string `envconfig:"BRICKFOLIO_DB_USER"`
	Password string `envconfig:"BRICKFOLIO_DB_PASSWORD"`
	Name     string `envconfig:"BRICKFOLIO_DB_NAME"`
	SSLMode  string `envconfig:"BRICKFOLIO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BRICKFOLIO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BRICKFOLIO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BRICKFOLIO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BRICKFOLIO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BRICKFOLIO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BRICKFOLIO_REDIS_ADDR"`
	Password     string        `envconfig:"BRICKFOLIO_REDIS_PASSWORD"`
	DB           int           `envconfig:"BRICKFOLIO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BRICKFOLIO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BRICKFOLIO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BRICKFOLIO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BRICKFOLIO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BRICKFOLIO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BRICKFOLIO_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BRICKFOLIO_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BRICKFOLIO_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"BRICKFOLIO_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"BRICKFOLIO_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"BRICKFOLIO_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"BRICKFOLIO_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"BRICKFOLIO_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BRICKFOLIO_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey             string `envconfig:"BRICKFOLIO_STRIPE_API_KEY"`
	Secret             string `envconfig:"BRICKFOLIO_STRIPE_SECRET"`
	Env                string `envconfig:"BRICKFOLIO_STRIPE_ENV" default:"test"`
	CheckoutSuccessURL string `envconfig:"BRICKFOLIO_STRIPE_CHECKOUT_SUCCESS_URL"`
	CheckoutCancelURL  string `envconfig:"BRICKFOLIO_STRIPE_CHECKOUT_CANCEL_URL"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// ProvisioningConfig tunes the webhook reconciliation pipeline.
type ProvisioningConfig struct {
	CorrelationWindow  time.Duration `envconfig:"BRICKFOLIO_PROVISIONING_CORRELATION_WINDOW" default:"1h"`
	SignatureTolerance time.Duration `envconfig:"BRICKFOLIO_PROVISIONING_SIGNATURE_TOLERANCE" default:"5m"`
	EventGuardTTL      time.Duration `envconfig:"BRICKFOLIO_PROVISIONING_EVENT_GUARD_TTL" default:"720h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	parts := map[string]string{
		"BRICKFOLIO_DB_HOST": db.Host,
		"BRICKFOLIO_DB_USER": db.User,
		"BRICKFOLIO_DB_NAME": db.Name,
	}
	for _, env := range []string{"BRICKFOLIO_DB_HOST", "BRICKFOLIO_DB_USER", "BRICKFOLIO_DB_NAME"} {
		if parts[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either BRICKFOLIO_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
