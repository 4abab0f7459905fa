package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	ProductCache  ProductCacheConfig
	Settlement    SettlementConfig
	Orders        OrdersConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Settlement.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"SHOPLY_APP_ENV" required:"true"`
	Port         string   `envconfig:"SHOPLY_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"SHOPLY_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"SHOPLY_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"SHOPLY_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SHOPLY_DB_DSN"`
	Driver string `envconfig:"SHOPLY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SHOPLY_DB_HOST"`
	LegacyPort     int    `envconfig:"SHOPLY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHOPLY_DB_USER"`
	LegacyPassword string `envconfig:"SHOPLY_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHOPLY_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHOPLY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHOPLY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOPLY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPLY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPLY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver targets SQLite.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, "sqlite")
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPLY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SHOPLY_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPLY_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPLY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPLY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPLY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPLY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPLY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPLY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SHOPLY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SHOPLY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SHOPLY_JWT_EXPIRATION_MINUTES" required:"true"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SHOPLY_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SHOPLY_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SHOPLY_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SHOPLY_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SHOPLY_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"SHOPLY_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"SHOPLY_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"SHOPLY_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"SHOPLY_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"SHOPLY_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"SHOPLY_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SHOPLY_AUTO_MIGRATE" default:"false"`
}

type ProductCacheConfig struct {
	TTL time.Duration `envconfig:"SHOPLY_PRODUCT_CACHE_TTL" default:"5m"`
}

// SettlementConfig tunes the background payment settlement worker.
type SettlementConfig struct {
	MinDelay    time.Duration `envconfig:"SHOPLY_SETTLEMENT_MIN_DELAY" default:"500ms"`
	MaxDelay    time.Duration `envconfig:"SHOPLY_SETTLEMENT_MAX_DELAY" default:"3s"`
	SuccessRate float64       `envconfig:"SHOPLY_SETTLEMENT_SUCCESS_RATE" default:"0.8"`
	Workers     int           `envconfig:"SHOPLY_SETTLEMENT_WORKERS" default:"1"`
}

func (s SettlementConfig) validate() error {
	if s.MinDelay < 0 || s.MaxDelay < s.MinDelay {
		return fmt.Errorf("settlement delay bounds invalid: min=%s max=%s", s.MinDelay, s.MaxDelay)
	}
	if s.SuccessRate < 0 || s.SuccessRate > 1 {
		return fmt.Errorf("settlement success rate must be within [0,1], got %v", s.SuccessRate)
	}
	if s.Workers < 1 {
		return fmt.Errorf("settlement workers must be at least 1, got %d", s.Workers)
	}
	return nil
}

// OrdersConfig carries order lifecycle policy switches.
type OrdersConfig struct {
	// AllowCancelPaid keeps the legacy behavior of cancelling orders whose
	// payment already settled. Flip off to reject those cancellations.
	AllowCancelPaid bool `envconfig:"SHOPLY_ORDERS_ALLOW_CANCEL_PAID" default:"true"`
	// StrictStatusTransitions rejects administrative status updates that break
	// the Pending -> Shipped -> Delivered/Cancelled table.
	StrictStatusTransitions bool `envconfig:"SHOPLY_ORDERS_STRICT_STATUS_TRANSITIONS" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = "file:shoply.db?_fk=1"
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
