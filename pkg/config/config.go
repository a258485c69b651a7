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
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Library       LibraryConfig
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
	Env          string `envconfig:"LIBRIS_APP_ENV" required:"true"`
	Port         string `envconfig:"LIBRIS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LIBRIS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LIBRIS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LIBRIS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LIBRIS_DB_DSN"`
	Driver string `envconfig:"LIBRIS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LIBRIS_DB_HOST"`
	LegacyPort     int    `envconfig:"LIBRIS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LIBRIS_DB_USER"`
	LegacyPassword string `envconfig:"LIBRIS_DB_PASSWORD"`
	LegacyName     string `envconfig:"LIBRIS_DB_NAME"`
	LegacySSLMode  string `envconfig:"LIBRIS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LIBRIS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LIBRIS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LIBRIS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LIBRIS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LIBRIS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LIBRIS_REDIS_ADDR"`
	Password     string        `envconfig:"LIBRIS_REDIS_PASSWORD"`
	DB           int           `envconfig:"LIBRIS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LIBRIS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LIBRIS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LIBRIS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LIBRIS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LIBRIS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"LIBRIS_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"LIBRIS_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"LIBRIS_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"LIBRIS_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"LIBRIS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"LIBRIS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"LIBRIS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"LIBRIS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"LIBRIS_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"LIBRIS_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"LIBRIS_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"LIBRIS_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"LIBRIS_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"LIBRIS_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"LIBRIS_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LIBRIS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LIBRIS_AUTO_MIGRATE" default:"false"`
}

// LibraryConfig carries the lending policy knobs.
type LibraryConfig struct {
	LoanPeriodDays   int    `envconfig:"LIBRIS_LOAN_PERIOD_DAYS" default:"14"`
	OverdueFeeAmount string `envconfig:"LIBRIS_OVERDUE_FEE_AMOUNT" default:"5.00"`
}

// LoanPeriod returns the default loan duration.
func (l LibraryConfig) LoanPeriod() time.Duration {
	days := l.LoanPeriodDays
	if days <= 0 {
		days = 14
	}
	return time.Duration(days) * 24 * time.Hour
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
