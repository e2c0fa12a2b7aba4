package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "STOCKCAST"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv             = "STOCKCAST_APP_ENV"
	EnvPort               = "STOCKCAST_APP_PORT"
	EnvLogLevel           = "STOCKCAST_LOG_LEVEL"
	EnvDBDSN              = "STOCKCAST_DB_DSN"
	EnvDBHost             = "STOCKCAST_DB_HOST"
	EnvDBUser             = "STOCKCAST_DB_USER"
	EnvDBName             = "STOCKCAST_DB_NAME"
	EnvDBDriver           = "STOCKCAST_DB_DRIVER"
	EnvRedisURL           = "STOCKCAST_REDIS_URL"
	EnvSourceKind         = "STOCKCAST_SOURCE_KIND"
	EnvSourcePath         = "STOCKCAST_SOURCE_PATH"
	EnvForecastMinPoints  = "STOCKCAST_FORECAST_MIN_POINTS"
	EnvForecastFitTimeout = "STOCKCAST_FORECAST_FIT_TIMEOUT"
	EnvForecastWorkers    = "STOCKCAST_FORECAST_WORKERS"
	EnvMovementTopN       = "STOCKCAST_MOVEMENT_TOP_N"
	EnvFestivalPreset     = "STOCKCAST_FESTIVAL_PRESET"
	EnvFestivalWindows    = "STOCKCAST_FESTIVAL_WINDOWS"
)

// Source kinds accepted by STOCKCAST_SOURCE_KIND.
const (
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
	SourceMySQL    = "mysql"
	SourceBigQuery = "bigquery"
	SourceCSV      = "csv"
	SourceXLSX     = "xlsx"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	GCP      GCPConfig
	BigQuery BigQueryConfig
	PubSub   PubSubConfig
	Source   SourceConfig
	Forecast ForecastConfig
	Movement MovementConfig
	Festival FestivalConfig
	Cache    CacheConfig
	Cron     CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Source.validate(); err != nil {
		return nil, err
	}
	if cfg.Movement.TopN < 0 {
		return nil, fmt.Errorf("%s must be >= 0", EnvMovementTopN)
	}
	if cfg.Source.usesDB() {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOCKCAST_APP_ENV" required:"true"`
	Port         string `envconfig:"STOCKCAST_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOCKCAST_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"STOCKCAST_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"STOCKCAST_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"STOCKCAST_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOCKCAST_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN         string `envconfig:"STOCKCAST_DB_DSN"`
	Driver      string `envconfig:"STOCKCAST_DB_DRIVER" default:"postgres"`
	AutoMigrate bool   `envconfig:"STOCKCAST_DB_AUTO_MIGRATE" default:"false"`

	LegacyHost     string `envconfig:"STOCKCAST_DB_HOST"`
	LegacyPort     int    `envconfig:"STOCKCAST_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOCKCAST_DB_USER"`
	LegacyPassword string `envconfig:"STOCKCAST_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOCKCAST_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOCKCAST_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOCKCAST_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOCKCAST_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOCKCAST_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOCKCAST_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver is the embedded sqlite driver.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), SourceSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"STOCKCAST_REDIS_URL"`
	Address      string        `envconfig:"STOCKCAST_REDIS_ADDR"`
	Password     string        `envconfig:"STOCKCAST_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOCKCAST_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOCKCAST_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOCKCAST_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOCKCAST_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOCKCAST_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOCKCAST_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STOCKCAST_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"STOCKCAST_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STOCKCAST_GOOGLE_APPLICATION_CREDENTIALS"`
}

type BigQueryConfig struct {
	Dataset           string `envconfig:"STOCKCAST_BIGQUERY_DATASET" default:"stockcast"`
	TransactionsTable string `envconfig:"STOCKCAST_BIGQUERY_TRANSACTIONS_TABLE" default:"transactions"`
}

type PubSubConfig struct {
	TransactionsTopic        string `envconfig:"STOCKCAST_PUBSUB_TRANSACTIONS_TOPIC"`
	TransactionsSubscription string `envconfig:"STOCKCAST_PUBSUB_TRANSACTIONS_SUBSCRIPTION"`
}

// SourceConfig selects the transaction store adapter.
type SourceConfig struct {
	Kind     string `envconfig:"STOCKCAST_SOURCE_KIND" default:"postgres"`
	Path     string `envconfig:"STOCKCAST_SOURCE_PATH"`
	Sheet    string `envconfig:"STOCKCAST_SOURCE_SHEET"`
	Table    string `envconfig:"STOCKCAST_SOURCE_TABLE" default:"transactions"`
	MySQLDSN string `envconfig:"STOCKCAST_SOURCE_MYSQL_DSN"`
}

func (s SourceConfig) normalizedKind() string {
	return strings.ToLower(strings.TrimSpace(s.Kind))
}

func (s SourceConfig) usesDB() bool {
	switch s.normalizedKind() {
	case SourcePostgres, SourceSQLite:
		return true
	}
	return false
}

func (s SourceConfig) validate() error {
	switch s.normalizedKind() {
	case SourcePostgres, SourceSQLite, SourceBigQuery:
		return nil
	case SourceCSV, SourceXLSX:
		if strings.TrimSpace(s.Path) == "" {
			return fmt.Errorf("%s is required for %s sources", EnvSourcePath, s.normalizedKind())
		}
		return nil
	case SourceMySQL:
		if strings.TrimSpace(s.MySQLDSN) == "" {
			return fmt.Errorf("STOCKCAST_SOURCE_MYSQL_DSN is required for mysql sources")
		}
		return nil
	default:
		return fmt.Errorf("unsupported %s %q", EnvSourceKind, s.Kind)
	}
}

type ForecastConfig struct {
	MinModelPoints    int           `envconfig:"STOCKCAST_FORECAST_MIN_POINTS" default:"4"`
	FitTimeout        time.Duration `envconfig:"STOCKCAST_FORECAST_FIT_TIMEOUT" default:"5s"`
	Workers           int           `envconfig:"STOCKCAST_FORECAST_WORKERS" default:"4"`
	DefaultScopeLimit int           `envconfig:"STOCKCAST_FORECAST_SCOPE_LIMIT" default:"10"`
	MaxEvaluations    int           `envconfig:"STOCKCAST_FORECAST_MAX_EVALUATIONS" default:"4000"`
}

// MovementConfig sets how many products per category the movement view
// lists. 0 lists every product.
type MovementConfig struct {
	TopN int `envconfig:"STOCKCAST_MOVEMENT_TOP_N" default:"0"`
}

type FestivalConfig struct {
	Preset  string `envconfig:"STOCKCAST_FESTIVAL_PRESET" default:"default"`
	Windows string `envconfig:"STOCKCAST_FESTIVAL_WINDOWS"`
}

type CacheConfig struct {
	TTL time.Duration `envconfig:"STOCKCAST_CACHE_TTL" default:"10m"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"STOCKCAST_CRON_INTERVAL" default:"1h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
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
