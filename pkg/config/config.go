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
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Outbox        OutboxConfig
	Mail          MailConfig
	CORS          CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RETAILHIVE_APP_ENV" required:"true"`
	Port         string `envconfig:"RETAILHIVE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"RETAILHIVE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RETAILHIVE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"RETAILHIVE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"RETAILHIVE_DB_DSN"`
	Driver string `envconfig:"RETAILHIVE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"RETAILHIVE_DB_HOST"`
	Port     int    `envconfig:"RETAILHIVE_DB_PORT" default:"5432"`
	User     string `envconfig:"RETAILHIVE_DB_USER"`
	Password string `envconfig:"RETAILHIVE_DB_PASSWORD"`
	Name     string `envconfig:"RETAILHIVE_DB_NAME"`
	SSLMode  string `envconfig:"RETAILHIVE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RETAILHIVE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RETAILHIVE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RETAILHIVE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RETAILHIVE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// UsesSQLite reports whether the configured driver targets SQLite.
func (db DBConfig) UsesSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"RETAILHIVE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"RETAILHIVE_REDIS_ADDR"`
	Password     string        `envconfig:"RETAILHIVE_REDIS_PASSWORD"`
	DB           int           `envconfig:"RETAILHIVE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RETAILHIVE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RETAILHIVE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RETAILHIVE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RETAILHIVE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RETAILHIVE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"RETAILHIVE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"RETAILHIVE_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"RETAILHIVE_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"RETAILHIVE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"RETAILHIVE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"RETAILHIVE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"RETAILHIVE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"RETAILHIVE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"RETAILHIVE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow           time.Duration `envconfig:"RETAILHIVE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginIdentityLimit    int           `envconfig:"RETAILHIVE_AUTH_RATE_LIMIT_LOGIN_IDENTITY_LIMIT" default:"5"`
	LoginIPLimit          int           `envconfig:"RETAILHIVE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow        time.Duration `envconfig:"RETAILHIVE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterIdentityLimit int           `envconfig:"RETAILHIVE_AUTH_RATE_LIMIT_REGISTER_IDENTITY_LIMIT" default:"3"`
	RegisterIPLimit       int           `envconfig:"RETAILHIVE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"RETAILHIVE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"RETAILHIVE_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	ConsumerIdempotencyTTL time.Duration `envconfig:"RETAILHIVE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"RETAILHIVE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"RETAILHIVE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"RETAILHIVE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"RETAILHIVE_PUBSUB_ORDERS_TOPIC" default:"rh-order-events"`
	CatalogTopic             string `envconfig:"RETAILHIVE_PUBSUB_CATALOG_TOPIC" default:"rh-catalog-events"`
	NotificationSubscription string `envconfig:"RETAILHIVE_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"rh-notifications"`
	CatalogNotificationSub   string `envconfig:"RETAILHIVE_PUBSUB_CATALOG_NOTIFICATION_SUBSCRIPTION" default:"rh-catalog-notifications"`
	AnalyticsSubscription    string `envconfig:"RETAILHIVE_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"rh-analytics"`
}

type BigQueryConfig struct {
	Dataset          string `envconfig:"RETAILHIVE_BIGQUERY_DATASET" default:"retailhive"`
	OrderEventsTable string `envconfig:"RETAILHIVE_BIGQUERY_ORDER_EVENTS_TABLE" default:"order_events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"RETAILHIVE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"RETAILHIVE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"RETAILHIVE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"RETAILHIVE_OUTBOX_RETENTION_DAYS" default:"30"`
}

type MailConfig struct {
	Host     string `envconfig:"RETAILHIVE_SMTP_HOST"`
	Port     int    `envconfig:"RETAILHIVE_SMTP_PORT" default:"587"`
	Username string `envconfig:"RETAILHIVE_SMTP_USERNAME"`
	Password string `envconfig:"RETAILHIVE_SMTP_PASSWORD"`
	From     string `envconfig:"RETAILHIVE_MAIL_FROM" default:"noreply@retailhive.com"`
}

// Enabled reports whether an SMTP relay is configured.
func (m MailConfig) Enabled() bool {
	return strings.TrimSpace(m.Host) != ""
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"RETAILHIVE_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DBDriverSQLite
		if db.DSN == "" {
			db.DSN = defaultSQLiteDSN
		}
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
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
