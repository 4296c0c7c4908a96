package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "SEVAKART"

	AppEnvDev  = "dev"
	AppEnvProd = "production"

	EnvAppEnv   = "SEVAKART_APP_ENV"
	EnvPort     = "SEVAKART_APP_PORT"
	EnvDBDSN    = "SEVAKART_DB_DSN"
	EnvDBHost   = "SEVAKART_DB_HOST"
	EnvDBUser   = "SEVAKART_DB_USER"
	EnvDBName   = "SEVAKART_DB_NAME"
	EnvRedisURL = "SEVAKART_REDIS_URL"

	EnvJWTSecret  = "SEVAKART_JWT_SECRET"
	EnvJWTIssuer  = "SEVAKART_JWT_ISSUER"
	EnvJWTExpMins = "SEVAKART_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID      = "SEVAKART_GCP_PROJECT_ID"
	EnvPubSubWalletTopic = "SEVAKART_PUBSUB_WALLET_TOPIC"
	EnvPubSubWalletSub   = "SEVAKART_PUBSUB_WALLET_SUBSCRIPTION"
	EnvPubSubOrdersTopic = "SEVAKART_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub   = "SEVAKART_PUBSUB_ORDERS_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Referral      ReferralConfig
	Remotes       RemotesConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Reconcile     ReconcileConfig
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
	Env          string `envconfig:"SEVAKART_APP_ENV" required:"true"`
	Port         string `envconfig:"SEVAKART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SEVAKART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SEVAKART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SEVAKART_DB_DSN"`
	Driver string `envconfig:"SEVAKART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SEVAKART_DB_HOST"`
	LegacyPort     int    `envconfig:"SEVAKART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SEVAKART_DB_USER"`
	LegacyPassword string `envconfig:"SEVAKART_DB_PASSWORD"`
	LegacyName     string `envconfig:"SEVAKART_DB_NAME"`
	LegacySSLMode  string `envconfig:"SEVAKART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SEVAKART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SEVAKART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SEVAKART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SEVAKART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SEVAKART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SEVAKART_REDIS_ADDR"`
	Password     string        `envconfig:"SEVAKART_REDIS_PASSWORD"`
	DB           int           `envconfig:"SEVAKART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SEVAKART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SEVAKART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SEVAKART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SEVAKART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SEVAKART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SEVAKART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SEVAKART_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SEVAKART_JWT_EXPIRATION_MINUTES" required:"true"`
}

// Expiration returns the access token TTL configured in minutes.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SEVAKART_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SEVAKART_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SEVAKART_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SEVAKART_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SEVAKART_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"SEVAKART_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"SEVAKART_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"SEVAKART_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"SEVAKART_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"SEVAKART_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"SEVAKART_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SEVAKART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SEVAKART_AUTO_MIGRATE" default:"false"`

	// TxSupported declares whether the wallet ledger and the user balance
	// store share one transactional database. When false the orchestrators
	// run their two writes sequentially and accept the inconsistency window.
	TxSupported bool `envconfig:"SEVAKART_DB_TX_SUPPORTED" default:"true"`
}

type ReferralConfig struct {
	BonusCoins int64 `envconfig:"SEVAKART_REFERRAL_BONUS_COINS" default:"50"`
}

// RemotesConfig holds base URLs for collaborating services when they are
// deployed separately. Empty URL means the local adapter is used.
type RemotesConfig struct {
	UsersURL    string        `envconfig:"SEVAKART_REMOTE_USERS_URL"`
	ProductsURL string        `envconfig:"SEVAKART_REMOTE_PRODUCTS_URL"`
	CartURL     string        `envconfig:"SEVAKART_REMOTE_CART_URL"`
	PaymentsURL string        `envconfig:"SEVAKART_REMOTE_PAYMENTS_URL"`
	Timeout     time.Duration `envconfig:"SEVAKART_REMOTE_TIMEOUT" default:"5s"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"SEVAKART_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"SEVAKART_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	WalletTopic        string `envconfig:"SEVAKART_PUBSUB_WALLET_TOPIC" default:"sk-wallet-events"`
	WalletSubscription string `envconfig:"SEVAKART_PUBSUB_WALLET_SUBSCRIPTION"`
	OrdersTopic        string `envconfig:"SEVAKART_PUBSUB_ORDERS_TOPIC" default:"sk-order-events"`
	OrdersSubscription string `envconfig:"SEVAKART_PUBSUB_ORDERS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SEVAKART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SEVAKART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SEVAKART_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type ReconcileConfig struct {
	Interval  time.Duration `envconfig:"SEVAKART_RECONCILE_INTERVAL" default:"1h"`
	BatchSize int           `envconfig:"SEVAKART_RECONCILE_BATCH_SIZE" default:"200"`
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
