package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv      = "STOREFRONT_APP_ENV"
	EnvPort        = "STOREFRONT_APP_PORT"
	EnvDBDSN       = "STOREFRONT_DB_DSN"
	EnvDBHost      = "STOREFRONT_DB_HOST"
	EnvDBUser      = "STOREFRONT_DB_USER"
	EnvDBName      = "STOREFRONT_DB_NAME"
	EnvRedisURL    = "STOREFRONT_REDIS_URL"
	EnvJWTSecret   = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer   = "STOREFRONT_JWT_ISSUER"
	EnvJWTExpMins  = "STOREFRONT_JWT_EXPIRATION_MINUTES"
	EnvPaymentsGW  = "STOREFRONT_PAYMENTS_PROVIDER"
	EnvOutboxBroke = "STOREFRONT_OUTBOX_BROKER"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Checkout     CheckoutConfig
	Payments     PaymentsConfig
	Stripe       StripeConfig
	Square       SquareConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Kafka        KafkaConfig
	Outbox       OutboxConfig
	Search       SearchConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Payments.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Outbox.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"STOREFRONT_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOREFRONT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" required:"true"`
}

// RateLimitConfig throttles the mutating shopper endpoints (cart, orders, payment).
type RateLimitConfig struct {
	Window       time.Duration `envconfig:"STOREFRONT_RATE_LIMIT_WINDOW" default:"1m"`
	ShopperLimit int           `envconfig:"STOREFRONT_RATE_LIMIT_SHOPPER_LIMIT" default:"60"`
	IPLimit      int           `envconfig:"STOREFRONT_RATE_LIMIT_IP_LIMIT" default:"120"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

// CheckoutConfig tunes the order lifecycle and the coordination locks.
type CheckoutConfig struct {
	OrderTTL          time.Duration `envconfig:"STOREFRONT_CHECKOUT_ORDER_TTL" default:"30m"`
	ReconcileAfter    time.Duration `envconfig:"STOREFRONT_CHECKOUT_RECONCILE_AFTER" default:"2m"`
	ShippingCostCents int64         `envconfig:"STOREFRONT_CHECKOUT_SHIPPING_COST_CENTS" default:"0"`
	LockTTL           time.Duration `envconfig:"STOREFRONT_CHECKOUT_LOCK_TTL" default:"15s"`
	LockWait          time.Duration `envconfig:"STOREFRONT_CHECKOUT_LOCK_WAIT" default:"5s"`
	CronInterval      time.Duration `envconfig:"STOREFRONT_CHECKOUT_CRON_INTERVAL" default:"1m"`
}

const (
	PaymentsProviderStripe = "stripe"
	PaymentsProviderSquare = "square"
)

type PaymentsConfig struct {
	Provider        string        `envconfig:"STOREFRONT_PAYMENTS_PROVIDER" default:"stripe"`
	DefaultCurrency string        `envconfig:"STOREFRONT_PAYMENTS_CURRENCY" default:"usd"`
	BreakerFailures uint32        `envconfig:"STOREFRONT_PAYMENTS_BREAKER_FAILURES" default:"5"`
	BreakerTimeout  time.Duration `envconfig:"STOREFRONT_PAYMENTS_BREAKER_TIMEOUT" default:"30s"`
	CallTimeout     time.Duration `envconfig:"STOREFRONT_PAYMENTS_CALL_TIMEOUT" default:"10s"`
}

// NormalizedProvider returns the lower-cased provider name.
func (p PaymentsConfig) NormalizedProvider() string {
	provider := strings.ToLower(strings.TrimSpace(p.Provider))
	if provider == "" {
		return PaymentsProviderStripe
	}
	return provider
}

func (p PaymentsConfig) validate() error {
	switch p.NormalizedProvider() {
	case PaymentsProviderStripe, PaymentsProviderSquare:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvPaymentsGW, PaymentsProviderStripe, PaymentsProviderSquare)
	}
}

type StripeConfig struct {
	APIKey string `envconfig:"STOREFRONT_STRIPE_API_KEY"`
	Env    string `envconfig:"STOREFRONT_STRIPE_ENV" default:"test"`
	// WebhookSecret is the endpoint signing secret (whsec_...); empty leaves
	// the webhook route unmounted.
	WebhookSecret string `envconfig:"STOREFRONT_STRIPE_WEBHOOK_SECRET"`
}

// SigningSecret returns the trimmed webhook signing secret.
func (s StripeConfig) SigningSecret() string {
	return strings.TrimSpace(s.WebhookSecret)
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SquareConfig struct {
	AccessToken string `envconfig:"STOREFRONT_SQUARE_ACCESS_TOKEN"`
	LocationID  string `envconfig:"STOREFRONT_SQUARE_LOCATION_ID"`
	Env         string `envconfig:"STOREFRONT_SQUARE_ENV" default:"sandbox"`
	// WebhookSignatureKey and WebhookURL must match the subscription
	// registered in the Square dashboard; Square signs the URL with the body.
	WebhookSignatureKey string `envconfig:"STOREFRONT_SQUARE_WEBHOOK_SIGNATURE_KEY"`
	WebhookURL          string `envconfig:"STOREFRONT_SQUARE_WEBHOOK_URL"`
}

// SigningSecret returns the trimmed webhook signature key.
func (s SquareConfig) SigningSecret() string {
	return strings.TrimSpace(s.WebhookSignatureKey)
}

// NotificationURL returns the URL Square posts to, as registered.
func (s SquareConfig) NotificationURL() string {
	return strings.TrimSpace(s.WebhookURL)
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type GCPConfig struct {
	ProjectID string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"STOREFRONT_PUBSUB_ORDERS_TOPIC" default:"sf-order-events"`
	OrdersSubscription string `envconfig:"STOREFRONT_PUBSUB_ORDERS_SUBSCRIPTION"`
	PaymentsTopic      string `envconfig:"STOREFRONT_PUBSUB_PAYMENTS_TOPIC" default:"sf-payment-events"`
}

type KafkaConfig struct {
	Brokers       []string      `envconfig:"STOREFRONT_KAFKA_BROKERS"`
	OrdersTopic   string        `envconfig:"STOREFRONT_KAFKA_ORDERS_TOPIC" default:"sf.order-events"`
	PaymentsTopic string        `envconfig:"STOREFRONT_KAFKA_PAYMENTS_TOPIC" default:"sf.payment-events"`
	BatchTimeout  time.Duration `envconfig:"STOREFRONT_KAFKA_BATCH_TIMEOUT" default:"50ms"`
	RequiredAcks  int           `envconfig:"STOREFRONT_KAFKA_REQUIRED_ACKS" default:"-1"`
}

const (
	OutboxBrokerPubSub = "pubsub"
	OutboxBrokerKafka  = "kafka"
)

type OutboxConfig struct {
	Broker         string `envconfig:"STOREFRONT_OUTBOX_BROKER" default:"pubsub"`
	BatchSize      int    `envconfig:"STOREFRONT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"STOREFRONT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int    `envconfig:"STOREFRONT_OUTBOX_RETENTION_DAYS" default:"30"`
}

// NormalizedBroker returns the lower-cased broker name.
func (o OutboxConfig) NormalizedBroker() string {
	broker := strings.ToLower(strings.TrimSpace(o.Broker))
	if broker == "" {
		return OutboxBrokerPubSub
	}
	return broker
}

func (o OutboxConfig) validate() error {
	switch o.NormalizedBroker() {
	case OutboxBrokerPubSub, OutboxBrokerKafka:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvOutboxBroke, OutboxBrokerPubSub, OutboxBrokerKafka)
	}
}

type SearchConfig struct {
	SuggestionLimit    int           `envconfig:"STOREFRONT_SEARCH_SUGGESTION_LIMIT" default:"8"`
	SuggestionCacheTTL time.Duration `envconfig:"STOREFRONT_SEARCH_SUGGESTION_CACHE_TTL" default:"5m"`
	MinQueryLength     int           `envconfig:"STOREFRONT_SEARCH_MIN_QUERY_LENGTH" default:"2"`
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
