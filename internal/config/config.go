package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig      `envPrefix:"APP_"`
	Postgres PostgresConfig `envPrefix:"POSTGRES_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Logger   LoggerConfig   `envPrefix:"LOG_"`
	Auth     AuthConfig     `envPrefix:"AUTH_"`
	Mail     MailConfig     `envPrefix:"MAIL_"`
	Push     PushConfig     `envPrefix:"PUSH_"`
	Storage  StorageConfig  `envPrefix:"STORAGE_"`
	Kafka    KafkaConfig    `envPrefix:"KAFKA_"`
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name           string        `env:"NAME" envDefault:"case-service"`
	Env            string        `env:"ENV" envDefault:"development"`
	Host           string        `env:"HOST" envDefault:"0.0.0.0"`
	Port           string        `env:"PORT" envDefault:"8080"`
	Version        string        `env:"VERSION" envDefault:"dev"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN           string        `env:"DSN"`
	MaxConns      int32         `env:"MAX_CONNS" envDefault:"10"`
	MinConns      int32         `env:"MIN_CONNS" envDefault:"2"`
	RunMigrations bool          `env:"RUN_MIGRATIONS" envDefault:"true"`
	ConnMaxIdle   time.Duration `env:"CONN_MAX_IDLE" envDefault:"30s"`
	ConnMaxLife   time.Duration `env:"CONN_MAX_LIFE" envDefault:"5m"`
}

// RedisConfig holds Redis connection values. An empty Addr keeps the
// notification channel in-process.
type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string `env:"LEVEL" envDefault:"info"`
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret        string        `env:"JWT_SECRET" envDefault:"dev-secret"`
	TokenTTL         time.Duration `env:"TOKEN_TTL" envDefault:"168h"`
	BcryptCost       int           `env:"BCRYPT_COST" envDefault:"10"`
	AdminEmail       string        `env:"ADMIN_EMAIL"`
	AdminSecretToken string        `env:"ADMIN_SECRET_TOKEN"`
}

// MailConfig configures the shared mailbox and the sync job.
type MailConfig struct {
	ClientID       string        `env:"CLIENT_ID"`
	ClientSecret   string        `env:"CLIENT_SECRET"`
	RedirectURL    string        `env:"REDIRECT_URL"`
	RefreshToken   string        `env:"REFRESH_TOKEN"`
	MailboxAddress string        `env:"MAILBOX_ADDRESS"`
	SyncInterval   time.Duration `env:"SYNC_INTERVAL" envDefault:"10m"`
	SyncWindow     time.Duration `env:"SYNC_WINDOW" envDefault:"168h"`
	BatchLimit     int           `env:"BATCH_LIMIT" envDefault:"500"`
}

// PushConfig configures Firebase Cloud Messaging.
type PushConfig struct {
	CredentialsFile string `env:"CREDENTIALS_FILE"`
	ProjectID       string `env:"PROJECT_ID"`
}

// StorageConfig configures the object store for uploads.
// Cloudinary wins over BucketURL, which wins over the local Dir.
type StorageConfig struct {
	Dir           string        `env:"DIR" envDefault:"./uploads"`
	PublicBaseURL string        `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080/uploads"`
	BucketURL     string        `env:"BUCKET_URL"`
	CloudinaryURL string        `env:"CLOUDINARY_URL"`
	FetchTimeout  time.Duration `env:"FETCH_TIMEOUT" envDefault:"15s"`
	FetchMaxBytes int           `env:"FETCH_MAX_BYTES" envDefault:"20971520"`
}

// KafkaConfig configures the case event forwarder.
type KafkaConfig struct {
	Brokers []string `env:"BROKERS" envSeparator:","`
	Topic   string   `env:"TOPIC" envDefault:"case-events"`
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.Auth.AdminEmail = strings.ToLower(strings.TrimSpace(cfg.Auth.AdminEmail))
	cfg.Mail.MailboxAddress = strings.ToLower(strings.TrimSpace(cfg.Mail.MailboxAddress))
	if cfg.Mail.BatchLimit <= 0 || cfg.Mail.BatchLimit > 500 {
		cfg.Mail.BatchLimit = 500
	}
	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// GmailConfigured reports whether OAuth credentials for the mailbox are present.
func (m MailConfig) GmailConfigured() bool {
	return m.ClientID != "" && m.ClientSecret != "" && m.RefreshToken != ""
}
