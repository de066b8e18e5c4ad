package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"

	"github.com/joho/godotenv"
	"github.com/prperemyshlev/hybrid-auth/internal/mail"
	"github.com/sethvargo/go-envconfig"
	"golang.org/x/crypto/bcrypt"
)

// Primary store drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Server        ServerConfig   `env:",prefix=SERVER_"`
	PrimaryDriver string         `env:"PRIMARY_DRIVER,default=postgres"`
	Postgres      PostgresConfig `env:",prefix=POSTGRES_"`
	Redis         RedisConfig    `env:",prefix=REDIS_"`
	StorageDir    string         `env:"STORAGE_DIR,default=./data"`
	Sync          SyncConfig     `env:",prefix=SYNC_"`
	Session       SessionConfig  `env:",prefix=SESSION_"`
	Tokens        TokensConfig   `env:",prefix=TOKENS_"`
	Security      SecurityConfig `env:",prefix=SECURITY_"`
	Mail          MailConfig     `env:",prefix=MAIL_"`
	CORS          CORSConfig     `env:",prefix=CORS_"`
	Env           string         `env:"ENV,default=development"`
}

type ServerConfig struct {
	Port         string   `env:"PORT,default=8080"`
	Host         string   `env:"HOST,default=127.0.0.1"`
	ReadTimeout  Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout Duration `env:"WRITE_TIMEOUT,default=15s"`
}

type PostgresConfig struct {
	Host           string   `env:"HOST,default=localhost"`
	Port           string   `env:"PORT,default=5432"`
	User           string   `env:"USER,default=hybrid_auth"`
	Password       string   `env:"PASSWORD,default=hybrid_auth_password"`
	DBName         string   `env:"DB,default=hybrid_auth_db"`
	SSLMode        string   `env:"SSLMODE,default=disable"`
	ConnectTimeout Duration `env:"CONNECT_TIMEOUT,default=5s"`
	QueryTimeout   Duration `env:"QUERY_TIMEOUT,default=5s"`
	ProbeCache     Duration `env:"PROBE_CACHE,default=2s"`
}

type RedisConfig struct {
	Enabled   bool   `env:"ENABLED,default=true"`
	Host      string `env:"HOST,default=localhost"`
	Port      string `env:"PORT,default=6379"`
	Password  string `env:"PASSWORD,default="`
	DB        int    `env:"DB,default=0"`
	KeyPrefix string `env:"KEY_PREFIX,default=hybrid-auth"`
}

type SyncConfig struct {
	Interval        Duration `env:"INTERVAL,default=300s"`
	PollInterval    Duration `env:"POLL_INTERVAL,default=30s"`
	CleanupInterval Duration `env:"CLEANUP_INTERVAL,default=15m"`
	FailedHistory   int      `env:"FAILED_HISTORY,default=50"`
}

type SessionConfig struct {
	Duration Duration `env:"DURATION,default=1h"`
	Renewal  Duration `env:"RENEWAL,default=1h"`
}

type TokensConfig struct {
	VerificationTTL Duration `env:"VERIFICATION_TTL,default=24h"`
	ResetTTL        Duration `env:"RESET_TTL,default=1h"`
}

type SecurityConfig struct {
	BCryptCost        int      `env:"BCRYPT_COST,default=12"`
	RateLimitRequests int      `env:"RATE_LIMIT_REQUESTS,default=10"`
	RateLimitWindow   Duration `env:"RATE_LIMIT_WINDOW,default=1m"`
	LockoutAttempts   int      `env:"LOCKOUT_ATTEMPTS,default=3"`
	LockoutDuration   Duration `env:"LOCKOUT_DURATION,default=10s"`
	LockoutMax        Duration `env:"LOCKOUT_MAX,default=1h"`
	AdminToken        string   `env:"ADMIN_TOKEN,default="`
}

type MailConfig struct {
	Driver       string `env:"DRIVER,default=log"`
	SMTPHost     string `env:"SMTP_HOST,default="`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUsername string `env:"SMTP_USERNAME,default="`
	SMTPPassword string `env:"SMTP_PASSWORD,default="`
	From         string `env:"FROM,default=no-reply@localhost"`
	AMQPURL      string `env:"AMQP_URL,default="`
	Queue        string `env:"QUEUE,default=auth_emails"`
	AppName      string `env:"APP_NAME,default=Hybrid Auth"`
	VerifyURL    string `env:"VERIFY_URL,default=http://localhost:3000/verify"`
	ResetURL     string `env:"RESET_URL,default=http://localhost:3000/reset-password"`
	LoginURL     string `env:"LOGIN_URL,default=http://localhost:3000/login"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	AllowedMethods []string `env:"ALLOWED_METHODS,default=GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders []string `env:"ALLOWED_HEADERS,default=Content-Type,Authorization,X-Username,X-Admin-Token"`
}

// DSN returns PostgreSQL connection string
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode, int(p.ConnectTimeout.Seconds()))
}

// Address returns Redis connection address
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Load reads an optional .env file and then the environment.
// Variables already set in the environment win over the file.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var config Config

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &config,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if !slices.Contains([]string{DriverPostgres, DriverMemory}, c.PrimaryDriver) {
		return fmt.Errorf("PRIMARY_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.PrimaryDriver)
	}

	if c.Security.BCryptCost < bcrypt.MinCost || c.Security.BCryptCost > bcrypt.MaxCost {
		return fmt.Errorf("SECURITY_BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	if c.StorageDir == "" {
		return fmt.Errorf("STORAGE_DIR must not be empty")
	}

	for name, d := range map[string]Duration{
		"SYNC_POLL_INTERVAL":      c.Sync.PollInterval,
		"SYNC_CLEANUP_INTERVAL":   c.Sync.CleanupInterval,
		"SESSION_DURATION":        c.Session.Duration,
		"TOKENS_VERIFICATION_TTL": c.Tokens.VerificationTTL,
		"TOKENS_RESET_TTL":        c.Tokens.ResetTTL,
	} {
		if d.Duration <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	switch c.Mail.Driver {
	case mail.DriverLog:
	case mail.DriverSMTP:
		if c.Mail.SMTPHost == "" || c.Mail.SMTPUsername == "" || c.Mail.SMTPPassword == "" {
			return fmt.Errorf("MAIL_SMTP_HOST, MAIL_SMTP_USERNAME and MAIL_SMTP_PASSWORD are required for the smtp mail driver")
		}
	case mail.DriverAMQP:
		if c.Mail.AMQPURL == "" {
			return fmt.Errorf("MAIL_AMQP_URL is required for the amqp mail driver")
		}
	default:
		return fmt.Errorf("MAIL_DRIVER must be one of log, smtp, amqp, got %q", c.Mail.Driver)
	}

	return nil
}
