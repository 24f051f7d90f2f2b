package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"

	NotifierLog    = "log"
	NotifierSMTP   = "smtp"
	NotifierRabbit = "rabbitmq"

	minBcryptCost = 10
)

type Config struct {
	//App
	Env string // dev / staging / prod
	//HTTP
	HTTPAddr         string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	//Auth / Security
	JWTSecret  string
	JWTIssuer  string
	TokenTTL   time.Duration
	BcryptCost int

	// Storage
	StoreDriver string
	DBAddr      string
	DBDebug     bool
	DBMigrate   bool
	MongoURI    string
	MongoDB     string

	// Rate limiting (redis optional; limiter fails open without it)
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RateLimitAuth   int
	RateLimitWindow time.Duration

	// Code delivery
	Notifier       string
	RabbitURL      string
	RabbitExchange string
	SMTP           SMTPConfig

	// Dev seeding
	SeedAdminEmail    string
	SeedAdminPassword string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Insecure bool
	Timeout  time.Duration
}

func Load() (*Config, error) {
	// a missing .env is fine; real env vars win
	_ = godotenv.Load()

	cfg := &Config{
		Env:            getEnv("ENV", "dev"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		JWTIssuer:      getEnv("JWT_ISSUER", "account-service"),
		StoreDriver:    strings.ToLower(getEnv("STORE_DRIVER", StorePostgres)),
		MongoDB:        getEnv("MONGO_DB", "accounts"),
		Notifier:       strings.ToLower(getEnv("NOTIFIER", NotifierLog)),
		RabbitExchange: getEnv("RABBIT_EXCHANGE", "city.events"),
	}

	// required values
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("missing required env var: JWT_SECRET")
	}

	var err error
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL must be positive")
	}

	if cfg.BcryptCost, err = getInt("BCRYPT_COST", 12); err != nil {
		return nil, err
	}
	if cfg.BcryptCost < minBcryptCost || cfg.BcryptCost > 31 {
		return nil, fmt.Errorf("BCRYPT_COST must be between %d and 31, got %d", minBcryptCost, cfg.BcryptCost)
	}

	// Storage
	switch cfg.StoreDriver {
	case StorePostgres:
		cfg.DBAddr = os.Getenv("DB_ADDR")
		if cfg.DBAddr == "" {
			return nil, fmt.Errorf("missing required env var: DB_ADDR")
		}
		if !strings.HasPrefix(cfg.DBAddr, "postgres://") && !strings.HasPrefix(cfg.DBAddr, "postgresql://") {
			return nil, fmt.Errorf("DB_ADDR must be a postgres:// url")
		}
	case StoreMongo:
		cfg.MongoURI = os.Getenv("MONGO_URI")
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("missing required env var: MONGO_URI")
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q (postgres|mongo|memory)", cfg.StoreDriver)
	}
	if cfg.DBDebug, err = getBool("DB_DEBUG", false); err != nil {
		return nil, err
	}
	if cfg.DBMigrate, err = getBool("DB_MIGRATE", true); err != nil {
		return nil, err
	}

	// Redis
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.RateLimitAuth, err = getInt("RATE_LIMIT_AUTH", 20); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = getDuration("RATE_LIMIT_WINDOW", 15*time.Minute); err != nil {
		return nil, err
	}

	// Notifier
	switch cfg.Notifier {
	case NotifierLog:
		if cfg.Env == "prod" {
			return nil, fmt.Errorf("NOTIFIER=log is not allowed when ENV=prod")
		}
	case NotifierRabbit:
		cfg.RabbitURL = os.Getenv("RABBIT_URL")
		if cfg.RabbitURL == "" {
			return nil, fmt.Errorf("missing required env var: RABBIT_URL")
		}
	case NotifierSMTP:
		if err := loadSMTP(cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("invalid NOTIFIER %q (log|smtp|rabbitmq)", cfg.Notifier)
	}

	//Timeout values are optional and have a default value if not
	if cfg.HTTPReadTimeout, err = getDuration("HTTP_READ_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPWriteTimeout, err = getDuration("HTTP_WRITE_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPIdleTimeout, err = getDuration("HTTP_IDLE_TIMEOUT", time.Minute); err != nil {
		return nil, err
	}

	cfg.SeedAdminEmail = os.Getenv("SEED_ADMIN_EMAIL")
	cfg.SeedAdminPassword = os.Getenv("SEED_ADMIN_PASSWORD")
	if (cfg.SeedAdminEmail == "") != (cfg.SeedAdminPassword == "") {
		return nil, fmt.Errorf("SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD must be set together")
	}

	return cfg, nil
}

func loadSMTP(cfg *Config) error {
	s := SMTPConfig{
		Host:     os.Getenv("SMTP_HOST"),
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     os.Getenv("SMTP_FROM"),
	}
	if s.Host == "" {
		return fmt.Errorf("missing required env var: SMTP_HOST")
	}
	if s.From == "" {
		return fmt.Errorf("missing required env var: SMTP_FROM")
	}

	var err error
	if s.Port, err = getInt("SMTP_PORT", 587); err != nil {
		return err
	}
	if s.Insecure, err = getBool("SMTP_INSECURE", false); err != nil {
		return err
	}
	if s.Timeout, err = getDuration("SMTP_TIMEOUT", 10*time.Second); err != nil {
		return err
	}
	cfg.SMTP = s
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q: %w", key, v, err)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for %s: %q: %w", key, v, err)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid bool for %s: %q: %w", key, v, err)
	}
	return b, nil
}
