package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// ErrMissingSecretKey is returned when the gateway secret key is not configured
var ErrMissingSecretKey = errors.New("PAYSTACK_SECRET_KEY is not set")

// Config is resolved once at process start and passed to constructors
type Config struct {
	Port                    string
	AppEnv                  string
	DatabaseURL             string
	StoreFile               string
	RedisURL                string
	FirebaseCredentialsPath string

	Paystack PaystackConfig
	Split    SplitConfig
	Mail     MailConfig
	Waha     WahaConfig

	CurrencySymbol string
}

// PaystackConfig holds gateway credentials
type PaystackConfig struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
}

// SplitConfig describes how gross payments are divided with the platform
type SplitConfig struct {
	PlatformSharePercent decimal.Decimal
	SplitCode            string
	SubaccountCode       string
}

// MailConfig is the SMTP relay used for staff notifications
type MailConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

// Configured reports whether every SMTP credential is present
func (m MailConfig) Configured() bool {
	return m.Host != "" && m.Port != "" && m.User != "" && m.Password != ""
}

// WahaConfig points at the WhatsApp HTTP API
type WahaConfig struct {
	BaseURL string
	APIKey  string
}

// Load reads .env (if present) and the process environment.
// A missing gateway secret fails here rather than on the first request.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:                    getEnv(getenv, "PORT", "8080"),
		AppEnv:                  getEnv(getenv, "ENV", "development"),
		DatabaseURL:             getenv("DATABASE_URL"),
		StoreFile:               getenv("PAYMENTS_STORE_FILE"),
		RedisURL:                getenv("REDIS_URL"),
		FirebaseCredentialsPath: getEnv(getenv, "FIREBASE_CREDENTIALS_PATH", "./firebase-service-account.json"),
		Paystack: PaystackConfig{
			SecretKey: strings.TrimSpace(getenv("PAYSTACK_SECRET_KEY")),
			BaseURL:   strings.TrimRight(getEnv(getenv, "PAYSTACK_BASE_URL", "https://api.paystack.co"), "/"),
		},
		Split: SplitConfig{
			SplitCode:      getenv("PAYSTACK_SPLIT_CODE"),
			SubaccountCode: getenv("PAYSTACK_SUBACCOUNT_CODE"),
		},
		Mail: MailConfig{
			Host:     getenv("SMTP_HOST"),
			Port:     getenv("SMTP_PORT"),
			User:     getenv("SMTP_USER"),
			Password: getenv("SMTP_PASS"),
			From:     getenv("EMAIL_FROM"),
		},
		Waha: WahaConfig{
			BaseURL: strings.TrimRight(getEnv(getenv, "WAHA_BASE_URL", "http://waha:3000"), "/"),
			APIKey:  getenv("WAHA_API_KEY"),
		},
		CurrencySymbol: getEnv(getenv, "CURRENCY_SYMBOL", "₦"),
	}

	if cfg.Paystack.SecretKey == "" {
		return nil, ErrMissingSecretKey
	}

	timeout, err := time.ParseDuration(getEnv(getenv, "GATEWAY_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid GATEWAY_TIMEOUT: %w", err)
	}
	cfg.Paystack.Timeout = timeout

	percent, err := decimal.NewFromString(strings.TrimSpace(getEnv(getenv, "PLATFORM_SHARE_PERCENT", "0")))
	if err != nil {
		return nil, fmt.Errorf("invalid PLATFORM_SHARE_PERCENT: %w", err)
	}
	if percent.IsNegative() {
		return nil, fmt.Errorf("PLATFORM_SHARE_PERCENT must not be negative, got %s", percent)
	}
	cfg.Split.PlatformSharePercent = percent

	return cfg, nil
}

// IsProduction reports whether cookies should be marked secure
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(getenv func(string) string, key, fallback string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return fallback
}
