package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v6"
)

// Config holds all application configuration
type Config struct {
	// Database config
	DBDriver   string `env:"DB_DRIVER" envDefault:"postgres"`
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName     string `env:"DB_NAME" envDefault:"rentease"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	DBPath     string `env:"DB_PATH" envDefault:"./rentease.db"` // SQLite database file path

	// Auth config
	JWTSecret      string `env:"JWT_SECRET" envDefault:"rentease_default_secret_key"`
	JWTExpiryHours int    `env:"JWT_EXPIRY_HOURS" envDefault:"24"`

	// App config
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"5000"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Payment config
	RazorpayKey    string `env:"RAZORPAY_KEY"`
	RazorpaySecret string `env:"RAZORPAY_SECRET"`

	// Engagement counters; analytics writes straight to the database when empty
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	AnalyticsFlushInterval time.Duration `env:"ANALYTICS_FLUSH_INTERVAL" envDefault:"5m"`

	// Marketplace fees, in percent
	PlatformFeePercent float64 `env:"PLATFORM_FEE_PERCENT" envDefault:"2"`
	CommissionPercent  float64 `env:"COMMISSION_PERCENT" envDefault:"10"`

	// Seeded by the migrate command when no admin exists
	AdminEmail    string `env:"ADMIN_EMAIL" envDefault:"admin@rentease.in"`
	AdminPhone    string `env:"ADMIN_PHONE" envDefault:"9999999999"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

var AppConfig Config

// pgAliases maps libpq style variables onto our own names.
var pgAliases = map[string]string{
	"PGHOST":     "DB_HOST",
	"PGPORT":     "DB_PORT",
	"PGUSER":     "DB_USER",
	"PGPASSWORD": "DB_PASSWORD",
	"PGDATABASE": "DB_NAME",
}

// Load parses the environment into a Config
func Load() (Config, error) {
	for from, to := range pgAliases {
		if v := os.Getenv(from); v != "" {
			os.Setenv(to, v)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// InitConfig initializes the application configuration
func InitConfig() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	AppConfig = cfg
	return nil
}

// GetJWTExpiration returns JWT expiration time
func GetJWTExpiration() time.Duration {
	return time.Duration(AppConfig.JWTExpiryHours) * time.Hour
}

// IsDevelopment returns true if the application is running in development mode
func IsDevelopment() bool {
	return AppConfig.Environment == "development"
}

// PaymentsEnabled reports whether Razorpay credentials were supplied
func (c Config) PaymentsEnabled() bool {
	return c.RazorpayKey != "" && c.RazorpaySecret != ""
}
