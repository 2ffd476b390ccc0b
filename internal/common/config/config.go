// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Storage       StorageConfig      `mapstructure:"storage"`
	Payment       PaymentConfig      `mapstructure:"payment"`
	Pricing       PricingConfig      `mapstructure:"pricing"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StorageConfig holds settings for the S3-compatible photo store.
type StorageConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"` // optional, for Spaces/R2
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
}

// PaymentConfig holds settings for the mobile-money gateway.
// Simulate toggles the stubbed gateway; production deployments point
// BaseURL at the Daraja API and disable simulation.
type PaymentConfig struct {
	Simulate       bool   `mapstructure:"simulate"`
	Timeout        int    `mapstructure:"timeout"` // milliseconds
	BaseURL        string `mapstructure:"base_url"`
	ConsumerKey    string `mapstructure:"consumer_key"`
	ConsumerSecret string `mapstructure:"consumer_secret"`
	ShortCode      string `mapstructure:"short_code"`
	Passkey        string `mapstructure:"passkey"`
	CallbackURL    string `mapstructure:"callback_url"`
}

// PricingConfig carries the two independent fee tables. The unlock table and
// the listing table must not be conflated.
type PricingConfig struct {
	Unlock  UnlockFees  `mapstructure:"unlock"`
	Listing ListingFees `mapstructure:"listing"`
}

type UnlockFees struct {
	Standard int64 `mapstructure:"standard"`
	Airbnb   int64 `mapstructure:"airbnb"`
	Business int64 `mapstructure:"business"`
}

type ListingFees struct {
	Standard      int64 `mapstructure:"standard"`
	AirbnbMonthly int64 `mapstructure:"airbnb_monthly"`
	Business      int64 `mapstructure:"business"`
}

// NotificationConfig holds settings for payment receipts.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled  bool   `mapstructure:"enabled"`
		SenderID string `mapstructure:"sender_id"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
