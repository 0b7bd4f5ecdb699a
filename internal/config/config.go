package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"hempies/coasync/internal/filter"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Square      SquareConfig      `mapstructure:"square"`
	Destination DestinationConfig `mapstructure:"destination"`
	WordPress   WordPressConfig   `mapstructure:"wordpress"`
	Airtable    AirtableConfig    `mapstructure:"airtable"`
	Sync        SyncConfig        `mapstructure:"sync"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Database    DatabaseConfig    `mapstructure:"database"`
}

// ServerConfig holds the control API listen address
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// SquareConfig holds Square catalog API configuration
type SquareConfig struct {
	BaseURL              string `mapstructure:"base_url"`
	AccessToken          string `mapstructure:"access_token"`
	LocationID           string `mapstructure:"location_id"`
	CatalogTimeout       int    `mapstructure:"catalog_timeout"`
	InventoryTimeout     int    `mapstructure:"inventory_timeout"`
	MaxRequestsPerSecond int    `mapstructure:"max_requests_per_second"`
}

// DestinationConfig selects which destination adapter the sync writes to
type DestinationConfig struct {
	Kind string `mapstructure:"kind"` // wordpress or airtable
}

// WordPressConfig holds WooCommerce REST API credentials
type WordPressConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	ConsumerKey    string `mapstructure:"consumer_key"`
	ConsumerSecret string `mapstructure:"consumer_secret"`
}

// AirtableConfig holds Airtable REST API credentials
type AirtableConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	BaseID    string `mapstructure:"base_id"`
	TableName string `mapstructure:"table_name"`
}

// SyncConfig holds sync behavior settings
type SyncConfig struct {
	// ExcludedCategories accepts newline, comma or semicolon separated
	// Square category IDs or names.
	ExcludedCategories string `mapstructure:"excluded_categories"`
	TickInterval       int    `mapstructure:"tick_interval"`
	DailyHour          int    `mapstructure:"daily_hour"`
}

// NotifyConfig holds email notification settings
type NotifyConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Email    string `mapstructure:"email"`
	From     string `mapstructure:"from"`
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	SMTPUser string `mapstructure:"smtp_user"`
	SMTPPass string `mapstructure:"smtp_pass"`
}

// RedisConfig holds Redis connection details for the durable sync state
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	Database int    `mapstructure:"database"`
}

// DatabaseConfig holds the optional sync-run history database
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// Load loads configuration from YAML file with environment variable overrides
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config.yaml is fine when everything comes from the environment.
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "localhost")

	viper.SetDefault("square.base_url", "https://connect.squareup.com")
	viper.SetDefault("square.access_token", "")
	viper.SetDefault("square.location_id", "")
	viper.SetDefault("square.catalog_timeout", 60)
	viper.SetDefault("square.inventory_timeout", 30)
	viper.SetDefault("square.max_requests_per_second", 5)

	viper.SetDefault("destination.kind", "wordpress")

	viper.SetDefault("wordpress.base_url", "")
	viper.SetDefault("wordpress.consumer_key", "")
	viper.SetDefault("wordpress.consumer_secret", "")

	viper.SetDefault("airtable.base_url", "https://api.airtable.com")
	viper.SetDefault("airtable.api_key", "")
	viper.SetDefault("airtable.base_id", "")
	viper.SetDefault("airtable.table_name", "Products")

	viper.SetDefault("sync.excluded_categories", "")
	viper.SetDefault("sync.tick_interval", 60)
	viper.SetDefault("sync.daily_hour", 3)

	viper.SetDefault("notify.enabled", false)
	viper.SetDefault("notify.email", "")
	viper.SetDefault("notify.from", "coasync@localhost")
	viper.SetDefault("notify.smtp_host", "localhost")
	viper.SetDefault("notify.smtp_port", 25)

	viper.SetDefault("redis.host", "")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.database", 0)

	viper.SetDefault("database.host", "")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "coasync")
	viper.SetDefault("database.user", "coasync")
	viper.SetDefault("database.password", "")
}

// ExcludedCategories returns the configured exclusion list as a trimmed,
// non-empty string slice.
func (c *Config) ExcludedCategories() []string {
	return filter.Normalize(c.Sync.ExcludedCategories)
}

// ValidateCredentials reports the credentials a sync cannot start without.
func (c *Config) ValidateCredentials() error {
	if c.Square.AccessToken == "" {
		return fmt.Errorf("square access token is missing")
	}
	switch c.Destination.Kind {
	case "wordpress":
		if c.WordPress.BaseURL == "" || c.WordPress.ConsumerKey == "" || c.WordPress.ConsumerSecret == "" {
			return fmt.Errorf("wordpress credentials are missing")
		}
	case "airtable":
		if c.Airtable.APIKey == "" || c.Airtable.BaseID == "" {
			return fmt.Errorf("airtable credentials are missing")
		}
	default:
		return fmt.Errorf("unknown destination kind: %q", c.Destination.Kind)
	}
	return nil
}
