package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database  DatabaseConfig
	Telegram  TelegramConfig
	Provider  ProviderConfig
	Reconcile ReconcileConfig
	Deposit   DepositConfig
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// TelegramConfig holds bot settings.
type TelegramConfig struct {
	Token string
}

// ProviderConfig holds the payment-provider endpoints and credentials.
type ProviderConfig struct {
	APIURL    string `mapstructure:"api_url"`
	CreateURL string `mapstructure:"create_url"`
	Username  string
	Token     string
}

// ReconcileConfig holds the sweep cadence and deposit expiry.
type ReconcileConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
	ExpirySeconds   int `mapstructure:"expiry_seconds"`
}

// DepositConfig holds top-up limits.
type DepositConfig struct {
	MinAmount    int64 `mapstructure:"min_amount"`
	MaxSurcharge int64 `mapstructure:"max_surcharge"`
}

// Load reads configuration from file and env. Env var overrides use prefix QRISBOT_.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "qrisbot", "qrisbot.db"))
	v.SetDefault("telegram.token", "")
	v.SetDefault("provider.api_url", "https://orkutapi.andyyuda41.workers.dev/api/qris-history")
	v.SetDefault("provider.create_url", "")
	v.SetDefault("provider.username", "")
	v.SetDefault("provider.token", "")
	v.SetDefault("reconcile.interval_seconds", 20)
	v.SetDefault("reconcile.expiry_seconds", 300)
	v.SetDefault("deposit.min_amount", 1000)
	v.SetDefault("deposit.max_surcharge", 300)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("QRISBOT_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "qrisbot"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("QRISBOT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// ValidateBot checks the fields the bot process cannot run without.
// depositwatch only reads the database and skips this.
func (c Config) ValidateBot() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if c.Provider.Username == "" || c.Provider.Token == "" {
		return fmt.Errorf("provider.username and provider.token are required")
	}
	return nil
}
