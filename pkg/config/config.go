package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/fx"
)

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type DBConfig struct {
	// DSN may be left empty to run in cache-only mode: transactions are then
	// tracked in process memory only and the store degrades to not-found.
	DSN string `mapstructure:"dsn"`
}

type Env string

const (
	EnvDev  Env = "dev"
	EnvProd Env = "prod"
)

// MomoConfig carries the collection API credentials and the phone rules of
// the target country.
type MomoConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	SubscriptionKey   string `mapstructure:"subscription_key"`
	APIUser           string `mapstructure:"api_user"`
	APIKey            string `mapstructure:"api_key"`
	TargetEnvironment string `mapstructure:"target_environment"`
	CallbackURL       string `mapstructure:"callback_url"`
	// DefaultCurrency applies only when the caller omits a currency.
	DefaultCurrency string `mapstructure:"default_currency"`
	CountryCode     string `mapstructure:"country_code"`
	SubscriberLen   int    `mapstructure:"subscriber_len"`
}

type Config struct {
	Env         Env          `mapstructure:"env"`
	Server      ServerConfig `mapstructure:"server"`
	Database    DBConfig     `mapstructure:"database"`
	Momo        MomoConfig   `mapstructure:"momo"`
	MetricsAddr string       `mapstructure:"metrics_addr"`
}

// CacheOnly reports whether the service runs without a persistent store.
func (c *Config) CacheOnly() bool {
	return c.Database.DSN == ""
}

func New() (*Config, error) {
	v := viper.New()
	// Allow overriding config file via env:
	// - APP_CONFIG_FILE: absolute or relative file path (e.g., /etc/app/prod.yaml)
	// - APP_CONFIG_NAME: config base name without extension (default: "config")
	if file := os.Getenv("APP_CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
	} else {
		cfgName := os.Getenv("APP_CONFIG_NAME")
		if cfgName == "" {
			cfgName = "config"
		}
		v.SetConfigName(cfgName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("env", "dev")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8888)
	v.SetDefault("metrics_addr", ":90")
	v.SetDefault("momo.base_url", "https://sandbox.momodeveloper.mtn.com")
	v.SetDefault("momo.target_environment", "sandbox")
	v.SetDefault("momo.default_currency", "USD")
	v.SetDefault("momo.country_code", "231")
	v.SetDefault("momo.subscriber_len", 9)

	if err := v.ReadInConfig(); err != nil {
		_ = err
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &c, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
