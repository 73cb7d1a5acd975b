// Package config loads runtime settings from .env, an optional config file and RENTFLOW_* variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"rentflow/logging"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Log      logging.Config `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	ClientURL       string        `mapstructure:"client_url"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// GatewayConfig selects and configures the payment gateway adapter.
type GatewayConfig struct {
	Provider string        `mapstructure:"provider"`
	Timeout  time.Duration `mapstructure:"timeout"`

	StoreID       string `mapstructure:"store_id"`
	StorePassword string `mapstructure:"store_password"`
	Live          bool   `mapstructure:"live"`
	ValidationURL string `mapstructure:"validation_url"`
	FailURL       string `mapstructure:"fail_url"`
	CancelURL     string `mapstructure:"cancel_url"`

	MidtransServerKey string `mapstructure:"midtrans_server_key"`
}

// KafkaConfig configures the notification producer. Empty Brokers disables Kafka.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			ClientURL:       "http://localhost:5173",
		},
		Gateway: GatewayConfig{
			Provider: "sslcommerz",
			Timeout:  15 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic: "rentflow.notifications",
		},
		Log: logging.Config{
			Level: "info",
		},
	}
}

// Load reads .env (if present), the file named by RENTFLOW_CONFIG (if set) and
// RENTFLOW_* environment variables, in increasing order of precedence.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	v := viper.New()
	setDefaults(v, cfg)

	v.SetEnvPrefix("RENTFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("RENTFLOW_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if len(cfg.Kafka.Brokers) == 1 && strings.Contains(cfg.Kafka.Brokers[0], ",") {
		cfg.Kafka.Brokers = strings.Split(cfg.Kafka.Brokers[0], ",")
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it during Unmarshal.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
	v.SetDefault("server.client_url", cfg.Server.ClientURL)
	v.SetDefault("database.url", cfg.Database.URL)
	v.SetDefault("auth.jwt_secret", cfg.Auth.JWTSecret)
	v.SetDefault("gateway.provider", cfg.Gateway.Provider)
	v.SetDefault("gateway.timeout", cfg.Gateway.Timeout)
	v.SetDefault("gateway.store_id", "")
	v.SetDefault("gateway.store_password", "")
	v.SetDefault("gateway.live", false)
	v.SetDefault("gateway.validation_url", "")
	v.SetDefault("gateway.fail_url", "")
	v.SetDefault("gateway.cancel_url", "")
	v.SetDefault("gateway.midtrans_server_key", "")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", cfg.Kafka.Topic)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.pretty", cfg.Log.Pretty)
}

// Validate checks the settings the API server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	switch c.Gateway.Provider {
	case "sslcommerz":
		if c.Gateway.StoreID == "" || c.Gateway.StorePassword == "" {
			errs = append(errs, errors.New("gateway.store_id and gateway.store_password are required for sslcommerz"))
		}
	case "midtrans":
		if c.Gateway.MidtransServerKey == "" {
			errs = append(errs, errors.New("gateway.midtrans_server_key is required for midtrans"))
		}
	default:
		errs = append(errs, fmt.Errorf("gateway.provider %q is not supported", c.Gateway.Provider))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
