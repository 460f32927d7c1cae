package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type API struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Signal struct {
	BaseInterval         time.Duration `mapstructure:"base_interval"`
	MaxInterval          time.Duration `mapstructure:"max_interval"`
	Decay                float64       `mapstructure:"decay"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
	HandshakeTimeout     time.Duration `mapstructure:"handshake_timeout"`
	WriteTimeout         time.Duration `mapstructure:"write_timeout"`
}

type Config struct {
	LogLevel string `mapstructure:"log_level"`

	UserID   string `mapstructure:"user_id"`
	RoomID   string `mapstructure:"room_id"`
	RoomPass string `mapstructure:"room_pass"`

	DevicePixelRatio float64 `mapstructure:"device_pixel_ratio"`
	ReactionTTL      float64 `mapstructure:"reaction_ttl"`

	API    API    `mapstructure:"api"`
	Signal Signal `mapstructure:"signal"`
}

// Load reads config/config.<env>.yaml, layers command-line flags on top and
// falls back to defaults for anything unset.
func Load(args []string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("log_level", "info")
	v.SetDefault("device_pixel_ratio", 1.0)
	v.SetDefault("reaction_ttl", 10.0)
	v.SetDefault("api.timeout", "15s")
	v.SetDefault("signal.base_interval", "1s")
	v.SetDefault("signal.max_interval", "30s")
	v.SetDefault("signal.decay", 1.5)
	v.SetDefault("signal.max_reconnect_attempts", 0)
	v.SetDefault("signal.handshake_timeout", "10s")
	v.SetDefault("signal.write_timeout", "5s")

	flags := pflag.NewFlagSet("roomclient", pflag.ContinueOnError)
	flags.String("user", "", "local user id")
	flags.String("room", "", "room id to join")
	flags.String("pass", "", "room password")
	flags.String("api-url", "", "platform API base url")
	flags.String("api-token", "", "platform API bearer token")
	flags.String("log-level", "", "log level (trace..error)")
	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	bind := map[string]string{
		"user_id":      "user",
		"room_id":      "room",
		"room_pass":    "pass",
		"api.base_url": "api-url",
		"api.token":    "api-token",
		"log_level":    "log-level",
	}
	for key, name := range bind {
		if f := flags.Lookup(name); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.UserID == "" || cfg.RoomID == "" {
		return nil, fmt.Errorf("user id and room id are required")
	}
	return &cfg, nil
}
