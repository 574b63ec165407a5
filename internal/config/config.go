package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode     string        `mapstructure:"mode"`
	Port     int           `mapstructure:"port"`
	LogLevel string        `mapstructure:"log_level"`
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`

	ReadLimit        int64         `mapstructure:"read_limit"`
	PingPeriod       time.Duration `mapstructure:"ping_period"`
	AuthTimeout      time.Duration `mapstructure:"auth_timeout"`
	LivenessInterval time.Duration `mapstructure:"liveness_interval"`
	SendBuffer       int           `mapstructure:"send_buffer"`

	MailboxCapacity int           `mapstructure:"mailbox_capacity"`
	DispatchWorkers int           `mapstructure:"dispatch_workers"`
	NextGameDelay   time.Duration `mapstructure:"next_game_delay"`
	DisconnectGrace time.Duration `mapstructure:"disconnect_grace"`

	RoomRateLimit    int           `mapstructure:"room_rate_limit"`
	RoomRateInterval time.Duration `mapstructure:"room_rate_interval"`

	DatabaseURL string `mapstructure:"database_url"`
	NatsURL     string `mapstructure:"nats_url"`
	NatsSubject string `mapstructure:"nats_subject"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("secret", "change-me")
	v.SetDefault("token_ttl", "24h")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("auth_timeout", "10s")
	v.SetDefault("liveness_interval", "30s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("mailbox_capacity", 16)
	v.SetDefault("dispatch_workers", 8)
	v.SetDefault("next_game_delay", "3s")
	v.SetDefault("disconnect_grace", "30s")
	v.SetDefault("room_rate_limit", 5)
	v.SetDefault("room_rate_interval", "10s")
	v.SetDefault("database_url", "")
	v.SetDefault("nats_url", "")
	v.SetDefault("nats_subject", "hexo.match.ended")
}

// Load reads config/config.<CONFIG_ENV>.yaml (dev by default). A missing
// file is not an error; defaults and HEXO_* variables still apply.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("HEXO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("invalid port %d", c.Port)
	case c.PingPeriod <= 0:
		return fmt.Errorf("ping_period must be positive")
	case c.DispatchWorkers <= 0:
		return fmt.Errorf("dispatch_workers must be positive")
	case c.Secret == "":
		return fmt.Errorf("secret must not be empty")
	}
	return nil
}
