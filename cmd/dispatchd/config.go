package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/spf13/viper"

	"github.com/infigaming-com/go-dispatch/dispatch/driver/redis"
)

const envPrefix = "DISPATCH"

type Config struct {
	ServiceName     string        `mapstructure:"SERVICE_NAME"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	Topics          []string      `mapstructure:"TOPICS"`
	Workers         int           `mapstructure:"WORKERS"`
	CallbackTimeout time.Duration `mapstructure:"CALLBACK_TIMEOUT"`
	CommandTimeout  time.Duration `mapstructure:"COMMAND_TIMEOUT"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`

	Redis   redis.Config  `mapstructure:"REDIS"`
	Admin   AdminConfig   `mapstructure:"ADMIN"`
	Metrics MetricsConfig `mapstructure:"METRICS"`
}

type AdminConfig struct {
	Port int64  `mapstructure:"PORT"`
	Mode string `mapstructure:"MODE"`
}

type MetricsConfig struct {
	OTLPEndpoint     string `mapstructure:"OTLP_ENDPOINT"`
	OTLPGRPCEndpoint string `mapstructure:"OTLP_GRPC_ENDPOINT"`
	Environment      string `mapstructure:"ENVIRONMENT"`
}

func (c MetricsConfig) Enabled() bool {
	return c.OTLPEndpoint != "" || c.OTLPGRPCEndpoint != ""
}

// Every key needs a default so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "dispatchd")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TOPICS", []string{})
	v.SetDefault("WORKERS", 16)
	v.SetDefault("CALLBACK_TIMEOUT", 0)
	v.SetDefault("COMMAND_TIMEOUT", 5*time.Second)
	v.SetDefault("SHUTDOWN_TIMEOUT", 15*time.Second)

	v.SetDefault("REDIS.ADDR", "localhost:6379")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)
	v.SetDefault("REDIS.CONNECT_TIMEOUT", 5)

	v.SetDefault("ADMIN.PORT", 8080)
	v.SetDefault("ADMIN.MODE", gin.ReleaseMode)

	v.SetDefault("METRICS.OTLP_ENDPOINT", "")
	v.SetDefault("METRICS.OTLP_GRPC_ENDPOINT", "")
	v.SetDefault("METRICS.ENVIRONMENT", "development")
}

// LoadConfig reads DISPATCH_* environment variables, layered over the YAML
// file at path when one is given.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Redis.Addr == "" {
		return fmt.Errorf("config: REDIS.ADDR is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: WORKERS must be positive, got %d", c.Workers)
	}
	if !lo.Contains([]string{gin.DebugMode, gin.ReleaseMode, gin.TestMode}, c.Admin.Mode) {
		return fmt.Errorf("config: unknown ADMIN.MODE %q", c.Admin.Mode)
	}
	for _, topic := range c.Topics {
		if strings.TrimSpace(topic) == "" {
			return fmt.Errorf("config: TOPICS contains an empty topic")
		}
	}
	return nil
}
