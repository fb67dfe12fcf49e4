package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/Alturino/shopbot/internal/log"
)

type Application struct {
	Env      string `mapstructure:"env"       json:"env"`
	Name     string `mapstructure:"name"      json:"name"`
	LogPath  string `mapstructure:"log_path"  json:"log_path"`
	MetricAt string `mapstructure:"metric_at" json:"metric_at"`
}

type Cart struct {
	TtlHours        int    `mapstructure:"ttl_hours"        json:"ttl_hours"`
	DefaultCurrency string `mapstructure:"default_currency" json:"default_currency"`
	ReapIntervalSec int    `mapstructure:"reap_interval_sec" json:"reap_interval_sec"`
}

// Ttl returns the cart time-to-live as a duration, falling back to the
// 72 hour default when unset.
func (c Cart) Ttl() time.Duration {
	if c.TtlHours <= 0 {
		return 72 * time.Hour
	}
	return time.Duration(c.TtlHours) * time.Hour
}

func (c Cart) ReapInterval() time.Duration {
	if c.ReapIntervalSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.ReapIntervalSec) * time.Second
}

func (c Cart) Currency() string {
	if c.DefaultCurrency == "" {
		return "EUR"
	}
	return c.DefaultCurrency
}

type Database struct {
	Name           string `mapstructure:"name"            json:"name"`
	Host           string `mapstructure:"host"            json:"host"`
	MigrationPath  string `mapstructure:"migration_path"  json:"migration_path"`
	Password       string `mapstructure:"password"        json:"password"`
	Username       string `mapstructure:"username"        json:"username"`
	MaxConnections int    `mapstructure:"max_connections" json:"max_connections"`
	MinConnections int    `mapstructure:"min_connections" json:"min_connections"`
	Port           uint16 `mapstructure:"port"            json:"port"`
}

type Cache struct {
	Host     string `mapstructure:"host"     json:"host"`
	Password string `mapstructure:"password" json:"password"`
	Database int    `mapstructure:"database" json:"database"`
	Port     uint16 `mapstructure:"port"     json:"port"`
}

type Otel struct {
	Host string `mapstructure:"host" json:"host"`
	Port int    `mapstructure:"port" json:"port"`
}

type Config struct {
	Database    `mapstructure:"db"          json:"db"`
	Cache       `mapstructure:"cache"       json:"cache"`
	Application `mapstructure:"application" json:"application"`
	Cart        `mapstructure:"cart"        json:"cart"`
	Otel        `mapstructure:"otel"        json:"otel"`
}

var (
	once   sync.Once
	config *Config
)

func InitConfig(c context.Context, filename string) *Config {
	cfg := Config{}
	once.Do(func() {
		logger := zerolog.Ctx(c).
			With().
			Str(log.KeyTag, "main InitConfig").
			Str(log.KeyProcess, "init config").
			Str("filename", filename).
			Logger()

		viper.SetConfigName(filename)
		viper.AddConfigPath("./env")
		viper.SetConfigType("yaml")
		viper.AutomaticEnv()

		logger = logger.With().Str(log.KeyProcess, "reading config").Logger()
		logger.Info().Msg("reading config")
		err := viper.ReadInConfig()
		if err != nil {
			err = fmt.Errorf("error when reading config with error=%w", err)
			logger.Fatal().Err(err).Msg(err.Error())
		}
		logger.Info().Msg("read config")

		logger = logger.With().Str(log.KeyProcess, "unmarshaling config").Logger()
		logger.Info().Msg("unmarshaling config")
		err = viper.Unmarshal(&cfg)
		if err != nil {
			err = fmt.Errorf("error unmarshaling config with error=%w", err)
			logger.Fatal().Err(err).Msg(err.Error())
		}
		config = &cfg
		logger = logger.With().Any(log.KeyConfig, cfg).Logger()
		logger.Info().Msg("unmarshaled config")
	})
	return config
}
