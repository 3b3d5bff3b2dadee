package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	configFilePathENV = "CONFIG_FILE"
	defaultConfigFile = "configs/values_local.yaml"
)

// WatchItem is one (symbol, resolution) pair warmed up and followed at start.
type WatchItem struct {
	Symbol     string `mapstructure:"symbol"`
	Resolution string `mapstructure:"resolution"`
}

// Config ...
type Config struct {
	Service struct {
		Name     string `mapstructure:"name"`
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"service"`

	UDF struct {
		BaseURL         string        `mapstructure:"base_url"`
		Timeout         time.Duration `mapstructure:"timeout"`
		UpdateFrequency time.Duration `mapstructure:"update_frequency"`
		Countback       int           `mapstructure:"countback"` // live polls and warmup
	} `mapstructure:"udf"`

	Watchlist []WatchItem `mapstructure:"watchlist"`

	Bridge struct {
		Addr string `mapstructure:"addr"`
		Path string `mapstructure:"path"`
	} `mapstructure:"bridge"`

	Health struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"health"`

	Tracing struct {
		Enabled bool   `mapstructure:"enabled"`
		Host    string `mapstructure:"host"`
		Port    int    `mapstructure:"port"`
	} `mapstructure:"tracing"`

	Telegram struct {
		Token  string `mapstructure:"token"`
		ChatID int64  `mapstructure:"chat_id"`
	} `mapstructure:"telegram"`

	Server struct {
		Addr           string        `mapstructure:"addr"`
		CORSOrigins    []string      `mapstructure:"cors_origins"`
		SymbolsFile    string        `mapstructure:"symbols_file"`
		CatalogRefresh time.Duration `mapstructure:"catalog_refresh"` // 0 disables
	} `mapstructure:"server"`

	Storage struct {
		Driver string `mapstructure:"driver"` // sqlite | postgres
		Path   string `mapstructure:"path"`
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"storage"`
}

func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = defaultConfigFile
	}
	return Load(configFileName)
}

// Load reads path (when it exists) on top of the defaults and applies env overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, errors.Wrapf(err, "read config %s", path)
			}
		} else if os.Getenv(configFilePathENV) != "" {
			return nil, errors.Wrapf(err, "config file %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "udf-feed")
	v.SetDefault("service.log_level", "info")

	v.SetDefault("udf.timeout", "10s")
	v.SetDefault("udf.update_frequency", "10s")
	v.SetDefault("udf.countback", 1000)

	v.SetDefault("bridge.addr", ":8090")
	v.SetDefault("bridge.path", "/ws")
	v.SetDefault("health.addr", ":8081")

	v.SetDefault("tracing.host", "localhost")
	v.SetDefault("tracing.port", 6831)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.catalog_refresh", "1h")

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "symbols.db")
}

// bindEnv keeps the short env names the deploy scripts already use.
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("udf.base_url", "UDF_BASE_URL")
	_ = v.BindEnv("telegram.token", "TELEGRAM_TOKEN")
	_ = v.BindEnv("telegram.chat_id", "TELEGRAM_CHAT_ID")
	_ = v.BindEnv("storage.dsn", "DATABASE_DSN")
	_ = v.BindEnv("service.log_level", "LOG_LEVEL")
}

// Validate checks the settings both binaries depend on.
func (c *Config) Validate() error {
	if c.UDF.UpdateFrequency <= 0 {
		return errors.New("udf.update_frequency must be greater than 0")
	}
	if c.UDF.Countback <= 0 {
		return errors.New("udf.countback must be greater than 0")
	}
	if c.UDF.Timeout <= 0 {
		return errors.New("udf.timeout must be greater than 0")
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	for i, w := range c.Watchlist {
		if w.Symbol == "" || w.Resolution == "" {
			return errors.Errorf("watchlist item %d needs symbol and resolution", i)
		}
	}
	return nil
}

// ValidateFeed checks settings only the feed binary needs.
func (c *Config) ValidateFeed() error {
	if strings.TrimSpace(c.UDF.BaseURL) == "" {
		return errors.New("udf.base_url is required")
	}
	return nil
}
