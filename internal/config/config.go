package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/tuannm99/novabuf/internal/bufferpool"
	"github.com/tuannm99/novabuf/internal/storage"
)

const EnvPrefix = "NOVABUF"

type NovaBufConfig struct {
	AppName string `mapstructure:"app_name"`

	Storage struct {
		Mode    string `mapstructure:"mode"`
		Workdir string `mapstructure:"workdir"`
		Base    string `mapstructure:"base"`
	} `mapstructure:"storage"`

	BufferPool struct {
		PoolSize int    `mapstructure:"pool_size"`
		Replacer string `mapstructure:"replacer"`
	} `mapstructure:"bufferpool"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	Workload struct {
		Pages   int `mapstructure:"pages"`
		Workers int `mapstructure:"workers"`
		Rounds  int `mapstructure:"rounds"`
	} `mapstructure:"workload"`
}

// New returns a viper instance with defaults and NOVABUF_* environment
// overrides (NOVABUF_BUFFERPOOL_POOL_SIZE, ...).
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("app_name", "novabuf")
	v.SetDefault("storage.mode", storage.Disk.String())
	v.SetDefault("storage.workdir", "./data")
	v.SetDefault("storage.base", "pages")
	v.SetDefault("bufferpool.pool_size", bufferpool.DefaultCapacity)
	v.SetDefault("bufferpool.replacer", bufferpool.ReplacerLRU)
	v.SetDefault("log.level", "info")
	v.SetDefault("workload.pages", 1024)
	v.SetDefault("workload.workers", 8)
	v.SetDefault("workload.rounds", 10000)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads the YAML file at path, if any, on top of v and decodes it.
func LoadConfig(v *viper.Viper, path string) (*NovaBufConfig, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg NovaBufConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *NovaBufConfig) Validate() error {
	var errs []error
	if _, err := storage.GetStorageMode(c.Storage.Mode); err != nil {
		errs = append(errs, err)
	}
	if c.BufferPool.PoolSize <= 0 {
		errs = append(errs, fmt.Errorf("bufferpool.pool_size must be positive, got %d", c.BufferPool.PoolSize))
	}
	if _, err := bufferpool.NewReplacer(c.BufferPool.Replacer, 1); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Workload.Workers > c.BufferPool.PoolSize {
		errs = append(errs, fmt.Errorf("workload.workers (%d) must not exceed bufferpool.pool_size (%d)",
			c.Workload.Workers, c.BufferPool.PoolSize))
	}
	return errors.Join(errs...)
}

func (c *NovaBufConfig) LogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}
