package internal

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	ModeDisk   = "disk"
	ModeMemory = "memory"

	ReplacerClock = "clock"
	ReplacerLRU   = "lru"

	MinPageSize = 512
	MaxPageSize = 32 * 1024 // slot offsets are u16
)

var ErrInvalidConfig = errors.New("config: invalid")

type RelcoreConfig struct {
	AppName string `mapstructure:"app_name"`

	Storage struct {
		Mode        string `mapstructure:"mode"`
		Workdir     string `mapstructure:"workdir"`
		CatalogFile string `mapstructure:"catalog_file"`
		PageSize    int    `mapstructure:"page_size"`
		Checksum    bool   `mapstructure:"checksum"`
	} `mapstructure:"storage"`

	BufferPool struct {
		Capacity int    `mapstructure:"capacity"`
		Replacer string `mapstructure:"replacer"`
	} `mapstructure:"buffer_pool"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "relcore")
	v.SetDefault("storage.mode", ModeDisk)
	v.SetDefault("storage.workdir", "./data")
	v.SetDefault("storage.catalog_file", "catalog.json")
	v.SetDefault("storage.page_size", 4096)
	v.SetDefault("storage.checksum", false)
	v.SetDefault("buffer_pool.capacity", 64)
	v.SetDefault("buffer_pool.replacer", ReplacerClock)
	v.SetDefault("log.level", "info")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("RELCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// DefaultConfig returns the built-in defaults (plus RELCORE_* env overrides).
func DefaultConfig() (*RelcoreConfig, error) {
	return unmarshal(newViper())
}

// LoadConfig reads a YAML config file on top of the defaults.
func LoadConfig(path string) (*RelcoreConfig, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*RelcoreConfig, error) {
	var cfg RelcoreConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *RelcoreConfig) Validate() error {
	switch c.Storage.Mode {
	case ModeDisk, ModeMemory:
	default:
		return fmt.Errorf("%w: storage.mode %q", ErrInvalidConfig, c.Storage.Mode)
	}
	if c.Storage.PageSize < MinPageSize || c.Storage.PageSize > MaxPageSize {
		return fmt.Errorf("%w: storage.page_size %d not in [%d, %d]",
			ErrInvalidConfig, c.Storage.PageSize, MinPageSize, MaxPageSize)
	}
	if c.Storage.CatalogFile == "" {
		return fmt.Errorf("%w: storage.catalog_file is empty", ErrInvalidConfig)
	}
	if c.BufferPool.Capacity <= 0 {
		return fmt.Errorf("%w: buffer_pool.capacity %d", ErrInvalidConfig, c.BufferPool.Capacity)
	}
	switch c.BufferPool.Replacer {
	case ReplacerClock, ReplacerLRU:
	default:
		return fmt.Errorf("%w: buffer_pool.replacer %q", ErrInvalidConfig, c.BufferPool.Replacer)
	}
	return nil
}

// CatalogPath resolves the catalog file against the workdir.
func (c *RelcoreConfig) CatalogPath() string {
	if filepath.IsAbs(c.Storage.CatalogFile) {
		return c.Storage.CatalogFile
	}
	return filepath.Join(c.Storage.Workdir, c.Storage.CatalogFile)
}
