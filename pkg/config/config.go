// Package config provides a reusable loader for Floyd runtime configuration
// files and environment variables.
//
// Version: v0.1.0
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/marcusz/Floyd-sub000/pkg/utils"
)

const Version = "v0.1.0"

// Config is the unified configuration for a Floyd runtime: which
// collection backends a loaded program uses, whether the allocation
// tracer stays populated, stack sizing, and logging.
type Config struct {
	VM struct {
		VectorBackend string `mapstructure:"vector_backend" json:"vector_backend"` // "hamt" | "carray"
		DictBackend   string `mapstructure:"dict_backend" json:"dict_backend"`     // "hamt" | "cppmap"
		Trace         bool   `mapstructure:"trace" json:"trace"`
		StackCapacity int    `mapstructure:"stack_capacity" json:"stack_capacity"`
	} `mapstructure:"vm" json:"vm"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and
// returned. env selects an additional file (e.g. "production") merged on
// top of the default; it is ignored if empty.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // environment variables named after config keys (no prefix) override file values

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the FLOYD_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("FLOYD_ENV", ""))
}

// Default returns a Config with the same defaults internal/vm.DefaultConfig
// uses, for callers that don't need a config file (e.g. library embedding).
func Default() *Config {
	var c Config
	c.VM.VectorBackend = "hamt"
	c.VM.DictBackend = "hamt"
	c.VM.StackCapacity = 4096
	c.Logging.Level = "info"
	return &c
}

// ParseBackend normalizes a backend name from config/CLI input.
func ParseBackend(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
