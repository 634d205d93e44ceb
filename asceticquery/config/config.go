// Package config loads runtime settings from defaults, an optional YAML file,
// ASCETICQUERY_* environment variables and bound command line flags, in
// increasing order of precedence.
package config

import (
	"strings"

	"github.com/creasty/defaults"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const EnvPrefix = "ASCETICQUERY"

type Config struct {
	// ChunkSize is the number of elements in-memory sources yield per pull.
	ChunkSize int `mapstructure:"chunk_size" yaml:"chunk_size" default:"64"`
	// PageSize is the number of rows a table source reads per query.
	PageSize  int    `mapstructure:"page_size" yaml:"page_size" default:"256"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" default:"info"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format" default:"console"`
}

// Default returns the configuration with every default applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.Wrap(err, "apply defaults")
	}
	return cfg, nil
}

// Load reads the configuration into v. file may be empty. Flags bound to v
// with BindPFlag before the call take precedence over everything else.
func Load(v *viper.Viper, file string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	v.SetDefault("chunk_size", cfg.ChunkSize)
	v.SetDefault("page_size", cfg.PageSize)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", file)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return errors.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.PageSize <= 0 {
		return errors.Errorf("page_size must be positive, got %d", c.PageSize)
	}
	if _, err := c.level(); err != nil {
		return err
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return errors.Errorf("log_format must be console or json, got %q", c.LogFormat)
	}
	return nil
}

func (c *Config) level() (zapcore.Level, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, errors.Wrapf(err, "log_level %q", c.LogLevel)
	}
	return level, nil
}

// NewLogger builds a logger writing to stderr.
func NewLogger(c *Config) (*zap.Logger, error) {
	level, err := c.level()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
