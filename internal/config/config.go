// Package config loads runtime settings from an optional config file and
// NEIGHWATCH_-prefixed environment variables, with sane defaults for every
// knob. Interface selection stays on the command line.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full set of runtime settings.
type Config struct {
	// Capture handle parameters.
	SnapLen     int32         `mapstructure:"snaplen"`
	Promiscuous bool          `mapstructure:"promiscuous"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// Discovery manager parameters.
	EventBuffer int           `mapstructure:"event_buffer"`
	SweepFloor  time.Duration `mapstructure:"sweep_floor"`

	// The TUI owns the terminal, so logs go to a rotating file.
	LogFile  string `mapstructure:"log_file"`
	LogLevel string `mapstructure:"log_level"`

	// ShowVirtual includes virtual adapters in interface listings.
	ShowVirtual bool `mapstructure:"show_virtual"`
}

// Load reads settings from the given file path, or from neighwatch.yaml in
// the working directory and ~/.config/neighwatch when path is empty. A
// missing file is not an error; defaults and environment override apply
// either way.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("snaplen", 1600)
	v.SetDefault("promiscuous", true)
	v.SetDefault("read_timeout", time.Second)
	v.SetDefault("event_buffer", 256)
	v.SetDefault("sweep_floor", 5*time.Second)
	v.SetDefault("log_file", "neighwatch.log")
	v.SetDefault("log_level", "info")
	v.SetDefault("show_virtual", false)

	v.SetEnvPrefix("NEIGHWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("neighwatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/neighwatch")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}
