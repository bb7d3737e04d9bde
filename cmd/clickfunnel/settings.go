package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/vinodismyname/mcpclick/config"
)

// Settings holds CLI defaults that can come from a config file or environment.
// Precedence: flags > env (CLICKFUNNEL_*) > config file > defaults.
type Settings struct {
	Steps        []string `mapstructure:"steps"`
	TopN         int      `mapstructure:"top_n"`
	RequireOrder bool     `mapstructure:"require_order"`
}

// DefaultSettings returns the built-in analysis defaults.
func DefaultSettings() *Settings {
	return &Settings{
		Steps: config.DefaultFunnelSteps(),
		TopN:  config.DefaultTopSequences,
	}
}

// LoadSettings loads configuration from file, env, and defaults.
func LoadSettings(cfgFile string) (*Settings, error) {
	v := viper.New()
	v.SetEnvPrefix("CLICKFUNNEL")
	v.AutomaticEnv()

	v.SetDefault("steps", config.DefaultFunnelSteps())
	v.SetDefault("top_n", config.DefaultTopSequences)
	v.SetDefault("require_order", false)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		v.AddConfigPath(filepath.Join(home, ".clickfunnel"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(s.Steps) == 0 {
		s.Steps = config.DefaultFunnelSteps()
	}
	if s.TopN <= 0 {
		s.TopN = config.DefaultTopSequences
	}
	return &s, nil
}
