// Package config loads tilawa settings from an optional YAML file,
// TILAWA_* environment variables and explicit overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/metcalfc/tilawa/internal/quran"
)

const appName = "tilawa"

// Config holds the runtime settings.
type Config struct {
	API      API      `mapstructure:"api"`
	Reciters Reciters `mapstructure:"reciters"`
	Player   Player   `mapstructure:"player"`
	Log      Log      `mapstructure:"log"`
}

// API configures the content provider client.
type API struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// Reciters holds the reciter policy.
type Reciters struct {
	Allowed []string `mapstructure:"allowed"` // identifiers offered to the user
	Default string   `mapstructure:"default"` // selected after startup when available
}

// Player selects the external audio player.
type Player struct {
	Command string   `mapstructure:"command"` // "auto", "mpv", "ffplay" or a path
	Args    []string `mapstructure:"args"`    // argument template with {source} and {start}
}

// Log configures the log file.
type Log struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// Load reads configuration. path may be empty to use the default location;
// a missing default file is not an error. overrides are applied last and
// use dotted keys such as "player.command".
func Load(path string, overrides map[string]any) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(ConfigDir())
	}

	v.SetDefault("api.base_url", quran.DefaultBaseURL)
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.user_agent", appName)
	v.SetDefault("reciters.allowed", quran.DefaultReciters)
	v.SetDefault("reciters.default", "ar.alafasy")
	v.SetDefault("player.command", "auto")
	v.SetDefault("player.args", []string{})
	v.SetDefault("log.file", filepath.Join(StateDir(), appName+".log"))
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix(appName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	for key, val := range overrides {
		v.Set(key, val)
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
	if c.API.BaseURL == "" {
		return errors.New("config: api.base_url is empty")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("config: api.timeout must be positive, got %s", c.API.Timeout)
	}
	if len(c.Reciters.Allowed) == 0 {
		return errors.New("config: reciters.allowed is empty")
	}
	return nil
}

// ConfigDir returns XDG_CONFIG_HOME/tilawa or ~/.config/tilawa.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName)
}

// StateDir returns XDG_STATE_HOME/tilawa or ~/.local/state/tilawa.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", appName)
}
