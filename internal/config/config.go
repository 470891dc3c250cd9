// Package config provides configuration types, defaults and loading for
// queryconsole.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"queryconsole/internal/log"
)

// EnvPrefix is prepended to every environment override, e.g.
// QUERYCONSOLE_EXECUTABLE or QUERYCONSOLE_UI_ALT_SCREEN.
const EnvPrefix = "QUERYCONSOLE"

// Config holds all configuration options for queryconsole.
type Config struct {
	Executable       string        `mapstructure:"executable" yaml:"executable"`
	Dir              string        `mapstructure:"dir" yaml:"dir"`
	Args             []string      `mapstructure:"args" yaml:"args"`
	PumpInterval     time.Duration `mapstructure:"pump_interval" yaml:"pump_interval"`
	TerminateTimeout time.Duration `mapstructure:"terminate_timeout" yaml:"terminate_timeout"`
	Debug            bool          `mapstructure:"debug" yaml:"debug"`
	LogFile          string        `mapstructure:"log_file" yaml:"log_file"`
	UI               UIConfig      `mapstructure:"ui" yaml:"ui"`
}

// UIConfig holds terminal presentation options.
type UIConfig struct {
	AltScreen   bool `mapstructure:"alt_screen" yaml:"alt_screen"`
	Mouse       bool `mapstructure:"mouse" yaml:"mouse"`
	InputHeight int  `mapstructure:"input_height" yaml:"input_height"` // rows of the query box
}

// Defaults returns a Config that reproduces the stock behavior: run
// ./Database, drain output every 100ms, give the child one second to exit.
func Defaults() Config {
	return Config{
		Executable:       "Database",
		Dir:              ".",
		Args:             []string{},
		PumpInterval:     100 * time.Millisecond,
		TerminateTimeout: time.Second,
		Debug:            false,
		LogFile:          "queryconsole.log",
		UI: UIConfig{
			AltScreen:   true,
			Mouse:       true,
			InputHeight: 6,
		},
	}
}

// SetDefaults registers every default on v so env vars and config files can
// override individual keys.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("executable", d.Executable)
	v.SetDefault("dir", d.Dir)
	v.SetDefault("args", d.Args)
	v.SetDefault("pump_interval", d.PumpInterval)
	v.SetDefault("terminate_timeout", d.TerminateTimeout)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("ui.alt_screen", d.UI.AltScreen)
	v.SetDefault("ui.mouse", d.UI.Mouse)
	v.SetDefault("ui.input_height", d.UI.InputHeight)
}

// Load unmarshals v into a Config and validates it.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	log.Debug(log.CatConfig, "config loaded", "file", v.ConfigFileUsed(), "executable", cfg.Executable, "dir", cfg.Dir)
	return cfg, nil
}

// Validate checks the config for values the session or UI cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Executable == "" {
		errs = append(errs, errors.New("executable is required"))
	}
	if c.PumpInterval <= 0 {
		errs = append(errs, fmt.Errorf("pump_interval must be positive, got %s", c.PumpInterval))
	}
	if c.TerminateTimeout <= 0 {
		errs = append(errs, fmt.Errorf("terminate_timeout must be positive, got %s", c.TerminateTimeout))
	}
	if c.UI.InputHeight < 1 {
		errs = append(errs, fmt.Errorf("ui.input_height must be at least 1, got %d", c.UI.InputHeight))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// DefaultConfigYAML renders Defaults as a YAML document.
func DefaultConfigYAML() ([]byte, error) {
	out, err := yaml.Marshal(Defaults())
	if err != nil {
		return nil, fmt.Errorf("rendering default config: %w", err)
	}
	header := []byte("# queryconsole configuration\n# Every key can also be set as " + EnvPrefix + "_<KEY> (dots become underscores).\n")
	return append(header, out...), nil
}

// WriteDefaultConfig creates a config file at configPath with default
// settings. It refuses to overwrite an existing file.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "writing default config", "path", configPath)

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file %s already exists", configPath)
	}

	data, err := DefaultConfigYAML()
	if err != nil {
		return err
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "created default config", "path", configPath)
	return nil
}
