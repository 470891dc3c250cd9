package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func TestDefaults_Valid(t *testing.T) {
	d := Defaults()
	require.NoError(t, d.Validate())
	require.Equal(t, "Database", d.Executable)
	require.Equal(t, 100*time.Millisecond, d.PumpInterval)
	require.Equal(t, time.Second, d.TerminateTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "empty executable", mutate: func(c *Config) { c.Executable = "" }, wantErr: "executable is required"},
		{name: "zero pump interval", mutate: func(c *Config) { c.PumpInterval = 0 }, wantErr: "pump_interval must be positive"},
		{name: "negative terminate timeout", mutate: func(c *Config) { c.TerminateTimeout = -time.Second }, wantErr: "terminate_timeout must be positive"},
		{name: "zero input height", mutate: func(c *Config) { c.UI.InputHeight = 0 }, wantErr: "ui.input_height must be at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load(newViper())
	require.NoError(t, err)
	require.Equal(t, "Database", cfg.Executable)
	require.Equal(t, ".", cfg.Dir)
	require.Equal(t, 100*time.Millisecond, cfg.PumpInterval)
	require.True(t, cfg.UI.AltScreen)
	require.Equal(t, 6, cfg.UI.InputHeight)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("executable: FromFile\npump_interval: 250ms\nui:\n  mouse: false\n"), 0o600))
	t.Setenv("QUERYCONSOLE_EXECUTABLE", "FromEnv")
	t.Setenv("QUERYCONSOLE_UI_INPUT_HEIGHT", "3")

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, "FromEnv", cfg.Executable)
	require.Equal(t, 250*time.Millisecond, cfg.PumpInterval)
	require.False(t, cfg.UI.Mouse)
	require.Equal(t, 3, cfg.UI.InputHeight)
}

func TestLoad_InvalidFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("executable: \"\"\n"), 0o600))

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	_, err := Load(v)
	require.Error(t, err)
	require.Contains(t, err.Error(), "executable is required")
}

func TestWriteDefaultConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "executable: Database")
	require.Contains(t, string(data), "pump_interval: 100ms")

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	cfg, err := Load(v)
	require.NoError(t, err)

	want := Defaults()
	require.Equal(t, want.Executable, cfg.Executable)
	require.Equal(t, want.PumpInterval, cfg.PumpInterval)
	require.Equal(t, want.TerminateTimeout, cfg.TerminateTimeout)
	require.Equal(t, want.UI, cfg.UI)
	require.Empty(t, cfg.Args)
}

func TestWriteDefaultConfig_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("executable: Mine\n"), 0o600))

	err := WriteDefaultConfig(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "already exists")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "executable: Mine\n", string(data))
}
