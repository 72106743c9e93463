package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSettings struct {
	CooldownPeriod time.Duration `mapstructure:"cooldown_period"`
	Lines          int           `mapstructure:"lines"`
}

type testConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Engine        testSettings `yaml:"engine" mapstructure:"engine"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestServiceConfigApplyDefaults(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		wantEnv     string
		wantDebug   bool
		wantLevel   string
	}{
		{"empty environment defaults to development", "", "development", true, "debug"},
		{"production keeps debug false", "production", "production", false, "info"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ServiceConfig{Name: "svc", Environment: tt.environment}
			cfg.ApplyDefaults()
			assert.Equal(t, tt.wantEnv, cfg.Environment)
			assert.Equal(t, tt.wantDebug, cfg.Debug)
			assert.Equal(t, tt.wantLevel, cfg.Logging.Level)
		})
	}
}

func TestServiceConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		cfg    ServiceConfig
		errMsg string
	}{
		{"valid", ServiceConfig{Name: "svc", Environment: "staging"}, ""},
		{"missing name", ServiceConfig{Environment: "production"}, "config.name is required"},
		{"invalid environment", ServiceConfig{Name: "svc", Environment: "qa"}, "config.environment must be one of"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.Logging.ApplyDefaults()
			err := tc.cfg.Validate()
			if tc.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.errMsg)
		})
	}
}

func TestLoadConfigWithYAML(t *testing.T) {
	path := writeConfig(t, `
name: multiplier
environment: staging
engine:
  cooldown_period: 250ms
  lines: 3
logging:
  level: warn
  format: json
`)

	var cfg testConfig
	require.NoError(t, LoadConfig("multiplier", &cfg, WithConfigFile(path)))

	assert.Equal(t, "multiplier", cfg.Name)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.CooldownPeriod)
	assert.Equal(t, 3, cfg.Engine.Lines)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, `
name: multiplier
engine:
  lines: 3
`)
	t.Setenv("ENGINE_LINES", "8")

	var cfg testConfig
	require.NoError(t, LoadConfig("multiplier", &cfg, WithConfigFile(path)))
	assert.Equal(t, 8, cfg.Engine.Lines, "env overrides the file")
}

func TestLoadConfigMissingFile(t *testing.T) {
	var cfg testConfig
	assert.NoError(t, LoadConfig("nonexistent-service", &cfg, WithConfigFile("/nonexistent/path.yml")))
}

func TestResolverWithMockFS(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./cmd/my-svc/config.yml": true,
		".env":                    true,
	}}
	resolver := &Resolver{FileSystem: fs}
	files := resolver.ResolveFiles("my-svc", LoaderConfig{})
	assert.Equal(t, "./cmd/my-svc/config.yml", files.ConfigFile)
	assert.Equal(t, ".env", files.EnvFile)

	explicit := resolver.ResolveFiles("my-svc", LoaderConfig{ConfigFile: "/etc/conveyor.yml"})
	assert.Equal(t, "/etc/conveyor.yml", explicit.ConfigFile, "explicit path wins")
}

func TestGenerateEnvKeyVariants(t *testing.T) {
	variants := generateEnvKeyVariants("CONVEYOR_COOLDOWN_PERIOD")
	for _, want := range []string{
		"conveyor_cooldown_period",
		"conveyor.cooldown.period",
		"conveyor.cooldown_period",
	} {
		assert.Contains(t, variants, want)
	}
}

type mockFS struct {
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool   { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error { return nil }
