package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestServiceConfigApplyDefaults(t *testing.T) {
	t.Run("empty environment defaults to development", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc"}
		cfg.ApplyDefaults()
		if cfg.Environment != "development" {
			t.Errorf("expected 'development', got %q", cfg.Environment)
		}
		if !cfg.Debug {
			t.Error("expected debug=true for development")
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("expected debug logging in development, got %q", cfg.Logging.Level)
		}
		if cfg.Logging.Service != "svc" {
			t.Errorf("expected logging service to follow name, got %q", cfg.Logging.Service)
		}
	})

	t.Run("production keeps debug false", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc", Environment: "production"}
		cfg.ApplyDefaults()
		if cfg.Debug {
			t.Error("expected debug=false for production")
		}
		if cfg.Logging.Level != "info" {
			t.Errorf("expected info logging, got %q", cfg.Logging.Level)
		}
	})
}

func TestServiceConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServiceConfig
		wantErr bool
		errMsg  string
	}{
		{"valid development", ServiceConfig{Name: "svc", Environment: "development"}, false, ""},
		{"valid production", ServiceConfig{Name: "svc", Environment: "production"}, false, ""},
		{"missing name", ServiceConfig{Environment: "production"}, true, "config.name is required"},
		{"invalid environment", ServiceConfig{Name: "svc", Environment: "invalid"}, true, "config.environment must be one of"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.Logging.ApplyDefaults()
			err := tc.cfg.Validate()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !strings.Contains(err.Error(), tc.errMsg) {
					t.Errorf("expected error containing %q, got %q", tc.errMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

type testConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Flush         struct {
		MinChunkSize int `mapstructure:"min_chunk_size"`
	} `mapstructure:"flush"`
}

func TestLoadConfigWithYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")

	yamlContent := `
name: chatstreamd
environment: staging
flush:
  min_chunk_size: 8
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	var cfg testConfig
	if err := LoadConfig("chatstreamd", &cfg, WithConfigFile(configPath)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Name != "chatstreamd" {
		t.Errorf("expected name 'chatstreamd', got %q", cfg.Name)
	}
	if cfg.Environment != "staging" {
		t.Errorf("expected environment 'staging', got %q", cfg.Environment)
	}
	if cfg.Flush.MinChunkSize != 8 {
		t.Errorf("expected min_chunk_size 8, got %d", cfg.Flush.MinChunkSize)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected defaults applied, got level %q", cfg.Logging.Level)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(configPath, []byte("name: chatstreamd\nflush:\n  min_chunk_size: 8\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("FLUSH_MIN_CHUNK_SIZE", "12")

	var cfg testConfig
	if err := LoadConfig("chatstreamd", &cfg, WithConfigFile(configPath)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Flush.MinChunkSize != 12 {
		t.Errorf("expected env override 12, got %d", cfg.Flush.MinChunkSize)
	}
}

func TestLoadConfigValidationError(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(configPath, []byte("environment: moon\nname: x\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	var cfg testConfig
	err := LoadConfig("chatstreamd", &cfg, WithConfigFile(configPath))
	if err == nil || !strings.Contains(err.Error(), "config.environment") {
		t.Fatalf("expected environment validation error, got %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	var cfg struct {
		Name string `mapstructure:"name"`
	}
	if err := LoadConfig("nonexistent-service", &cfg, WithConfigFile("/nonexistent/path.yml")); err != nil {
		t.Fatalf("expected LoadConfig to succeed with missing file, got %v", err)
	}
}

func TestResolverWithMockFS(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]bool
		wantConf string
		wantEnv  string
	}{
		{
			name:     "cmd directory wins",
			files:    map[string]bool{"./cmd/chatstreamd/config.yml": true, "./config.yml": true},
			wantConf: "./cmd/chatstreamd/config.yml",
		},
		{
			name:     "yaml extension",
			files:    map[string]bool{"./config/config.yaml": true},
			wantConf: "./config/config.yaml",
		},
		{
			name:    "service env file preferred",
			files:   map[string]bool{"./.env": true, "./.env.chatstreamd": true},
			wantEnv: "./.env.chatstreamd",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resolver := &Resolver{FileSystem: &mockFS{files: tc.files}}
			got := resolver.ResolveFiles("chatstreamd", LoaderConfig{})
			if got.ConfigFile != tc.wantConf {
				t.Errorf("config file = %q, want %q", got.ConfigFile, tc.wantConf)
			}
			if got.EnvFile != tc.wantEnv {
				t.Errorf("env file = %q, want %q", got.EnvFile, tc.wantEnv)
			}
		})
	}
}

type mockFS struct {
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool   { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error { return nil }
func (m *mockFS) Getwd() (string, error)    { return "/mock", nil }

func TestGenerateEnvKeyVariants(t *testing.T) {
	got := generateEnvKeyVariants("FLUSH_MIN_CHUNK_SIZE")
	want := map[string]bool{"flush_min_chunk_size": false, "flush.min_chunk_size": false, "flush.min.chunk.size": false}
	for _, v := range got {
		if _, ok := want[v]; ok {
			want[v] = true
		}
	}
	for k, seen := range want {
		if !seen {
			t.Errorf("missing variant %q in %v", k, got)
		}
	}
}

func TestLoaderOptions(t *testing.T) {
	var lc LoaderConfig
	WithFileSystem(&mockFS{})(&lc)
	WithConfigFile("/path/to/config.yml")(&lc)
	WithEnvFile("/path/to/.env")(&lc)
	if lc.FileSystem == nil || lc.ConfigFile != "/path/to/config.yml" || lc.EnvFile != "/path/to/.env" {
		t.Errorf("options not applied: %+v", lc)
	}
}
