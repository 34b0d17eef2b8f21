package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/habithub/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfigValid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}
}

func TestStorageConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown backend", func(c *Config) { c.Storage.Backend = "postgres" }, "storage"},
		{"sheets without spreadsheet", func(c *Config) { c.Storage.Backend = BackendSheets }, "SpreadsheetID"},
		{"sheets fallback without rpc", func(c *Config) {
			c.Storage.Backend = BackendSheets
			c.Storage.Sheets.SpreadsheetID = "abc"
			c.Storage.Sheets.RPCFallback = true
		}, "requires rpc_url"},
		{"sqlite without path", func(c *Config) { c.Storage.SQLite.Path = "" }, "Path"},
		{"redis without url", func(c *Config) { c.Cache.Backend = CacheRedis }, "URL"},
		{"negative ttl", func(c *Config) { c.Cache.TTL = -time.Second }, "TTL"},
		{"bad timezone", func(c *Config) { c.App.Timezone = "Mars/Olympus" }, "timezone"},
		{"bad port", func(c *Config) { c.App.HTTP.Port = 70000 }, "Port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestSheetsConfigValid(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Storage.Backend = BackendSheets
	cfg.Storage.Sheets.SpreadsheetID = "abc"
	cfg.Storage.Sheets.RPCURL = "https://script.example.com/exec"
	cfg.Storage.Sheets.RPCFallback = true
	cfg.Cache.Backend = CacheRedis
	cfg.Cache.Redis.URL = "redis://localhost:6379/0"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid sheets config: %v", err)
	}
}

func TestLocation(t *testing.T) {
	app := ApplicationConfig{Timezone: "Asia/Seoul"}
	loc, err := app.Location()
	if err != nil {
		t.Fatal(err)
	}
	if loc.String() != "Asia/Seoul" {
		t.Errorf("location = %s", loc)
	}
	app.Timezone = ""
	if loc, _ := app.Location(); loc != time.Local {
		t.Errorf("empty timezone = %s, want Local", loc)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("HABITHUB_TEST_SHEET", "sheet-42")
	yaml := `app:
  log_level: debug
  http:
    port: 9090
storage:
  backend: sheets
  sheets:
    spreadsheet_id: ${HABITHUB_TEST_SHEET}
cache:
  ttl: 90s
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.LogLevel != slog.LevelDebug {
		t.Errorf("log level = %v", cfg.App.LogLevel)
	}
	if cfg.Storage.Sheets.SpreadsheetID != "sheet-42" {
		t.Errorf("spreadsheet id = %q", cfg.Storage.Sheets.SpreadsheetID)
	}
	if cfg.Cache.TTL != 90*time.Second {
		t.Errorf("ttl = %v", cfg.Cache.TTL)
	}
	if cfg.Storage.Sheets.MaxRetries != 2 || cfg.Cache.Backend != CacheMemory {
		t.Error("defaults not kept for absent keys")
	}
}
