package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/verbo/internal/bible"
	pkgconfig "github.com/starford/verbo/pkg/config"
)

func validConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Cipher.Secret = "0123456789abcdef"
	return cfg
}

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
	cfg := validConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_NeedsCipherSecret(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err == nil {
		t.Fatal("default config without a cipher secret should fail")
	}
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("default config with secret should pass: %v", err)
	}
}

func TestBibleConfig_Edition(t *testing.T) {
	cfg := BibleConfig{BaseURL: "https://example.com/v1"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty edition should default: %v", err)
	}
	if cfg.Edition != bible.DefaultEdition {
		t.Errorf("edition = %q, want default", cfg.Edition)
	}

	cfg.Edition = "not-an-edition"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown edition should fail")
	}

	cfg = BibleConfig{BaseURL: "not a url", Edition: bible.DefaultEdition}
	if err := cfg.Validate(); err == nil {
		t.Error("invalid base url should fail")
	}
}

func TestHTTPConfig_AllowedOrigins(t *testing.T) {
	cfg := HTTPConfig{Port: 8080, AllowedOrigins: []string{"http://localhost:5173"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid origin rejected: %v", err)
	}
	cfg.AllowedOrigins = append(cfg.AllowedOrigins, "not a url")
	if err := cfg.Validate(); err == nil {
		t.Error("invalid origin should fail")
	}
}

func TestReaderConfig_Session(t *testing.T) {
	cfg := ReaderConfig{HighlightTimeout: 2 * time.Second, ScrollRetries: 3, ScrollInterval: time.Second}
	got := cfg.Session()
	if got.HighlightTimeout != 2*time.Second || got.ScrollRetries != 3 || got.ScrollInterval != time.Second {
		t.Errorf("session config = %+v", got)
	}
	cfg.ScrollRetries = -1
	if err := cfg.Validate(); err == nil {
		t.Error("negative retries should fail")
	}
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("VERBO_TEST_SECRET", "a-very-long-cipher-secret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `app:
  log_level: debug
  http:
    port: 9090
bible:
  base_url: https://api.example.com/v1
  api_key: key
  timeout: 5s
data:
  path: ./guest
sqlite:
  path: ./remote.db
cipher:
  secret: ${VERBO_TEST_SECRET}
reader:
  highlight_timeout: 3s
  scroll_retries: 10
  scroll_interval: 100ms
generator:
  endpoint: http://localhost:9999/generate
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.App.LogLevel.String() != "DEBUG" {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Cipher.Secret != "a-very-long-cipher-secret" {
		t.Errorf("secret not expanded: %q", cfg.Cipher.Secret)
	}
	if cfg.Bible.Timeout != 5*time.Second || cfg.Bible.Edition != bible.DefaultEdition {
		t.Errorf("bible = %+v", cfg.Bible)
	}
	if cfg.Reader.ScrollInterval != 100*time.Millisecond || cfg.Reader.ScrollRetries != 10 {
		t.Errorf("reader = %+v", cfg.Reader)
	}
	if cfg.Generator.Timeout != 60*time.Second {
		t.Errorf("generator timeout default lost: %v", cfg.Generator.Timeout)
	}
}
