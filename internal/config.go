package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/verbo/internal/bible"
	"github.com/starford/verbo/internal/reader"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Bible     BibleConfig       `yaml:"bible"`
	Data      DataConfig        `yaml:"data"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Auth      AuthConfig        `yaml:"auth"`
	Cipher    CipherConfig      `yaml:"cipher"`
	Reader    ReaderConfig      `yaml:"reader"`
	Generator GeneratorConfig   `yaml:"generator"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validators := []interface{ Validate() error }{
		&c.App, &c.Bible, &c.Data, &c.SQLite, &c.Auth, &c.Cipher, &c.Reader, &c.Generator,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
	// AllowedOrigins restricts WebSocket handshakes; empty accepts any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.AllowedOrigins, validation.Each(is.URL)),
	)
}

// BibleConfig holds the Bible content API settings.
type BibleConfig struct {
	BaseURL  string        `yaml:"base_url"`
	ProxyURL string        `yaml:"proxy_url"`
	APIKey   string        `yaml:"api_key"`
	Edition  string        `yaml:"edition"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Validate validates the Bible configuration.
func (c *BibleConfig) Validate() error {
	if c.Edition == "" {
		c.Edition = bible.DefaultEdition
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.ProxyURL, is.URL),
		validation.Field(&c.Edition, validation.By(func(any) error {
			if !bible.KnownEdition(c.Edition) {
				return fmt.Errorf("unknown edition %q", c.Edition)
			}
			return nil
		})),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// DataConfig holds the directory of the guest-mode state.
type DataConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the data configuration.
func (c *DataConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds the remote store database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// CipherConfig holds the secret the remote notes and chat are encrypted with.
type CipherConfig struct {
	Secret string `yaml:"secret"`
}

// Validate validates the cipher configuration.
func (c *CipherConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Secret, validation.Required, validation.Length(16, 0)),
	)
}

// ReaderConfig holds the chapter loader timings.
type ReaderConfig struct {
	HighlightTimeout time.Duration `yaml:"highlight_timeout"`
	ScrollRetries    int           `yaml:"scroll_retries"`
	ScrollInterval   time.Duration `yaml:"scroll_interval"`
}

// Validate validates the reader configuration.
func (c *ReaderConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.HighlightTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.ScrollRetries, validation.Min(0)),
		validation.Field(&c.ScrollInterval, validation.Min(time.Duration(0))),
	)
}

// Session converts the timings; zero values fall back to the session defaults.
func (c *ReaderConfig) Session() reader.Config {
	return reader.Config{
		HighlightTimeout: c.HighlightTimeout,
		ScrollRetries:    c.ScrollRetries,
		ScrollInterval:   c.ScrollInterval,
	}
}

// GeneratorConfig holds the content generation gateway settings.
type GeneratorConfig struct {
	Endpoint      string        `yaml:"endpoint"`
	ImageEndpoint string        `yaml:"image_endpoint"`
	Token         string        `yaml:"token"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Validate validates the generator configuration.
func (c *GeneratorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Endpoint, validation.Required, is.URL),
		validation.Field(&c.ImageEndpoint, validation.Required, is.URL),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	def := reader.DefaultConfig()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Bible: BibleConfig{
			BaseURL: "https://api.scripture.api.bible/v1",
			Edition: bible.DefaultEdition,
			Timeout: 30 * time.Second,
		},
		Data: DataConfig{
			Path: "./data",
		},
		SQLite: SQLiteConfig{
			Path: "./verbo.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Reader: ReaderConfig{
			HighlightTimeout: def.HighlightTimeout,
			ScrollRetries:    def.ScrollRetries,
			ScrollInterval:   def.ScrollInterval,
		},
		Generator: GeneratorConfig{
			Endpoint:      "http://localhost:8787/generate",
			ImageEndpoint: "http://localhost:8787/image",
			Timeout:       60 * time.Second,
		},
	}
}
