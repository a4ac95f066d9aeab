package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/mapforge/internal/geom"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Persistence drivers.
const (
	DriverFS     = "fs"
	DriverRemote = "remote"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	Editor      EditorConfig      `yaml:"editor"`
	Auth        AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Persistence.Validate(); err != nil {
		return err
	}
	if err := c.Catalog.Validate(); err != nil {
		return err
	}
	if err := c.Editor.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
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
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// PersistenceConfig selects where map documents are loaded from and saved
// to.
type PersistenceConfig struct {
	Driver string       `yaml:"driver"`
	FS     FSConfig     `yaml:"fs"`
	Remote RemoteConfig `yaml:"remote"`
}

// Validate validates the persistence configuration. Only the section of the
// selected driver is checked.
func (c *PersistenceConfig) Validate() error {
	if c.Driver == "" {
		c.Driver = DriverFS
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverFS, DriverRemote)),
	); err != nil {
		return err
	}
	if c.Driver == DriverRemote {
		return c.Remote.Validate()
	}
	return c.FS.Validate()
}

// FSConfig holds the map document directory.
type FSConfig struct {
	Dir string `yaml:"dir"`
}

// Validate validates the file-system configuration.
func (c *FSConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// RemoteConfig holds the fleet control service connection.
type RemoteConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Token    string        `yaml:"token"`
	Timeout  time.Duration `yaml:"timeout"`
	Attempts uint          `yaml:"attempts"`
}

// Validate validates the remote configuration.
func (c *RemoteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.Attempts, validation.Required, validation.Max(uint(10))),
	)
}

// CatalogConfig holds the SQLite catalog location.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the catalog configuration.
func (c *CatalogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// EditorConfig tunes every editing session.
type EditorConfig struct {
	HistoryLimit   int     `yaml:"history_limit"`
	GridSize       float64 `yaml:"grid_size"`
	PointThreshold float64 `yaml:"point_threshold"`
	LineThreshold  float64 `yaml:"line_threshold"`
}

// Validate validates the editor configuration.
func (c *EditorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.HistoryLimit, validation.Min(0)),
		validation.Field(&c.GridSize, validation.Min(0.0)),
		validation.Field(&c.PointThreshold, validation.Min(0.0)),
		validation.Field(&c.LineThreshold, validation.Min(0.0)),
	)
}

// SnapOptions returns the default snapping options. Grid snapping is on when
// a grid size is configured.
func (c *EditorConfig) SnapOptions() geom.Options {
	return geom.Options{
		Grid:           c.GridSize > 0,
		GridSize:       c.GridSize,
		ToPoint:        true,
		PointThreshold: c.PointThreshold,
		ToLine:         true,
		LineThreshold:  c.LineThreshold,
	}
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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Persistence: PersistenceConfig{
			Driver: DriverFS,
			FS:     FSConfig{Dir: "./maps"},
			Remote: RemoteConfig{
				Timeout:  30 * time.Second,
				Attempts: 3,
			},
		},
		Catalog: CatalogConfig{
			Path: "./mapforge.db",
		},
		Editor: EditorConfig{
			HistoryLimit:   50,
			GridSize:       0,
			PointThreshold: geom.DefaultThreshold,
			LineThreshold:  geom.DefaultThreshold,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
