package internal

import (
	"strings"
	"testing"
	"time"
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
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Editor.HistoryLimit != 50 {
		t.Errorf("history limit = %d, want 50", cfg.Editor.HistoryLimit)
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestPersistence_EmptyDriverDefaultsFS(t *testing.T) {
	cfg := PersistenceConfig{FS: FSConfig{Dir: "./maps"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty driver should default to fs: %v", err)
	}
	if cfg.Driver != DriverFS {
		t.Errorf("driver = %q, want %q", cfg.Driver, DriverFS)
	}
}

func TestPersistence_UnknownDriver(t *testing.T) {
	cfg := PersistenceConfig{Driver: "s3", FS: FSConfig{Dir: "./maps"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown driver should fail validation")
	}
}

func TestPersistence_RemoteRequiresURL(t *testing.T) {
	cfg := PersistenceConfig{Driver: DriverRemote, Remote: RemoteConfig{Attempts: 3}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("remote driver without base_url should fail")
	}

	cfg.Remote.BaseURL = "not a url"
	if err := cfg.Validate(); err == nil {
		t.Fatal("remote driver with malformed base_url should fail")
	}

	cfg.Remote.BaseURL = "https://fleet.example.com/api"
	cfg.Remote.Timeout = 5 * time.Second
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid remote config: %v", err)
	}
}

func TestPersistence_RemoteIgnoresFSSection(t *testing.T) {
	cfg := PersistenceConfig{
		Driver: DriverRemote,
		Remote: RemoteConfig{BaseURL: "https://fleet.example.com", Attempts: 1},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("fs.dir should not be required for the remote driver: %v", err)
	}
}

func TestEditorConfig_NegativeThreshold(t *testing.T) {
	cfg := EditorConfig{HistoryLimit: 50, PointThreshold: -1}
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative threshold should fail validation")
	}
}

func TestEditorConfig_SnapOptions(t *testing.T) {
	cfg := EditorConfig{GridSize: 5, PointThreshold: 8, LineThreshold: 4}
	o := cfg.SnapOptions()
	if !o.Grid || o.GridSize != 5 || !o.ToPoint || o.PointThreshold != 8 || !o.ToLine || o.LineThreshold != 4 {
		t.Errorf("unexpected options: %+v", o)
	}

	if (&EditorConfig{}).SnapOptions().Grid {
		t.Error("grid snapping should be off without a grid size")
	}
}
