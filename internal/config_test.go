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
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestRemoteConfig_EmptyOwnerRepoIsValid(t *testing.T) {
	// Local-only mode: the engine queues until a repository is configured.
	cfg := RemoteConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty remote config should pass: %v", err)
	}
	if cfg.APIBase != DefaultAPIBase {
		t.Errorf("api base = %q, want default", cfg.APIBase)
	}
	if cfg.Branch != "main" {
		t.Errorf("branch = %q, want main", cfg.Branch)
	}
}

func TestRemoteConfig_Target(t *testing.T) {
	cfg := RemoteConfig{Owner: "alice", Repo: "notes", Branch: "trunk"}
	target := cfg.Target()
	if target.Owner != "alice" || target.Repo != "notes" || target.Branch != "trunk" {
		t.Errorf("target = %+v", target)
	}
}

func TestRemoteConfig_AuthHeader(t *testing.T) {
	cfg := RemoteConfig{}
	if cfg.HasAuthentication() {
		t.Error("empty token should not report authentication")
	}
	if _, ok := cfg.AuthHeader(); ok {
		t.Error("empty token should not produce a header")
	}

	cfg.Token = "ghp_test"
	header, ok := cfg.AuthHeader()
	if !ok || header != "Bearer ghp_test" {
		t.Errorf("header = %q, ok = %v", header, ok)
	}
}

func TestInboxConfig_DisabledSkipsValidation(t *testing.T) {
	cfg := InboxConfig{Enable: false, Path: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled inbox should pass: %v", err)
	}
	cfg = InboxConfig{Enable: true, Path: ""}
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled inbox without path should fail")
	}
}

func TestFullConfig_Defaults(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Remote.SyncInterval != 5*time.Minute {
		t.Errorf("sync interval = %v", cfg.Remote.SyncInterval)
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
