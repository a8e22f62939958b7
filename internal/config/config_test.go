package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envKeys = []string{
	"GEMINI_API_KEY", "GEMINI_MODEL", "ORACLE_TIMEOUT", "ORACLE_DISABLED", "ORACLE_VALIDATE",
	"FACE_CASCADE_PATH", "EYE_CASCADE_PATH", "FACE_POLICY",
	"SESSIONS_TABLE", "VIDEO_BUCKET", "EVENT_BUS_NAME", "SQLITE_PATH",
	"MAX_UPLOAD_MB", "SSM_API_KEY_PARAM",
}

// clearEnv unsets every config variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Oracle.Timeout != DefaultOracleTimeout {
		t.Errorf("timeout: got %v", cfg.Oracle.Timeout)
	}
	if cfg.Oracle.Enabled() {
		t.Error("oracle should be disabled without an API key")
	}
	if cfg.Oracle.SSMKeyParam != DefaultSSMKeyParam {
		t.Errorf("ssm param: got %q", cfg.Oracle.SSMKeyParam)
	}
	if cfg.Upload.MaxBytes != DefaultMaxUploadMB<<20 {
		t.Errorf("max upload: got %d", cfg.Upload.MaxBytes)
	}
	if cfg.Storage != (StorageConfig{}) {
		t.Errorf("storage should be empty, got %+v", cfg.Storage)
	}
}

func TestFromEnvValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", " key-123 ")
	t.Setenv("GEMINI_MODEL", "gemini-2.5-flash")
	t.Setenv("ORACLE_TIMEOUT", "45")
	t.Setenv("FACE_POLICY", "centered")
	t.Setenv("SESSIONS_TABLE", "coach-sessions")
	t.Setenv("MAX_UPLOAD_MB", "10")
	t.Setenv("ORACLE_VALIDATE", "1")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Oracle.APIKey != "key-123" || !cfg.Oracle.Enabled() {
		t.Errorf("unexpected oracle config %+v", cfg.Oracle)
	}
	if !cfg.Oracle.ValidateOnStart {
		t.Error("ORACLE_VALIDATE=1 should enable startup validation")
	}
	if cfg.Oracle.Timeout != 45*time.Second {
		t.Errorf("timeout: got %v", cfg.Oracle.Timeout)
	}
	if cfg.Detection.FacePolicy != "centered" || cfg.Storage.SessionsTable != "coach-sessions" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Upload.MaxBytes != 10<<20 {
		t.Errorf("max upload: got %d", cfg.Upload.MaxBytes)
	}

	t.Setenv("ORACLE_DISABLED", "true")
	t.Setenv("ORACLE_TIMEOUT", "1m30s")
	cfg, err = FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Oracle.Enabled() {
		t.Error("ORACLE_DISABLED should win over an API key")
	}
	if cfg.Oracle.Timeout != 90*time.Second {
		t.Errorf("timeout: got %v", cfg.Oracle.Timeout)
	}
}

func TestFromEnvInvalid(t *testing.T) {
	tests := []struct{ key, value string }{
		{"ORACLE_TIMEOUT", "soon"},
		{"ORACLE_DISABLED", "maybe"},
		{"ORACLE_VALIDATE", "sometimes"},
		{"MAX_UPLOAD_MB", "lots"},
		{"MAX_UPLOAD_MB", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := FromEnv(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "coach.env")
	content := "GEMINI_MODEL=gemini-2.5-pro\nSQLITE_PATH=/tmp/coach.db\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SQLITE_PATH", "/data/coach.db")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Oracle.Model != "gemini-2.5-pro" {
		t.Errorf("model: got %q", cfg.Oracle.Model)
	}
	if cfg.Storage.SQLitePath != "/data/coach.db" {
		t.Errorf("environment should take precedence, got %q", cfg.Storage.SQLitePath)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("expected error for missing file")
	}
}
