package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fpang/interview-coach/internal/config"
)

func TestResolveLocalKeyKeepsExplicitKey(t *testing.T) {
	oc := config.OracleConfig{APIKey: "from-env"}
	ResolveLocalKey(&oc)
	if oc.APIKey != "from-env" {
		t.Errorf("got %q", oc.APIKey)
	}
}

func TestResolveLocalKeyNoCredentials(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	oc := config.OracleConfig{}
	ResolveLocalKey(&oc)
	if oc.APIKey != "" || oc.Enabled() {
		t.Errorf("oracle should stay off, got %+v", oc)
	}
}

func TestResolveLocalKeyDisabledSkipsGPG(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, credentialDir)
	os.MkdirAll(dir, 0o700)
	// Not a real GPG file; decrypting it would fail if attempted.
	os.WriteFile(filepath.Join(dir, credentialFile), []byte("garbage"), 0o600)

	oc := config.OracleConfig{Disabled: true}
	ResolveLocalKey(&oc)
	if oc.APIKey != "" {
		t.Errorf("got %q", oc.APIKey)
	}
}

func TestGetCredentialPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := getCredentialPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(home, ".interview-coach", "credentials.gpg"); path != want {
		t.Errorf("expected path %q, got %q", want, path)
	}
}

func TestGetFromGPGFileNotFound(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := getFromGPG()
	if !errors.Is(err, ErrNoCredentials) {
		t.Errorf("expected ErrNoCredentials, got %v", err)
	}
}

func TestFindPassphraseFileSkipsInsecure(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, passphraseFile)

	os.WriteFile(path, []byte("secret"), 0o644)
	if got, ok := findPassphraseFile(); ok && got == path {
		t.Error("world-readable passphrase file should be skipped")
	}

	os.Chmod(path, 0o600)
	if got, ok := findPassphraseFile(); !ok || got != path {
		t.Errorf("expected %q, got %q (%v)", path, got, ok)
	}
}
