// Package auth resolves the Gemini API key on a developer machine. Lambda
// reads it from SSM instead (see lambdaboot.LoadGeminiKey).
package auth

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/interview-coach/internal/config"
)

const (
	credentialDir  = ".interview-coach"
	credentialFile = "credentials.gpg"
	passphraseFile = ".gpg-passphrase"
)

// ErrNoCredentials is returned when the encrypted credentials file is absent.
var ErrNoCredentials = errors.New("GPG credentials file not found")

// ResolveLocalKey fills oc.APIKey from the GPG-encrypted credentials file
// when GEMINI_API_KEY is unset and the oracle is not disabled. A missing or
// undecryptable file leaves the oracle off.
func ResolveLocalKey(oc *config.OracleConfig) {
	if oc.APIKey != "" || oc.Disabled {
		return
	}
	key, err := getFromGPG()
	if err != nil {
		if errors.Is(err, ErrNoCredentials) {
			log.Debug().Msg("No GEMINI_API_KEY and no GPG credentials, oracle disabled")
		} else {
			log.Warn().Err(err).Msg("Failed to decrypt GPG credentials, oracle disabled")
		}
		return
	}
	if key == "" {
		log.Warn().Msg("GPG credentials file is empty, oracle disabled")
		return
	}
	oc.APIKey = key
	log.Debug().Msg("Using API key from GPG encrypted file")
}

// getFromGPG decrypts the API key from the credentials file.
func getFromGPG() (string, error) {
	credPath, err := getCredentialPath()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(credPath); os.IsNotExist(err) {
		return "", fmt.Errorf("%w at %s", ErrNoCredentials, credPath)
	}

	log.Debug().Str("file", credPath).Msg("Decrypting GPG credentials")

	args := []string{"--decrypt", "--quiet"}
	if passphrasePath, ok := findPassphraseFile(); ok {
		args = append(args, "--pinentry-mode", "loopback", "--passphrase-file", passphrasePath)
	}
	args = append(args, credPath)

	output, err := exec.Command("gpg", args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("GPG decryption failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("GPG decryption failed: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

func getCredentialPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, credentialDir, credentialFile), nil
}

// findPassphraseFile looks for an owner-only passphrase file next to the
// executable, then in the working directory.
func findPassphraseFile() (string, bool) {
	var dirs []string
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	for _, dir := range dirs {
		path := filepath.Join(dir, passphraseFile)
		fi, err := os.Stat(path)
		if err != nil {
			continue
		}
		if mode := fi.Mode().Perm(); mode&0o077 != 0 {
			log.Warn().
				Str("passphrase_file", path).
				Str("permissions", fmt.Sprintf("%04o", mode)).
				Msg("Passphrase file has insecure permissions (should be 0600); skipping")
			continue
		}
		return path, true
	}
	return "", false
}
