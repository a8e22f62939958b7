// Package config loads service configuration from environment variables,
// optionally preloaded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultOracleTimeout = 30 * time.Second
	DefaultMaxUploadMB   = 200
	DefaultSSMKeyParam   = "/interview-coach/gemini-api-key"
)

// Config is the resolved service configuration.
type Config struct {
	Oracle    OracleConfig
	Detection DetectionConfig
	Storage   StorageConfig
	Upload    UploadConfig
}

// OracleConfig configures the Gemini oracle.
type OracleConfig struct {
	APIKey      string
	Model       string
	Timeout     time.Duration
	Disabled    bool
	SSMKeyParam string // read under Lambda when APIKey is empty
	// ValidateOnStart makes a test call at startup and falls back to the
	// local pipeline when the key is rejected.
	ValidateOnStart bool
}

// Enabled reports whether the oracle should be constructed.
func (o OracleConfig) Enabled() bool {
	return !o.Disabled && o.APIKey != ""
}

// DetectionConfig configures the local face and eye detectors.
type DetectionConfig struct {
	FaceCascadePath string
	EyeCascadePath  string
	FacePolicy      string
}

// StorageConfig selects persistence backends. Empty values disable them.
type StorageConfig struct {
	SessionsTable string
	VideoBucket   string
	EventBusName  string
	SQLitePath    string
}

// UploadConfig bounds uploaded videos.
type UploadConfig struct {
	MaxBytes int64
}

// Load reads a .env file from the working directory if one exists, then
// resolves the configuration from the environment. Variables already set in
// the environment take precedence over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// LoadFile is Load with an explicit .env path, which must exist.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return FromEnv()
}

// FromEnv resolves the configuration from the environment only.
func FromEnv() (*Config, error) {
	timeout, err := durationEnv("ORACLE_TIMEOUT", DefaultOracleTimeout)
	if err != nil {
		return nil, err
	}
	disabled, err := boolEnv("ORACLE_DISABLED", false)
	if err != nil {
		return nil, err
	}
	validate, err := boolEnv("ORACLE_VALIDATE", false)
	if err != nil {
		return nil, err
	}
	maxMB, err := intEnv("MAX_UPLOAD_MB", DefaultMaxUploadMB)
	if err != nil {
		return nil, err
	}
	if maxMB <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", maxMB)
	}

	return &Config{
		Oracle: OracleConfig{
			APIKey:          strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
			Model:           os.Getenv("GEMINI_MODEL"),
			Timeout:         timeout,
			Disabled:        disabled,
			SSMKeyParam:     getEnvOrDefault("SSM_API_KEY_PARAM", DefaultSSMKeyParam),
			ValidateOnStart: validate,
		},
		Detection: DetectionConfig{
			FaceCascadePath: os.Getenv("FACE_CASCADE_PATH"),
			EyeCascadePath:  os.Getenv("EYE_CASCADE_PATH"),
			FacePolicy:      os.Getenv("FACE_POLICY"),
		},
		Storage: StorageConfig{
			SessionsTable: os.Getenv("SESSIONS_TABLE"),
			VideoBucket:   os.Getenv("VIDEO_BUCKET"),
			EventBusName:  os.Getenv("EVENT_BUS_NAME"),
			SQLitePath:    os.Getenv("SQLITE_PATH"),
		},
		Upload: UploadConfig{
			MaxBytes: int64(maxMB) << 20,
		},
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// durationEnv accepts a Go duration ("45s") or a whole number of seconds.
func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	return b, nil
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}
