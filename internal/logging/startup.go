package logging

import (
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartupLogger collects a binary's identity, resources, feature flags and
// configuration, then emits them as a single structured event. Secrets are
// never registered; only their locations.
type StartupLogger struct {
	name         string
	commitHash   string
	initDuration time.Duration

	resources map[string]map[string]string
	features  map[string]bool
	config    map[string]string
}

// NewStartupLogger creates a StartupLogger for a binary
// (e.g. "coach-lambda", "coach-web").
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:      name,
		resources: make(map[string]map[string]string),
		features:  make(map[string]bool),
		config:    make(map[string]string),
	}
}

// CommitHash sets the git commit baked in at build time.
func (s *StartupLogger) CommitHash(hash string) *StartupLogger {
	s.commitHash = hash
	return s
}

func (s *StartupLogger) resource(kind, label, value string) *StartupLogger {
	if value == "" {
		return s
	}
	m, ok := s.resources[kind]
	if !ok {
		m = make(map[string]string)
		s.resources[kind] = m
	}
	m[label] = value
	return s
}

// S3Bucket registers an S3 bucket.
func (s *StartupLogger) S3Bucket(label, name string) *StartupLogger {
	return s.resource("s3Buckets", label, name)
}

// DynamoTable registers a DynamoDB table.
func (s *StartupLogger) DynamoTable(label, name string) *StartupLogger {
	return s.resource("dynamoTables", label, name)
}

// SSMParam registers an SSM parameter path. Only the path is logged.
func (s *StartupLogger) SSMParam(label, path string) *StartupLogger {
	return s.resource("ssmParams", label, path)
}

// EventBus registers an EventBridge bus.
func (s *StartupLogger) EventBus(label, name string) *StartupLogger {
	return s.resource("eventBuses", label, name)
}

// File registers a local file such as a SQLite database or cascade model.
func (s *StartupLogger) File(label, path string) *StartupLogger {
	return s.resource("files", label, path)
}

// Feature registers a boolean feature flag (e.g. "oracle", "events").
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config registers a non-sensitive configuration value.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

// InitDuration records how long initialization took.
func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.initDuration = d
	return s
}

// Log emits the startup event at INFO.
func (s *StartupLogger) Log() {
	s.LogTo(log.Logger)
}

// LogTo emits the startup event on logger.
func (s *StartupLogger) LogTo(logger zerolog.Logger) {
	identity := zerolog.Dict().
		Str("name", s.name).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH).
		Str("logLevel", zerolog.GlobalLevel().String())
	if fn := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); fn != "" {
		identity = identity.
			Str("functionName", fn).
			Str("version", os.Getenv("AWS_LAMBDA_FUNCTION_VERSION")).
			Str("region", os.Getenv("AWS_REGION")).
			Str("memoryMB", os.Getenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE"))
	}
	if s.commitHash != "" {
		identity = identity.Str("commitHash", s.commitHash)
	}

	evt := logger.Info().Dict("service", identity)

	if len(s.resources) > 0 {
		resources := zerolog.Dict()
		for _, kind := range sortedKeys(s.resources) {
			resources = resources.Dict(kind, dictFromMap(s.resources[kind]))
		}
		evt = evt.Dict("resources", resources)
	}

	if len(s.features) > 0 {
		d := zerolog.Dict()
		for _, k := range sortedKeys(s.features) {
			d = d.Bool(k, s.features[k])
		}
		evt = evt.Dict("features", d)
	}

	if len(s.config) > 0 {
		evt = evt.Dict("config", dictFromMap(s.config))
	}

	if s.initDuration > 0 {
		evt = evt.Dur("initDuration", s.initDuration)
	}

	evt.Msg("Startup complete")
}

// EnvOrDefault returns the named environment variable, or defaultVal when it
// is empty or unset.
func EnvOrDefault(envVar, defaultVal string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return defaultVal
}

func dictFromMap(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for _, k := range sortedKeys(m) {
		d = d.Str(k, m[k])
	}
	return d
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
