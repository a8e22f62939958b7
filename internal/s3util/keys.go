package s3util

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// VideoPrefix is the key prefix for uploaded practice videos.
const VideoPrefix = "videos/"

var safeFilenameRegex = regexp.MustCompile(`^[a-zA-Z0-9._\-() ]+$`)

// ErrInvalidKey is returned for keys outside the upload layout.
var ErrInvalidKey = errors.New("invalid key")

// ValidateFilename rejects names with path separators, traversal or
// characters outside a conservative set.
func ValidateFilename(name string) error {
	if name == "" {
		return fmt.Errorf("filename is required")
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("filename contains invalid characters")
	}
	if !safeFilenameRegex.MatchString(name) {
		return fmt.Errorf("filename contains invalid characters; only alphanumeric, dots, hyphens, underscores, spaces, and parentheses allowed")
	}
	return nil
}

// VideoKey builds the object key for an upload: videos/<uploadID>/<filename>.
// The filename is reduced to its base name before validation.
func VideoKey(uploadID, filename string) (string, error) {
	if err := uuid.Validate(uploadID); err != nil {
		return "", fmt.Errorf("invalid upload id: %w", err)
	}
	filename = filepath.Base(filename)
	if err := ValidateFilename(filename); err != nil {
		return "", err
	}
	return VideoPrefix + uploadID + "/" + filename, nil
}

// ValidateVideoKey checks that key has the shape VideoKey produces, so
// clients cannot ask the service to read arbitrary objects.
func ValidateVideoKey(key string) error {
	rest, ok := strings.CutPrefix(key, VideoPrefix)
	if !ok {
		return fmt.Errorf("%w: expected %s<uuid>/<filename>", ErrInvalidKey, VideoPrefix)
	}
	id, name, ok := strings.Cut(rest, "/")
	if !ok || uuid.Validate(id) != nil {
		return fmt.Errorf("%w: expected %s<uuid>/<filename>", ErrInvalidKey, VideoPrefix)
	}
	if err := ValidateFilename(name); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return nil
}
