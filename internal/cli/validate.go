package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/fpang/interview-coach/internal/video"
)

// ResolveVideoPath checks that path is a readable regular file and returns
// its absolute form. Unknown extensions are allowed with a warning since
// ffprobe decides in the end.
func ResolveVideoPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("no video given")
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("video not found: %s", path)
		}
		return "", fmt.Errorf("cannot access %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	if !video.IsSupported(path) {
		log.Warn().Str("path", path).Msg("Unrecognized video extension, trying anyway")
	}

	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path, nil
}
