package video

import (
	"path/filepath"
	"strings"
)

// SupportedExtensions maps accepted video file extensions to MIME types.
var SupportedExtensions = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".m4v":  "video/x-m4v",
}

// DefaultMIME is used for videos with an unknown extension.
const DefaultMIME = "video/mp4"

// IsSupported reports whether path has a supported video extension.
func IsSupported(path string) bool {
	_, ok := SupportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// MIMEType returns the MIME type for path, or DefaultMIME.
func MIMEType(path string) string {
	if m, ok := SupportedExtensions[strings.ToLower(filepath.Ext(path))]; ok {
		return m
	}
	return DefaultMIME
}

// ExtensionFor returns the file extension for a video MIME type, or ".mp4".
func ExtensionFor(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(strings.SplitN(mime, ";", 2)[0]))
	for ext, m := range SupportedExtensions {
		if m == mime {
			return ext
		}
	}
	return ".mp4"
}
