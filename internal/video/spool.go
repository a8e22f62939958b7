package video

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
)

// ErrTooLarge is returned when an upload exceeds the spool limit.
var ErrTooLarge = errors.New("video exceeds size limit")

// Spool is a temporary copy of an uploaded video on local disk.
type Spool struct {
	Path string
	Size int64
}

// Remove deletes the temporary file.
func (s *Spool) Remove() {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", s.Path).Msg("Failed to remove spooled video")
	}
}

// SpoolToTemp copies r to a temporary file with the given extension.
// At most limit bytes are accepted when limit > 0. The caller must Remove
// the spool.
func SpoolToTemp(r io.Reader, ext string, limit int64) (*Spool, error) {
	f, err := os.CreateTemp("", "coach-video-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	spool := &Spool{Path: f.Name()}

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		spool.Remove()
		return nil, fmt.Errorf("failed to spool video: %w", err)
	}
	if limit > 0 && n > limit {
		spool.Remove()
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	spool.Size = n

	log.Debug().Str("path", spool.Path).Int64("size", n).Msg("Video spooled to temp file")
	return spool, nil
}
