package video

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// maxStderr bounds how much ffmpeg diagnostic output is kept for errors.
const maxStderr = 4096

// Stream decodes a video file to sequential RGBA frames through an ffmpeg
// subprocess. It is not safe for concurrent use.
//
// The image returned by Next is reused by the following call.
type Stream struct {
	ctx    context.Context
	info   *Info
	cmd    *exec.Cmd
	out    io.ReadCloser
	reader *bufio.Reader
	stderr *cappedBuffer
	buf    []byte
	frame  *image.RGBA
	read   int

	closeOnce sync.Once
}

// Open probes path and starts decoding it. The ffmpeg process is bound to
// ctx. The caller must Close the stream.
func Open(ctx context.Context, path string) (*Stream, error) {
	info, err := Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-v", "error",
		"-nostdin",
		"-i", path,
		"-map", "0:v:0",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	)
	stderr := &cappedBuffer{limit: maxStderr}
	cmd.Stderr = stderr
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	size := info.Width * info.Height * 4
	log.Debug().
		Str("video", filepath.Base(path)).
		Int("width", info.Width).
		Int("height", info.Height).
		Float64("fps", info.FPS).
		Int("frames", info.FrameCount).
		Msg("Video stream opened")

	return &Stream{
		ctx:    ctx,
		info:   info,
		cmd:    cmd,
		out:    out,
		reader: bufio.NewReaderSize(out, size),
		stderr: stderr,
		buf:    make([]byte, size),
		frame:  &image.RGBA{Stride: info.Width * 4, Rect: image.Rect(0, 0, info.Width, info.Height)},
	}, nil
}

// Info returns the probed stream info.
func (s *Stream) Info() *Info { return s.info }

// FPS returns the probed frame rate.
func (s *Stream) FPS() float64 { return s.info.FPS }

// FrameCount returns the probed frame count, or 0 if unknown.
func (s *Stream) FrameCount() int { return s.info.FrameCount }

// Next returns the next decoded frame or io.EOF. A truncated final frame is
// treated as the end of the stream. If the context ends while decoding, Next
// returns an error wrapping the context error instead of io.EOF.
func (s *Stream) Next() (image.Image, error) {
	_, err := io.ReadFull(s.reader, s.buf)
	switch {
	case err == nil:
		s.read++
		s.frame.Pix = s.buf
		return s.frame, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		werr := s.wait()
		if cerr := s.ctx.Err(); cerr != nil {
			return nil, fmt.Errorf("decoding interrupted after %d frames: %w", s.read, cerr)
		}
		if werr != nil {
			if s.read == 0 {
				return nil, fmt.Errorf("ffmpeg: %w: %s", werr, s.stderr.String())
			}
			log.Warn().Err(werr).Int("framesRead", s.read).Str("stderr", s.stderr.String()).
				Msg("ffmpeg exited with an error after decoding frames")
		}
		return nil, io.EOF
	default:
		if cerr := s.ctx.Err(); cerr != nil {
			return nil, fmt.Errorf("decoding interrupted after %d frames: %w", s.read, cerr)
		}
		return nil, fmt.Errorf("read frame: %w", err)
	}
}

// Close stops ffmpeg if it is still running and reaps it. It is safe to call
// more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		if s.cmd.ProcessState == nil && s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		_ = s.out.Close()
		_ = s.wait()
		log.Debug().Int("framesRead", s.read).Msg("Video stream closed")
	})
	return nil
}

// wait reaps the process once. Exits caused by a signal are not reported;
// Next consults the context to tell a cancellation from a normal end.
func (s *Stream) wait() error {
	if s.cmd.ProcessState != nil {
		return nil
	}
	err := s.cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && !exitErr.Exited() {
		return nil
	}
	return err
}

// cappedBuffer keeps the first limit bytes written to it.
type cappedBuffer struct {
	mu    sync.Mutex
	data  []byte
	limit int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - len(b.data); room > 0 {
		if len(p) > room {
			b.data = append(b.data, p[:room]...)
		} else {
			b.data = append(b.data, p...)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.data))
}
