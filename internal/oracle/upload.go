package oracle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fpang/interview-coach/internal/metrics"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Files API processing poll settings.
const (
	uploadPollingInterval = 2 * time.Second
	uploadTimeout         = 5 * time.Minute
)

// uploadVideo uploads a large video to the Files API and waits until it is
// ready for inference. The caller deletes the file afterwards.
func (g *Gemini) uploadVideo(ctx context.Context, path, mime string, size int64) (*genai.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open video: %w", err)
	}
	defer f.Close()

	log.Debug().
		Str("path", path).
		Int64("size_bytes", size).
		Str("mime_type", mime).
		Msg("Starting Gemini Files API upload for video")

	uploadStart := time.Now()
	file, err := g.client.Files.Upload(ctx, f, &genai.UploadFileConfig{MIMEType: mime})
	if err != nil {
		return nil, fmt.Errorf("failed to upload video: %w", err)
	}

	deadline := time.Now().Add(uploadTimeout)
	pollIteration := 0
	for file.State == genai.FileStateProcessing {
		if time.Now().After(deadline) {
			g.deleteFile(file.Name)
			return nil, fmt.Errorf("timeout waiting for video processing after %v: %w", uploadTimeout, context.DeadlineExceeded)
		}
		pollIteration++
		select {
		case <-ctx.Done():
			g.deleteFile(file.Name)
			return nil, ctx.Err()
		case <-time.After(uploadPollingInterval):
		}

		file, err = g.client.Files.Get(ctx, file.Name, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to get file state: %w", err)
		}
	}

	if file.State == genai.FileStateFailed {
		g.deleteFile(file.Name)
		return nil, errors.New("video processing failed")
	}

	elapsed := time.Since(uploadStart)
	log.Info().
		Str("name", file.Name).
		Str("state", string(file.State)).
		Dur("total_time", elapsed).
		Int("poll_iterations", pollIteration).
		Msg("Video ready for inference")

	metrics.New(metrics.Namespace).
		Dimension("Operation", "filesApiUpload").
		Metric("OracleUploadMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Metric("OracleUploadBytes", float64(size), metrics.UnitBytes).
		Flush()

	return file, nil
}

// deleteFile removes an uploaded file. Failures are logged; the Files API
// expires files on its own after 48 hours.
func (g *Gemini) deleteFile(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := g.client.Files.Delete(ctx, name, nil); err != nil {
		log.Warn().Err(err).Str("name", name).Msg("Failed to delete uploaded video")
		return
	}
	log.Debug().Str("name", name).Msg("Uploaded video deleted")
}
