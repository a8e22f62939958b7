package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/interview-coach/internal/behavior"
	"github.com/fpang/interview-coach/internal/pipeline"
	"github.com/fpang/interview-coach/internal/s3util"
	"github.com/fpang/interview-coach/internal/video"
)

// analysisTimeout bounds a whole-video analysis including download and the
// local fallback. The oracle has its own, shorter timeout.
const analysisTimeout = 5 * time.Minute

// multipartOverhead is the allowance for form boundaries and other fields on
// top of the video itself.
const multipartOverhead = 1 << 20

type analyzeKeyRequest struct {
	Key string `json:"key"`
}

// POST /api/analyze-behavioral
//
// Accepts a multipart upload in the video_file field, or JSON {"key": ...}
// naming an object previously uploaded through /api/behavioral/upload-url.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), analysisTimeout)
	defer cancel()

	var (
		spool *video.Spool
		err   error
	)
	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)
		spool, err = s.spoolMultipartVideo(r)
	} else {
		spool, err = s.fetchVideoByKey(ctx, w, r)
	}
	if err != nil {
		s.uploadError(w, err)
		return
	}
	if spool == nil {
		return // response already written
	}
	defer spool.Remove()

	report, err := s.analyzer.AnalyzeSession(ctx, behavior.VideoInput{
		Path:     spool.Path,
		MIMEType: video.MIMEType(spool.Path),
	})
	if err != nil {
		if pipeline.IsVideoError(err) {
			log.Warn().Err(err).Int64("size", spool.Size).Msg("Uploaded video could not be analyzed")
			httpError(w, http.StatusUnprocessableEntity, "video could not be decoded")
			return
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Dur("timeout", analysisTimeout).Msg("Session analysis did not finish in time")
			httpError(w, http.StatusGatewayTimeout, "analysis timed out")
			return
		}
		log.Error().Err(err).Msg("Session analysis failed")
		httpError(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	log.Info().
		Str("source", report.Source).
		Float64("durationSec", report.Metadata.DurationSec).
		Float64("confidence", report.ConfidenceScore).
		Msg("Behavioral video analyzed")
	respondJSON(w, http.StatusOK, report)
}

// errMissingVideo is returned when a multipart request has no video_file.
var errMissingVideo = errors.New("video_file is required")

// spoolMultipartVideo streams the video_file part straight to disk without
// buffering the form in memory.
func (s *Server) spoolMultipartVideo(r *http.Request) (*video.Spool, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, errMissingVideo
		}
		if err != nil {
			return nil, fmt.Errorf("invalid multipart form: %w", err)
		}
		if part.FormName() != "video_file" {
			part.Close()
			continue
		}

		ext := filepath.Ext(part.FileName())
		if !video.IsSupported(part.FileName()) {
			ext = video.ExtensionFor(part.Header.Get("Content-Type"))
		}
		spool, err := video.SpoolToTemp(part, ext, s.maxUpload)
		part.Close()
		if err != nil {
			return nil, err
		}
		log.Debug().Str("filename", part.FileName()).Int64("size", spool.Size).Msg("Video upload received")
		return spool, nil
	}
}

// fetchVideoByKey downloads a previously uploaded object. On client errors
// it writes the response itself and returns nil, nil.
func (s *Server) fetchVideoByKey(ctx context.Context, w http.ResponseWriter, r *http.Request) (*video.Spool, error) {
	if s.videos == nil {
		httpError(w, http.StatusServiceUnavailable, "video uploads are not configured")
		return nil, nil
	}
	var req analyzeKeyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "expected multipart video_file or JSON {\"key\": ...}")
		return nil, nil
	}
	if err := s3util.ValidateVideoKey(req.Key); err != nil {
		log.Warn().Err(err).Str("key", req.Key).Msg("Rejected video key")
		httpError(w, http.StatusBadRequest, err.Error())
		return nil, nil
	}

	spool, err := s3util.DownloadVideo(ctx, s.videos.Client, s.videos.Name, req.Key, s.maxUpload)
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			httpError(w, http.StatusNotFound, "video not found")
			return nil, nil
		}
		if errors.Is(err, video.ErrTooLarge) {
			return nil, err
		}
		log.Error().Err(err).Str("key", req.Key).Msg("Failed to download video")
		httpError(w, http.StatusBadGateway, "failed to fetch video")
		return nil, nil
	}
	return spool, nil
}

// uploadError maps upload and download failures to responses.
func (s *Server) uploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, video.ErrTooLarge), errors.As(err, &tooLarge):
		httpError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("video exceeds %d MB limit", s.maxUpload>>20))
	case errors.Is(err, errMissingVideo):
		httpError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Msg("Failed to receive video")
		httpError(w, http.StatusBadRequest, "failed to read video upload")
	}
}

type uploadURLRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type uploadURLResponse struct {
	UploadURL string `json:"upload_url"`
	Key       string `json:"key"`
	ExpiresIn int    `json:"expires_in"`
	MaxBytes  int64  `json:"max_bytes"`
}

// POST /api/behavioral/upload-url
//
// Returns a presigned S3 PUT URL so the browser uploads the video directly.
// Content-Type and Content-Length are part of the signature.
func (s *Server) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.videos == nil {
		httpError(w, http.StatusServiceUnavailable, "video uploads are not configured")
		return
	}

	var req uploadURLRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Filename == "" || req.ContentType == "" || req.Size <= 0 {
		httpError(w, http.StatusBadRequest, "filename, content_type and size are required")
		return
	}
	if req.Size > s.maxUpload {
		httpError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("video exceeds %d MB limit", s.maxUpload>>20))
		return
	}
	if !isVideoContentType(req.ContentType) {
		log.Warn().Str("contentType", req.ContentType).Msg("Unsupported upload content type")
		httpError(w, http.StatusBadRequest, fmt.Sprintf("unsupported content type: %s", req.ContentType))
		return
	}

	key, err := s3util.VideoKey(uuid.NewString(), req.Filename)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	url, err := s3util.PresignVideoPut(r.Context(), s.videos.Presigner, s.videos.Name, key, req.ContentType, req.Size)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to generate presigned URL")
		httpError(w, http.StatusInternalServerError, "failed to generate upload URL")
		return
	}

	respondJSON(w, http.StatusOK, uploadURLResponse{
		UploadURL: url,
		Key:       key,
		ExpiresIn: int(s3util.UploadURLExpiry.Seconds()),
		MaxBytes:  s.maxUpload,
	})
}

func isVideoContentType(ct string) bool {
	for _, m := range video.SupportedExtensions {
		if m == ct {
			return true
		}
	}
	return false
}
