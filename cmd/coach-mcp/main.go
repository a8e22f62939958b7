// Package main serves the behavioral analysis pipeline as MCP tools over
// stdio, so an assistant can score a practice recording on the user's
// machine.
//
// Tools:
//
//	analyze_session  whole-video report for a local file
//	analyze_chunk    live metrics for one frame and/or transcript
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/fpang/interview-coach/internal/auth"
	"github.com/fpang/interview-coach/internal/behavior"
	"github.com/fpang/interview-coach/internal/config"
	"github.com/fpang/interview-coach/internal/logging"
	"github.com/fpang/interview-coach/internal/metrics"
	"github.com/fpang/interview-coach/internal/pipeline"
	"github.com/fpang/interview-coach/internal/video"
)

var commitHash = "dev" // overridden by -ldflags at build

// maxImageBytes bounds a frame read by analyze_chunk.
const maxImageBytes = 16 << 20

type sessionInput struct {
	Path string `json:"path" jsonschema:"absolute path of the video recording to analyze"`
}

type chunkInput struct {
	ImagePath  string `json:"image_path,omitempty" jsonschema:"optional path of a still frame (JPEG, PNG, WebP or BMP)"`
	Transcript string `json:"transcript,omitempty" jsonschema:"optional transcript of what was said in this sample"`
}

type tools struct {
	analyzer behavior.Analyzer
}

func (t *tools) analyzeSession(ctx context.Context, _ *mcp.CallToolRequest, in sessionInput) (*mcp.CallToolResult, behavior.SessionScoreReport, error) {
	if in.Path == "" {
		return nil, behavior.SessionScoreReport{}, errors.New("path is required")
	}
	info, err := os.Stat(in.Path)
	if err != nil {
		return nil, behavior.SessionScoreReport{}, fmt.Errorf("cannot read video: %w", err)
	}
	if info.IsDir() {
		return nil, behavior.SessionScoreReport{}, fmt.Errorf("%s is a directory", in.Path)
	}

	start := time.Now()
	report, err := t.analyzer.AnalyzeSession(ctx, behavior.VideoInput{
		Path:     in.Path,
		MIMEType: video.MIMEType(in.Path),
	})
	if err != nil {
		log.Warn().Err(err).Str("path", in.Path).Msg("analyze_session failed")
		return nil, behavior.SessionScoreReport{}, err
	}
	log.Info().Str("source", report.Source).Dur("elapsed", time.Since(start)).Msg("analyze_session complete")
	return nil, *report, nil
}

func (t *tools) analyzeChunk(ctx context.Context, _ *mcp.CallToolRequest, in chunkInput) (*mcp.CallToolResult, behavior.ChunkMetrics, error) {
	chunk := behavior.Chunk{Transcript: in.Transcript}
	if in.ImagePath != "" {
		info, err := os.Stat(in.ImagePath)
		if err != nil {
			return nil, behavior.ChunkMetrics{}, fmt.Errorf("cannot read image: %w", err)
		}
		if info.Size() > maxImageBytes {
			return nil, behavior.ChunkMetrics{}, fmt.Errorf("image exceeds %d MB", maxImageBytes>>20)
		}
		data, err := os.ReadFile(in.ImagePath)
		if err != nil {
			return nil, behavior.ChunkMetrics{}, fmt.Errorf("cannot read image: %w", err)
		}
		chunk.Image, chunk.ImageMIME = data, http.DetectContentType(data)
	}

	m, err := t.analyzer.AnalyzeChunk(ctx, chunk)
	if err != nil {
		return nil, behavior.ChunkMetrics{}, err
	}
	return nil, *m, nil
}

func newServer(analyzer behavior.Analyzer) *mcp.Server {
	t := &tools{analyzer: analyzer}
	server := mcp.NewServer(&mcp.Implementation{Name: "interview-coach", Version: commitHash}, nil)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze_session",
		Description: "Score a recorded interview answer for confidence, eye contact and posture, with feedback and improvement tips.",
	}, t.analyzeSession)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze_chunk",
		Description: "Score a single live sample: eye contact from a still frame plus STAR structure and delivery from the transcript.",
	}, t.analyzeChunk)
	return server
}

func main() {
	initStart := time.Now()
	logging.Init()
	// stdout is the MCP transport
	metrics.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	auth.ResolveLocalKey(&cfg.Oracle)
	p, err := pipeline.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build analysis pipeline")
	}
	defer p.Close()

	logging.NewStartupLogger("coach-mcp").
		CommitHash(commitHash).
		InitDuration(time.Since(initStart)).
		File("faceCascade", cfg.Detection.FaceCascadePath).
		File("eyeCascade", cfg.Detection.EyeCascadePath).
		Feature("oracle", p.Oracle).
		Config("model", p.Model).
		Log()

	if err := newServer(p.Analyzer).Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("MCP server stopped")
	}
}
