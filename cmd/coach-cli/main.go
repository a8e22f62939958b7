package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/interview-coach/internal/auth"
	"github.com/fpang/interview-coach/internal/behavior"
	"github.com/fpang/interview-coach/internal/cli"
	"github.com/fpang/interview-coach/internal/config"
	"github.com/fpang/interview-coach/internal/logging"
	"github.com/fpang/interview-coach/internal/metrics"
	"github.com/fpang/interview-coach/internal/oracle"
	"github.com/fpang/interview-coach/internal/pipeline"
	"github.com/fpang/interview-coach/internal/video"
)

// CLI flags
var (
	localFlag   bool
	modelFlag   string
	envFlag     string
	pickFlag    bool
	summaryFlag bool
	imageFlag   string
	audioFlag   string
	transcript  string
)

var rootCmd = &cobra.Command{
	Use:   "coach-cli",
	Short: "Score interview practice recordings from the command line",
	Long: `Coach CLI runs the behavioral analysis pipeline on local files and prints
the result as JSON.

Gemini is used when GEMINI_API_KEY is set, with the local cascade pipeline
as fallback. --local skips Gemini entirely.

Examples:
  coach-cli session answer.mp4
  coach-cli session --pick
  coach-cli session            # prompts for the path
  coach-cli chunk --image frame.jpg --transcript "In my last role I led..."
  coach-cli --local session answer.mov`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init()
		// stdout carries the JSON result
		metrics.SetOutput(os.Stderr)
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session [video]",
	Short: "Analyze a whole recorded answer",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSession,
}

var chunkCmd = &cobra.Command{
	Use:   "chunk",
	Short: "Analyze a single live sample (frame, audio, transcript)",
	Args:  cobra.NoArgs,
	RunE:  runChunk,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&localFlag, "local", false, "Use only the local cascade pipeline, never Gemini")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "Gemini model to use (default "+oracle.DefaultModel+")")
	rootCmd.PersistentFlags().StringVar(&envFlag, "env", "", "Path to a .env file (default ./.env if present)")

	sessionCmd.Flags().BoolVar(&pickFlag, "pick", false, "Choose the video with a file dialog")
	sessionCmd.Flags().BoolVar(&summaryFlag, "summary", false, "Also print a readable summary on stderr")

	chunkCmd.Flags().StringVar(&imageFlag, "image", "", "Still frame (JPEG, PNG, WebP, BMP)")
	chunkCmd.Flags().StringVar(&audioFlag, "audio", "", "Audio clip")
	chunkCmd.Flags().StringVarP(&transcript, "transcript", "t", "", "Transcript of the sample")

	rootCmd.AddCommand(sessionCmd, chunkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildPipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	var (
		cfg *config.Config
		err error
	)
	if envFlag != "" {
		cfg, err = config.LoadFile(envFlag)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if localFlag {
		cfg.Oracle.Disabled = true
	}
	if modelFlag != "" {
		cfg.Oracle.Model = modelFlag
	}
	auth.ResolveLocalKey(&cfg.Oracle)
	cfg.Oracle.ValidateOnStart = true
	return pipeline.Build(ctx, cfg)
}

func runSession(cmd *cobra.Command, args []string) error {
	var path string
	switch {
	case len(args) == 1:
		path = args[0]
	case pickFlag:
		picked, err := pickVideo()
		if err != nil {
			return err
		}
		path = picked
	default:
		path = cli.PromptForVideo(os.Stdin, os.Stderr)
	}
	path, err := cli.ResolveVideoPath(path)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	p, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	start := time.Now()
	report, err := p.Analyzer.AnalyzeSession(ctx, behavior.VideoInput{
		Path:     path,
		MIMEType: video.MIMEType(path),
	})
	if err != nil {
		return fmt.Errorf("analyze %s: %w", filepath.Base(path), err)
	}
	log.Info().
		Str("source", report.Source).
		Dur("elapsed", time.Since(start)).
		Msg("Session analyzed")
	if summaryFlag {
		cli.PrintSummary(os.Stderr, report)
	}
	return printJSON(report)
}

func runChunk(cmd *cobra.Command, args []string) error {
	chunk := behavior.Chunk{Transcript: transcript}
	var err error
	if imageFlag != "" {
		if chunk.Image, chunk.ImageMIME, err = readMedia(imageFlag); err != nil {
			return err
		}
	}
	if audioFlag != "" {
		if chunk.Audio, chunk.AudioMIME, err = readMedia(audioFlag); err != nil {
			return err
		}
	}
	if !chunk.HasMedia() {
		log.Warn().Msg("Empty chunk, result will be the neutral defaults")
	}

	ctx := cmd.Context()
	p, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	m, err := p.Analyzer.AnalyzeChunk(ctx, chunk)
	if err != nil {
		return err
	}
	return printJSON(m)
}

// readMedia reads a file and sniffs its MIME type from the content.
func readMedia(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", path, err)
	}
	return data, http.DetectContentType(data), nil
}

func pickVideo() (string, error) {
	patterns := make([]string, 0, len(video.SupportedExtensions))
	for ext := range video.SupportedExtensions {
		patterns = append(patterns, "*"+ext)
	}
	sort.Strings(patterns)

	path, err := zenity.SelectFile(
		zenity.Title("Select an interview recording"),
		zenity.FileFilters{{Name: "Videos", Patterns: patterns}},
	)
	if errors.Is(err, zenity.ErrCanceled) {
		return "", errors.New("no video selected")
	}
	if err != nil {
		return "", fmt.Errorf("file picker failed: %w", err)
	}
	return path, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
