// Package main runs the behavioral analysis API as a local web server.
//
// Endpoints:
//
//	GET  /api/health
//	POST /api/behavioral/start
//	POST /api/behavioral/chunk
//	POST /api/behavioral/finish
//	POST /api/behavioral/coach
//	POST /api/behavioral/upload-url   (requires VIDEO_BUCKET)
//	POST /api/analyze-behavioral
//	GET  /api/dashboard/behavioral
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

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/interview-coach/internal/api"
	"github.com/fpang/interview-coach/internal/auth"
	"github.com/fpang/interview-coach/internal/config"
	"github.com/fpang/interview-coach/internal/lambdaboot"
	"github.com/fpang/interview-coach/internal/logging"
	"github.com/fpang/interview-coach/internal/oracle"
	"github.com/fpang/interview-coach/internal/pipeline"
	"github.com/fpang/interview-coach/internal/store"
)

var commitHash = "dev" // overridden by -ldflags at build

// CLI flags
var (
	portFlag   int
	modelFlag  string
	localFlag  bool
	sqliteFlag string
	envFlag    string
)

var rootCmd = &cobra.Command{
	Use:   "coach-web",
	Short: "Local server for behavioral interview analysis",
	Long: `Coach Web starts a local HTTP server exposing the behavioral analysis API:
live chunk scoring, whole-video analysis, coaching feedback and the
session dashboard.

Sessions and summaries are kept in SQLite when --sqlite (or SQLITE_PATH)
is set, otherwise in memory.

Examples:
  coach-web
  coach-web --port 9090 --sqlite ~/.interview-coach/coach.db
  coach-web --local
  coach-web --model gemini-3-pro-preview`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", 8080, "Port to listen on")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Gemini model to use (default "+oracle.DefaultModel+")")
	rootCmd.Flags().BoolVar(&localFlag, "local", false, "Use only the local cascade pipeline, never Gemini")
	rootCmd.Flags().StringVar(&sqliteFlag, "sqlite", "", "SQLite database path (overrides SQLITE_PATH)")
	rootCmd.Flags().StringVar(&envFlag, "env", "", "Path to a .env file (default ./.env if present)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	initStart := time.Now()
	logging.Init()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if localFlag {
		cfg.Oracle.Disabled = true
	}
	if modelFlag != "" {
		cfg.Oracle.Model = modelFlag
	}
	if sqliteFlag != "" {
		cfg.Storage.SQLitePath = sqliteFlag
	}
	auth.ResolveLocalKey(&cfg.Oracle)
	cfg.Oracle.ValidateOnStart = true

	ctx := context.Background()
	p, err := pipeline.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build analysis pipeline")
	}
	defer p.Close()

	st, err := openStore(ctx, cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer st.Close()

	opts := api.Options{
		Analyzer:       p.Analyzer,
		Coach:          p.Coach,
		Store:          st,
		MaxUploadBytes: cfg.Upload.MaxBytes,
	}
	if cfg.Storage.VideoBucket != "" {
		aws := lambdaboot.InitAWS(ctx)
		if s3c := lambdaboot.InitS3Optional(aws.Config, cfg.Storage.VideoBucket); s3c != nil {
			opts.Videos = &api.VideoBucket{Client: s3c.Client, Presigner: s3c.Presigner, Name: s3c.Bucket}
		}
		opts.Events = lambdaboot.InitEventsOptional(aws.Config, cfg.Storage.EventBusName)
	}
	server := api.New(opts)

	addr := fmt.Sprintf(":%d", portFlag)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 6 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	logging.NewStartupLogger("coach-web").
		CommitHash(commitHash).
		InitDuration(time.Since(initStart)).
		File("sqlite", cfg.Storage.SQLitePath).
		File("faceCascade", cfg.Detection.FaceCascadePath).
		File("eyeCascade", cfg.Detection.EyeCascadePath).
		S3Bucket("videos", cfg.Storage.VideoBucket).
		EventBus("sessions", cfg.Storage.EventBusName).
		Feature("oracle", p.Oracle).
		Feature("s3Uploads", opts.Videos != nil).
		Config("model", p.Model).
		Config("port", fmt.Sprint(portFlag)).
		Log()

	fmt.Printf("\n  Interview Coach API: http://localhost:%d/api/health\n\n", portFlag)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func loadConfig() (*config.Config, error) {
	if envFlag != "" {
		return config.LoadFile(envFlag)
	}
	return config.Load()
}

func openStore(ctx context.Context, sqlitePath string) (store.BehavioralStore, error) {
	if sqlitePath == "" {
		log.Warn().Msg("No SQLite path configured, sessions are kept in memory only")
		return store.NewMemoryStore(), nil
	}
	return store.OpenSQLite(ctx, sqlitePath)
}
