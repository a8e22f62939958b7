// Package main provides the Lambda entry point for the behavioral analysis
// API behind API Gateway (HTTP API, payload v2).
//
// Resources, all optional except the cascade models:
//   - SESSIONS_TABLE: DynamoDB table for live sessions and summaries
//   - VIDEO_BUCKET: S3 bucket for presigned browser uploads
//   - EVENT_BUS_NAME: EventBridge bus for BehavioralSessionFinished
//   - SSM_API_KEY_PARAM: Gemini API key, read at cold start
//
// Container: ffmpeg and the OpenCV runtime are required.
package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/interview-coach/internal/api"
	"github.com/fpang/interview-coach/internal/config"
	"github.com/fpang/interview-coach/internal/lambdaboot"
	"github.com/fpang/interview-coach/internal/logging"
	"github.com/fpang/interview-coach/internal/pipeline"
	"github.com/fpang/interview-coach/internal/store"
)

var commitHash = "dev" // overridden by -ldflags at build

var adapter *httpadapter.HandlerAdapterV2

func init() {
	initStart := time.Now()
	logging.Init()
	ctx := context.Background()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	aws := lambdaboot.InitAWS(ctx)
	lambdaboot.LoadGeminiKey(ctx, aws.SSM, &cfg.Oracle)

	p, err := pipeline.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build analysis pipeline")
	}

	var st store.BehavioralStore
	if dynamo := lambdaboot.InitDynamoOptional(aws.Config, cfg.Storage.SessionsTable); dynamo != nil {
		st = dynamo
	} else {
		st = store.NewMemoryStore()
	}

	opts := api.Options{
		Analyzer:       p.Analyzer,
		Coach:          p.Coach,
		Store:          st,
		Events:         lambdaboot.InitEventsOptional(aws.Config, cfg.Storage.EventBusName),
		MaxUploadBytes: cfg.Upload.MaxBytes,
		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),
	}
	if s3c := lambdaboot.InitS3Optional(aws.Config, cfg.Storage.VideoBucket); s3c != nil {
		opts.Videos = &api.VideoBucket{Client: s3c.Client, Presigner: s3c.Presigner, Name: s3c.Bucket}
	}
	adapter = httpadapter.NewV2(api.New(opts).Handler())

	lambdaboot.StartupLog("coach-lambda", initStart).
		CommitHash(commitHash).
		DynamoTable("sessions", cfg.Storage.SessionsTable).
		S3Bucket("videos", cfg.Storage.VideoBucket).
		EventBus("sessions", cfg.Storage.EventBusName).
		SSMParam("geminiApiKey", cfg.Oracle.SSMKeyParam).
		Feature("oracle", p.Oracle).
		Feature("dynamo", cfg.Storage.SessionsTable != "").
		Config("model", p.Model).
		Config("allowedOrigins", os.Getenv("ALLOWED_ORIGINS")).
		Log()
}

func main() {
	lambda.Start(adapter.ProxyWithContext)
}

// splitList parses a comma-separated list, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
