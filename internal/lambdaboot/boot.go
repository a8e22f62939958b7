// Package lambdaboot provides the Lambda cold-start bootstrap shared by the
// coach binaries that run on AWS: AWS config, the Gemini key from SSM, and
// the optional DynamoDB, S3 and EventBridge clients. Every optional resource
// is keyed on configuration and degrades to nil when absent.
package lambdaboot

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/interview-coach/internal/config"
	"github.com/fpang/interview-coach/internal/events"
	"github.com/fpang/interview-coach/internal/logging"
	"github.com/fpang/interview-coach/internal/store"
)

// AWSClients holds the core AWS config and the SSM client.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// S3Clients holds the S3 client, presigner and bucket name.
type S3Clients struct {
	Client    *s3.Client
	Presigner *s3.PresignClient
	Bucket    string
}

// InitAWS loads the default AWS config. Fatal on error since nothing on
// Lambda works without it.
func InitAWS(ctx context.Context) AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// InitS3Optional creates S3 clients for bucket, or returns nil when bucket
// is empty.
func InitS3Optional(cfg aws.Config, bucket string) *S3Clients {
	if bucket == "" {
		log.Warn().Msg("VIDEO_BUCKET not set, S3 uploads disabled")
		return nil
	}
	client := s3.NewFromConfig(cfg)
	return &S3Clients{
		Client:    client,
		Presigner: s3.NewPresignClient(client),
		Bucket:    bucket,
	}
}

// InitDynamoOptional creates a DynamoDB-backed store for table, or returns
// nil when table is empty.
func InitDynamoOptional(cfg aws.Config, table string) *store.DynamoStore {
	if table == "" {
		log.Warn().Msg("SESSIONS_TABLE not set, DynamoDB store disabled")
		return nil
	}
	return store.NewDynamoStore(dynamodb.NewFromConfig(cfg), table)
}

// InitEventsOptional creates an EventBridge publisher for bus, or a no-op
// publisher when bus is empty.
func InitEventsOptional(cfg aws.Config, bus string) events.Publisher {
	if bus == "" {
		log.Debug().Msg("EVENT_BUS_NAME not set, session events disabled")
		return events.Nop{}
	}
	return events.NewEventBridge(eventbridge.NewFromConfig(cfg), bus)
}

// ParameterGetter is the subset of the SSM client used to read secrets.
type ParameterGetter interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadGeminiKey fills oc.APIKey from SSM Parameter Store when it is not
// already set and the oracle is not disabled. Failure is not fatal: the
// service runs on the local analyzer alone.
func LoadGeminiKey(ctx context.Context, client ParameterGetter, oc *config.OracleConfig) {
	if oc.APIKey != "" || oc.Disabled {
		return
	}
	start := time.Now()
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(oc.SSMKeyParam),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		log.Warn().Err(err).Str("param", oc.SSMKeyParam).Msg("Gemini API key not available from SSM, oracle disabled")
		return
	}
	if result.Parameter == nil || aws.ToString(result.Parameter.Value) == "" {
		log.Warn().Str("param", oc.SSMKeyParam).Msg("Gemini API key parameter is empty, oracle disabled")
		return
	}
	oc.APIKey = aws.ToString(result.Parameter.Value)
	log.Debug().Str("param", oc.SSMKeyParam).Dur("elapsed", time.Since(start)).Msg("Gemini API key loaded from SSM")
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
