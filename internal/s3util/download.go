// Package s3util provides the S3 helpers behind video uploads: key layout,
// presigned PUT URLs for the browser, and downloading an uploaded video to
// local disk for analysis.
package s3util

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/fpang/interview-coach/internal/video"
)

// GetObjectAPI is the subset of the S3 client used for downloads.
type GetObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// DownloadVideo copies an S3 object to a temporary file. Objects larger than
// limit (when > 0) fail with video.ErrTooLarge; the object's declared length
// is checked before any bytes are copied. The caller must Remove the spool.
func DownloadVideo(ctx context.Context, client GetObjectAPI, bucket, key string, limit int64) (*video.Spool, error) {
	log.Debug().Str("bucket", bucket).Str("key", key).Msg("Downloading video from S3")

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("S3 GetObject %s: %w", key, err)
	}
	defer result.Body.Close()

	if limit > 0 && result.ContentLength != nil && *result.ContentLength > limit {
		return nil, fmt.Errorf("%w: object is %d bytes", video.ErrTooLarge, *result.ContentLength)
	}

	ext := filepath.Ext(key)
	if !video.IsSupported(key) {
		ext = video.ExtensionFor(aws.ToString(result.ContentType))
	}
	spool, err := video.SpoolToTemp(result.Body, ext, limit)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}

	log.Debug().Str("key", key).Int64("size", spool.Size).Msg("Video downloaded from S3")
	return spool, nil
}
