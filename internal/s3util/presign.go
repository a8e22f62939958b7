package s3util

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// UploadURLExpiry is how long a presigned upload URL stays valid.
const UploadURLExpiry = 15 * time.Minute

// PutPresigner is the subset of s3.PresignClient used for uploads.
type PutPresigner interface {
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// PresignVideoPut returns a presigned PUT URL for key. Content-Type is part
// of the signature, and so is Content-Length when maxBytes > 0, which caps
// what the browser can upload.
func PresignVideoPut(ctx context.Context, presigner PutPresigner, bucket, key, contentType string, maxBytes int64) (string, error) {
	in := &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		ContentType: &contentType,
	}
	if maxBytes > 0 {
		in.ContentLength = aws.Int64(maxBytes)
	}
	result, err := presigner.PresignPutObject(ctx, in, s3.WithPresignExpires(UploadURLExpiry))
	if err != nil {
		return "", fmt.Errorf("presign PutObject %s: %w", key, err)
	}
	return result.URL, nil
}
