// Package source fetches spreadsheets that an event names by location
// instead of carrying inline.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/JonMunkholm/sheethealth/internal/config"
)

var (
	// ErrObjectNotFound is returned when the bucket has no such key.
	ErrObjectNotFound = errors.New("object not found")

	// ErrMissingLocation is returned when the bucket or key is empty.
	ErrMissingLocation = errors.New("bucket and key are required")
)

// GetObjectAPI is the part of the S3 client the fetcher needs.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 reads whole objects into memory.
type S3 struct {
	client        GetObjectAPI
	defaultBucket string
	maxBytes      int64
}

// NewS3 wraps client. Objects are read up to maxBytes+1 bytes so the loader
// can still report an oversized file; zero disables the cap.
func NewS3(client GetObjectAPI, defaultBucket string, maxBytes int64) *S3 {
	return &S3{client: client, defaultBucket: defaultBucket, maxBytes: maxBytes}
}

// NewS3FromConfig builds an S3 client from the storage settings.
func NewS3FromConfig(ctx context.Context, cfg config.StorageConfig, maxBytes int64) (*S3, error) {
	opts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	slog.Info("s3 source enabled",
		"region", cfg.Region,
		"endpoint", cfg.Endpoint,
		"path_style", cfg.UsePathStyle,
		"default_bucket", cfg.DefaultBucket,
	)

	return NewS3(client, cfg.DefaultBucket, maxBytes), nil
}

// Fetch returns the object's bytes. An empty bucket falls back to the
// default bucket.
func (s *S3) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	if bucket == "" {
		bucket = s.defaultBucket
	}
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("fetch object s3://%s/%s: %w", bucket, key, ErrMissingLocation)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			err = ErrObjectNotFound
		}
		return nil, fmt.Errorf("fetch object s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	var r io.Reader = out.Body
	if s.maxBytes > 0 {
		r = io.LimitReader(out.Body, s.maxBytes+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("fetch object s3://%s/%s: read body: %w", bucket, key, err)
	}
	return data, nil
}
