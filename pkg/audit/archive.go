package audit

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3ArchiverConfig configures the S3 archive target.
type S3ArchiverConfig struct {
	Bucket       string
	Region       string
	Endpoint     string // Optional, for MinIO or S3-compatible stores
	AccessKey    string // Optional, falls back to the default chain
	SecretKey    string
	UsePathStyle bool
}

// S3Archiver uploads expiring audit exports to S3 before retention
// deletes them from the primary store.
type S3Archiver struct {
	client *s3.Client
	bucket string
}

// NewS3Archiver creates an archiver for the configured bucket.
func NewS3Archiver(ctx context.Context, cfg S3ArchiverConfig) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}

	var awsCfg aws.Config
	var err error
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		// Static credentials, for MinIO or explicit keys
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKey, cfg.SecretKey, "",
			)),
		)
	} else {
		// Default credential chain (IAM roles, env vars, etc.)
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return &S3Archiver{client: client, bucket: cfg.Bucket}, nil
}

// Archive implements Archiver by uploading data under the given key.
func (a *S3Archiver) Archive(ctx context.Context, key string, data []byte) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload audit archive %s: %w", key, err)
	}
	return nil
}
