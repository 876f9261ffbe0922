package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/spec-kit/ticket-tracker/internal/config"
)

// BlobStore accepts file content under a path and resolves it to a URL.
type BlobStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	PublicURL(ctx context.Context, path string) (string, error)
}

// S3Store is a BlobStore backed by an S3-compatible bucket.
type S3Store struct {
	api        *s3.Client
	presign    *s3.PresignClient
	bucket     string
	publicBase string
	presignTTL time.Duration
}

// NewS3Store builds a store from configuration. Static credentials are used
// when provided, otherwise the default AWS credential chain applies.
func NewS3Store(ctx context.Context, cfg config.StorageConfig) (*S3Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("storage bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return &S3Store{
		api:        client,
		presign:    s3.NewPresignClient(client),
		bucket:     cfg.Bucket,
		publicBase: cfg.PublicBaseURL,
		presignTTL: cfg.PresignTTL(),
	}, nil
}

// Upload stores data at path with the declared content type.
func (s *S3Store) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	if s == nil {
		return errors.New("nil store")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	size := int64(len(data))
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(path),
		Body:          bytes.NewReader(data),
		ContentLength: &size,
		ContentType:   aws.String(contentType),
	})
	return err
}

// PublicURL returns a stable URL under the configured public base, or a
// presigned GET URL when the bucket is private.
func (s *S3Store) PublicURL(ctx context.Context, path string) (string, error) {
	if s == nil {
		return "", errors.New("nil store")
	}
	if s.publicBase != "" {
		return JoinPublicURL(s.publicBase, path), nil
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.presignTTL
	})
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// Ping checks that the bucket is reachable.
func (s *S3Store) Ping(ctx context.Context) error {
	if s == nil {
		return errors.New("nil store")
	}
	_, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

// JoinPublicURL appends an escaped object path to base.
func JoinPublicURL(base, path string) string {
	segments := strings.Split(strings.TrimLeft(path, "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segments, "/")
}
