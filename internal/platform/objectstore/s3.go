package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fithub/fithub-api/internal/config"
	"github.com/fithub/fithub-api/internal/platform/logger"
)

// Store puts and deletes objects by key.
type Store interface {
	// Put stores payload under key and returns its public URL.
	Put(ctx context.Context, key, contentType string, payload []byte) (string, error)
	// Delete removes key. Deleting a missing key succeeds.
	Delete(ctx context.Context, key string) error
}

// ErrEmptyKey is returned for operations without an object key.
var ErrEmptyKey = errors.New("object key cannot be empty")

type uploadAPI interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type deleteAPI interface {
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store implements Store on an S3 bucket.
type S3Store struct {
	uploader uploadAPI
	deleter  deleteAPI
	bucket   string
	baseURL  string
	logger   *slog.Logger
}

var _ Store = (*S3Store)(nil)

// NewS3Store builds an S3Store from the storage configuration. Static
// credentials are used when an access key is configured; otherwise the
// default AWS credential chain applies. A custom endpoint selects an
// S3-compatible server such as MinIO.
func NewS3Store(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*S3Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return newS3Store(manager.NewUploader(client), client, cfg, logger), nil
}

func newS3Store(up uploadAPI, del deleteAPI, cfg config.StorageConfig, logger *slog.Logger) *S3Store {
	return &S3Store{
		uploader: up,
		deleter:  del,
		bucket:   cfg.Bucket,
		baseURL:  publicBaseURL(cfg),
		logger:   logger.With(slog.String("component", "s3_store")),
	}
}

// publicBaseURL picks where stored objects are served from.
func publicBaseURL(cfg config.StorageConfig) string {
	switch {
	case cfg.PublicBaseURL != "":
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	case cfg.Endpoint != "" && cfg.UsePathStyle:
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	case cfg.Endpoint != "":
		u, err := url.Parse(cfg.Endpoint)
		if err != nil || u.Host == "" {
			return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
		}
		return u.Scheme + "://" + cfg.Bucket + "." + u.Host
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
}

// URL returns the public URL of key.
func (s *S3Store) URL(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + strings.Join(segments, "/")
}

// Put implements Store.
func (s *S3Store) Put(ctx context.Context, key, contentType string, payload []byte) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(payload))),
	})
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("object upload failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return s.URL(key), nil
}

// Delete implements Store.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	_, err := s.deleter.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
