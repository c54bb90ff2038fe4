// Package s3 provides a remote.StorageAdapter backed by an S3-compatible
// object store (AWS S3, MinIO, etc.).
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dmitrijs2005/attachsync/models"
)

// Config holds connection settings for the object store. BaseEndpoint is
// optional and typically points at a MinIO-compatible endpoint.
type Config struct {
	Region       string
	Bucket       string
	Prefix       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
}

// Storage implements remote.StorageAdapter over an S3 bucket. Objects are
// keyed by attachment filename under the configured prefix.
type Storage struct {
	client *s3.Client
	bucket string
	prefix string
}

// New builds an S3 client from cfg and returns a Storage over it.
func New(ctx context.Context, cfg Config) (*Storage, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		}
	})

	return &Storage{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// NewWithClient wraps an already-configured client. Useful in tests.
func NewWithClient(client *s3.Client, bucket, prefix string) *Storage {
	return &Storage{client: client, bucket: bucket, prefix: prefix}
}

func (s *Storage) key(a *models.Attachment) string {
	return path.Join(s.prefix, a.Filename)
}

func (s *Storage) Upload(ctx context.Context, data []byte, attachment *models.Attachment) error {
	contentType := attachment.MediaType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(attachment)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", attachment.Filename, err)
	}
	return nil
}

func (s *Storage) Download(ctx context.Context, attachment *models.Attachment) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(attachment)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", attachment.Filename, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", attachment.Filename, err)
	}
	return data, nil
}

func (s *Storage) Delete(ctx context.Context, attachment *models.Attachment) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(attachment)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", attachment.Filename, err)
	}
	return nil
}
