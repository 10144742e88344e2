// Package s3 stores generated recipe images in an S3 bucket
package s3

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/alchemorsel/recipe-studio/internal/ports/outbound"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"go.uber.org/zap"
)

// Config holds bucket settings
type Config struct {
	Bucket string
	Region string
	// Endpoint overrides the S3 endpoint, e.g. for MinIO or LocalStack.
	Endpoint string
	// PublicBaseURL is the CDN or website origin the bucket is served from.
	// Without it the upload location is returned.
	PublicBaseURL string
}

// ImageStore implements outbound.ImageStorage
type ImageStore struct {
	uploader s3manageriface.UploaderAPI
	config   Config
	logger   *zap.Logger
}

// NewImageStore creates an S3 session and uploader
func NewImageStore(cfg Config, logger *zap.Logger) (*ImageStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewImageStoreWithUploader(s3manager.NewUploader(sess), cfg, logger), nil
}

// NewImageStoreWithUploader creates a store around an existing uploader
func NewImageStoreWithUploader(uploader s3manageriface.UploaderAPI, cfg Config, logger *zap.Logger) *ImageStore {
	return &ImageStore{
		uploader: uploader,
		config:   cfg,
		logger:   logger.Named("s3"),
	}
}

var _ outbound.ImageStorage = (*ImageStore)(nil)

// Upload writes data under key and returns its public URL
func (s *ImageStore) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	out, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:       aws.String(s.config.Bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	url := out.Location
	if s.config.PublicBaseURL != "" {
		url = strings.TrimRight(s.config.PublicBaseURL, "/") + "/" + key
	}

	s.logger.Debug("Image uploaded",
		zap.String("bucket", s.config.Bucket),
		zap.String("key", key),
		zap.Int("bytes", len(data)),
	)
	return url, nil
}
