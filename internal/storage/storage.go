package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/config"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/logging"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/metrics"
)

// presignExpiry is how long a published output's URL stays valid
const presignExpiry = time.Hour

// Storage publishes finished outputs to object storage
type Storage struct {
	client     *minio.Client
	bucketName string
	prefix     string
	logger     *logging.Logger
}

// New creates a new storage client
func New(cfg config.StorageConfig, logger *logging.Logger) (*Storage, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	// Ensure bucket exists
	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Storage{
		client:     client,
		bucketName: cfg.BucketName,
		prefix:     cfg.Prefix,
		logger:     logger,
	}, nil
}

// Publish uploads a local output under a fresh object key and returns the key
// together with a presigned download URL
func (s *Storage) Publish(ctx context.Context, filePath string) (key string, url string, err error) {
	key = ObjectKey(s.prefix, uuid.New().String(), filePath)

	var size int64
	if info, statErr := os.Stat(filePath); statErr == nil {
		size = info.Size()
	}

	started := time.Now()
	err = s.UploadFile(ctx, key, filePath)
	s.logger.LogStorageOperation("upload", s.bucketName, key, size, time.Since(started), err)
	if err != nil {
		return "", "", err
	}

	url, err = s.GetURL(ctx, key)
	if err != nil {
		return key, "", err
	}
	return key, url, nil
}

// UploadFile uploads a file from local filesystem
func (s *Storage) UploadFile(ctx context.Context, objectName, filePath string) error {
	contentType := getContentType(filePath)

	_, err := s.client.FPutObject(ctx, s.bucketName, objectName, filePath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		metrics.RecordStorageOperation("upload", "failed")
		return fmt.Errorf("failed to upload file: %w", err)
	}

	metrics.RecordStorageOperation("upload", "success")
	return nil
}

// Delete deletes an object from storage
func (s *Storage) Delete(ctx context.Context, objectName string) error {
	err := s.client.RemoveObject(ctx, s.bucketName, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		metrics.RecordStorageOperation("delete", "failed")
		return fmt.Errorf("failed to delete object: %w", err)
	}

	metrics.RecordStorageOperation("delete", "success")
	return nil
}

// GetURL returns a presigned URL for an object
func (s *Storage) GetURL(ctx context.Context, objectName string) (string, error) {
	url, err := s.client.PresignedGetObject(ctx, s.bucketName, objectName, presignExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate URL: %w", err)
	}

	return url.String(), nil
}

// ObjectKey builds prefix/id/basename. Object keys always use forward slashes.
func ObjectKey(prefix, id, filePath string) string {
	return path.Join(strings.Trim(prefix, "/"), id, filepath.Base(filePath))
}

// getContentType returns the content type based on file extension
func getContentType(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".png", ".apng":
		return "image/png"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	default:
		return "application/octet-stream"
	}
}
