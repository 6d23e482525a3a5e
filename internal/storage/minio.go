package storage

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/tunebridge/console/internal/config"
)

const (
	exportFolder = "exports"
	mediaFolder  = "media"
)

// MinIOStorage holds export files and creator media. The console only ever
// receives object URLs, never the bytes.
type MinIOStorage struct {
	client     *minio.Client
	bucketName string
	urlExpiry  time.Duration
}

func NewMinIOStorage(cfg *config.MinIOConfig, urlExpiry time.Duration, log *zap.Logger) (*MinIOStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		log.Info("bucket created", zap.String("bucket", cfg.BucketName))

		// Cover art and audio previews are linked from release records, so
		// the media prefix is world-readable. Exports stay private.
		policy := fmt.Sprintf(`{
			"Version": "2012-10-17",
			"Statement": [
				{
					"Effect": "Allow",
					"Principal": {"AWS": ["*"]},
					"Action": ["s3:GetObject"],
					"Resource": ["arn:aws:s3:::%s/%s/*"]
				}
			]
		}`, cfg.BucketName, mediaFolder)
		if err := client.SetBucketPolicy(ctx, cfg.BucketName, policy); err != nil {
			log.Warn("failed to set bucket policy", zap.Error(err))
		}
	}

	if urlExpiry <= 0 {
		urlExpiry = 24 * time.Hour
	}
	log.Info("minio storage connected", zap.String("endpoint", cfg.Endpoint))
	return &MinIOStorage{
		client:     client,
		bucketName: cfg.BucketName,
		urlExpiry:  urlExpiry,
	}, nil
}

// UploadExport stores a rendered export and returns its object name.
func (s *MinIOStorage) UploadExport(ctx context.Context, name, contentType string, data []byte) (string, error) {
	objectName := fmt.Sprintf("%s/%s/%s", exportFolder, time.Now().UTC().Format("2006-01-02"), name)
	_, err := s.client.PutObject(ctx, s.bucketName, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:        contentType,
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", name),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload export: %w", err)
	}
	return objectName, nil
}

// UploadMedia stores a creator upload under the operator's prefix.
func (s *MinIOStorage) UploadMedia(ctx context.Context, file multipart.File, header *multipart.FileHeader, ownerID string) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	objectName := fmt.Sprintf("%s/%s/%s%s", mediaFolder, ownerID, uuid.New().String(), ext)

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, s.bucketName, objectName, file, header.Size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload media: %w", err)
	}
	return objectName, nil
}

func (s *MinIOStorage) GetFileURL(ctx context.Context, objectName string) (string, error) {
	presignedURL, err := s.client.PresignedGetObject(ctx, s.bucketName, objectName, s.urlExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get presigned URL: %w", err)
	}
	return presignedURL.String(), nil
}

// GetPublicURL builds the permanent URL of an object under the public
// media prefix.
func (s *MinIOStorage) GetPublicURL(objectName string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.client.EndpointURL().String(), "/"), s.bucketName, objectName)
}

// Ping checks bucket reachability for readiness probes.
func (s *MinIOStorage) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucketName)
	return err
}
