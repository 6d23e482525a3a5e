package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

var (
	ErrMediaTooLarge     = errors.New("media file exceeds the size limit")
	ErrMediaTypeRejected = errors.New("media file type is not accepted")
)

// MediaStore keeps creator uploads under a public prefix.
type MediaStore interface {
	UploadMedia(ctx context.Context, file multipart.File, header *multipart.FileHeader, ownerID string) (string, error)
	GetPublicURL(objectName string) string
}

type MediaUpload struct {
	ObjectName  string `json:"object_name"`
	URL         string `json:"url"`
	FileName    string `json:"file_name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

type MediaService interface {
	Upload(ctx context.Context, actor Actor, header *multipart.FileHeader) (*MediaUpload, error)
}

type mediaService struct {
	store      MediaStore
	maxSize    int64
	extensions map[string]bool
	logger     *zap.Logger
}

func NewMediaService(store MediaStore, maxSize int64, extensions []string, logger *zap.Logger) MediaService {
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = true
	}
	return &mediaService{store: store, maxSize: maxSize, extensions: allowed, logger: logger}
}

// Upload stores cover art or audio and returns the URL the release form
// submits to the backend.
func (s *mediaService) Upload(ctx context.Context, actor Actor, header *multipart.FileHeader) (*MediaUpload, error) {
	if s.maxSize > 0 && header.Size > s.maxSize {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrMediaTooLarge, header.Size, s.maxSize)
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if len(s.extensions) > 0 && !s.extensions[ext] {
		return nil, fmt.Errorf("%w: %q", ErrMediaTypeRejected, ext)
	}

	src, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	defer src.Close()

	objectName, err := s.store.UploadMedia(ctx, src, header, actor.OperatorID())
	if err != nil {
		return nil, err
	}

	s.logger.Info("media uploaded",
		zap.String("operator_id", actor.OperatorID()),
		zap.String("object", objectName),
		zap.Int64("size", header.Size),
	)

	return &MediaUpload{
		ObjectName:  objectName,
		URL:         s.store.GetPublicURL(objectName),
		FileName:    header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
	}, nil
}
