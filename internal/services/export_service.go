package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tunebridge/console/internal/export"
)

var ErrChunkOutOfRange = errors.New("export chunk is outside the collection")

// ObjectStore is where rendered export files are kept.
type ObjectStore interface {
	UploadExport(ctx context.Context, name, contentType string, data []byte) (string, error)
	GetFileURL(ctx context.Context, objectName string) (string, error)
}

type ChunkList struct {
	TotalItems int64          `json:"total_items"`
	ChunkSize  int            `json:"chunk_size"`
	Chunks     []export.Chunk `json:"chunks"`
}

// ChunkFile is one rendered chunk ready for download.
type ChunkFile struct {
	Chunk      export.Chunk  `json:"chunk"`
	Format     export.Format `json:"format"`
	Rows       int           `json:"rows"`
	ObjectName string        `json:"object_name"`
	URL        string        `json:"url"`
}

type ExportService interface {
	Chunks(ctx context.Context, actor Actor) (*ChunkList, error)
	RenderChunk(ctx context.Context, actor Actor, page int, format export.Format) (*ChunkFile, error)
}

type exportService struct {
	backend   Backend
	store     ObjectStore
	chunkSize int
	logger    *zap.Logger
}

func NewExportService(be Backend, store ObjectStore, chunkSize int, logger *zap.Logger) ExportService {
	return &exportService{backend: be, store: store, chunkSize: chunkSize, logger: logger}
}

// Chunks asks the backend for the collection size with a one-item page and
// splits it into chunk descriptors. No release data is fetched.
func (s *exportService) Chunks(ctx context.Context, actor Actor) (*ChunkList, error) {
	first, err := s.backend.GetReleasePage(ctx, actor.Token(), 1, 1)
	if err != nil {
		return nil, err
	}
	chunks, err := export.Chunks(first.Pagination.TotalItems, s.chunkSize)
	if err != nil {
		return nil, err
	}
	return &ChunkList{
		TotalItems: first.Pagination.TotalItems,
		ChunkSize:  s.chunkSize,
		Chunks:     chunks,
	}, nil
}

// RenderChunk fetches one chunk, flattens it and uploads the file. A failed
// chunk does not affect any other chunk.
func (s *exportService) RenderChunk(ctx context.Context, actor Actor, page int, format export.Format) (*ChunkFile, error) {
	if page < 1 {
		return nil, ErrChunkOutOfRange
	}
	data, err := s.backend.GetReleasePage(ctx, actor.Token(), page, s.chunkSize)
	if err != nil {
		return nil, err
	}
	chunk, ok := export.ChunkForPage(data.Pagination.TotalItems, s.chunkSize, page)
	if !ok {
		return nil, ErrChunkOutOfRange
	}

	rows := export.Flatten(data.Items)
	body, err := export.Render(format, rows)
	if err != nil {
		return nil, fmt.Errorf("render chunk %d: %w", page, err)
	}

	name := fmt.Sprintf("releases_%d-%d_%s.%s", chunk.Start, chunk.End, time.Now().UTC().Format("20060102T150405"), format)
	objectName, err := s.store.UploadExport(ctx, name, format.ContentType(), body)
	if err != nil {
		return nil, err
	}
	url, err := s.store.GetFileURL(ctx, objectName)
	if err != nil {
		return nil, err
	}

	s.logger.Info("export chunk rendered",
		zap.String("operator_id", actor.OperatorID()),
		zap.Int("page", page),
		zap.Int("releases", len(data.Items)),
		zap.Int("rows", len(rows)),
		zap.String("format", string(format)),
	)

	return &ChunkFile{
		Chunk:      chunk,
		Format:     format,
		Rows:       len(rows),
		ObjectName: objectName,
		URL:        url,
	}, nil
}
