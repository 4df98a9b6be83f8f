package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/docchat-dev/docchat/internal/filestore"
	"github.com/docchat-dev/docchat/internal/model"
	"github.com/docchat-dev/docchat/internal/rag"
)

// DocumentIndex is the slice of the vector store the document lifecycle
// needs besides ingestion, which goes through the engine.
type DocumentIndex interface {
	DeleteBySource(ctx context.Context, source string) error
	Count(ctx context.Context) (int64, error)
	ListSources(ctx context.Context) ([]model.SourceStat, error)
}

// UploadResult describes one completed ingestion.
type UploadResult struct {
	Source     string `json:"source"`
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
}

// ReindexResult summarizes a full rebuild of the index from the documents
// directory.
type ReindexResult struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
}

type DocumentService struct {
	engine   *rag.Engine
	store    DocumentIndex
	archive  filestore.Store
	dir      string
	maxBytes int64
}

func NewDocumentService(engine *rag.Engine, store DocumentIndex, archive filestore.Store, dir string, maxFileSizeMB int) *DocumentService {
	return &DocumentService{
		engine:   engine,
		store:    store,
		archive:  archive,
		dir:      dir,
		maxBytes: int64(maxFileSizeMB) * 1024 * 1024,
	}
}

// Upload stores the file in the documents directory and indexes it. An
// existing upload with the same filename is replaced: its chunks are
// dropped before the new content is indexed, so the index never serves two
// generations of one file.
func (s *DocumentService) Upload(ctx context.Context, filename string, r filestore.ReadSeekCloser, size int64) (*UploadResult, error) {
	name, err := s.sanitizeFilename(filename)
	if err != nil {
		return nil, err
	}
	if size > s.maxBytes {
		return nil, fmt.Errorf("file exceeds size limit of %d bytes", s.maxBytes)
	}
	logger := logutil.GetLogger(ctx).With(zap.String("source", name))

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(s.dir, name)
	if err := s.writeFile(path, r); err != nil {
		return nil, err
	}

	if s.archive != nil {
		if err := s.archive.Save(ctx, name, r, size); err != nil {
			logger.Warn("archive save failed", zap.Error(err))
		}
	}

	if err := s.store.DeleteBySource(ctx, name); err != nil {
		return nil, err
	}
	docID, chunks, err := s.engine.LoadAndIndexFile(ctx, path)
	if err != nil {
		logger.Error("index uploaded file failed", zap.Error(err))
		return nil, err
	}
	return &UploadResult{Source: name, DocumentID: docID, Chunks: chunks}, nil
}

func (s *DocumentService) writeFile(path string, r filestore.ReadSeekCloser) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := r.Seek(0, 0); err != nil {
		return err
	}
	if _, err := out.ReadFrom(r); err != nil {
		return err
	}
	return nil
}

// Delete removes a document from the index, the documents directory, and
// the archive. Unknown sources are a no-op in all three places.
func (s *DocumentService) Delete(ctx context.Context, source string) error {
	name, err := s.sanitizeFilename(source)
	if err != nil {
		return err
	}
	if err := s.store.DeleteBySource(ctx, name); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if s.archive != nil {
		if err := s.archive.Delete(ctx, name); err != nil {
			logutil.GetLogger(ctx).Warn("archive delete failed",
				zap.String("source", name), zap.Error(err))
		}
	}
	return nil
}

// List returns the indexed sources with per-source chunk counts.
func (s *DocumentService) List(ctx context.Context) ([]model.SourceStat, error) {
	return s.store.ListSources(ctx)
}

// Count returns the total number of indexed chunks.
func (s *DocumentService) Count(ctx context.Context) (int64, error) {
	return s.store.Count(ctx)
}

// ReindexAll rebuilds the index from every supported file in the documents
// directory. Each file gets a fresh document id; its previous chunks are
// dropped first.
func (s *DocumentService) ReindexAll(ctx context.Context) (*ReindexResult, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &ReindexResult{}, nil
		}
		return nil, err
	}
	logger := logutil.GetLogger(ctx)

	result := &ReindexResult{}
	for _, entry := range entries {
		if entry.IsDir() || !rag.IsSupportedFile(entry.Name()) {
			continue
		}
		if err := s.store.DeleteBySource(ctx, entry.Name()); err != nil {
			return nil, err
		}
		_, chunks, err := s.engine.LoadAndIndexFile(ctx, filepath.Join(s.dir, entry.Name()))
		if err != nil {
			logger.Error("reindex file failed",
				zap.String("source", entry.Name()), zap.Error(err))
			return nil, err
		}
		result.Documents++
		result.Chunks += chunks
	}
	logger.Info("reindex completed",
		zap.Int("documents", result.Documents),
		zap.Int("chunks", result.Chunks),
	)
	return result, nil
}

// sanitizeFilename strips any path component and checks the extension
// before a single byte is written anywhere.
func (s *DocumentService) sanitizeFilename(filename string) (string, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid filename")
	}
	if !rag.IsSupportedFile(name) {
		return "", &rag.UnsupportedFileTypeError{Ext: strings.ToLower(filepath.Ext(name))}
	}
	return name, nil
}
