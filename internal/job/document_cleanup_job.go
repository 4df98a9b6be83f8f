package job

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/docchat-dev/docchat/internal/rag"
	"github.com/docchat-dev/docchat/internal/vectorstore"
)

// DocumentCleanupJob removes files from the documents directory that never
// made it into the index. A file lands in that state when its upload was
// written to disk but indexing failed afterwards; anything still unindexed
// after maxAge is considered abandoned.
type DocumentCleanupJob struct {
	store  *vectorstore.Manager
	dir    string
	maxAge time.Duration
}

func NewDocumentCleanupJob(store *vectorstore.Manager, dir string, maxAge time.Duration) *DocumentCleanupJob {
	return &DocumentCleanupJob{store: store, dir: dir, maxAge: maxAge}
}

func (j *DocumentCleanupJob) Name() string {
	return "document_cleanup"
}

func (j *DocumentCleanupJob) Run(ctx context.Context) error {
	if j.store == nil || j.dir == "" {
		return nil
	}
	maxAge := j.maxAge
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}

	sources, err := j.store.ListSources(ctx)
	if err != nil {
		return err
	}
	indexed := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		indexed[src.Source] = struct{}{}
	}

	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	cutoff := time.Now().Add(-maxAge)
	logger := logutil.GetLogger(ctx)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := indexed[entry.Name()]; ok {
			continue
		}
		if !rag.IsSupportedFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(j.dir, entry.Name())); err != nil {
			logger.Warn("remove orphaned document failed",
				zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Info("removed orphaned documents", zap.Int("count", removed))
	}
	return nil
}
