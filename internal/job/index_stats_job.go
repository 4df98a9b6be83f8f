package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/docchat-dev/docchat/internal/vectorstore"
)

// IndexStatsJob periodically logs the index size so operators can watch
// growth without a metrics stack.
type IndexStatsJob struct {
	store *vectorstore.Manager
}

func NewIndexStatsJob(store *vectorstore.Manager) *IndexStatsJob {
	return &IndexStatsJob{store: store}
}

func (j *IndexStatsJob) Name() string {
	return "index_stats"
}

func (j *IndexStatsJob) Run(ctx context.Context) error {
	if j.store == nil {
		return nil
	}
	count, err := j.store.Count(ctx)
	if err != nil {
		return err
	}
	sources, err := j.store.ListSources(ctx)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("index stats",
		zap.Int64("chunks", count),
		zap.Int("sources", len(sources)),
	)
	return nil
}
