package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/docchat-dev/docchat/internal/ai"
)

// WrapLruCache memoizes single-text embeddings in a bounded in-process LRU.
// Only EmbedText is cached: it sits on the per-query hot path where repeated
// questions are common, while EmbedBatch feeds one-shot document ingestion
// and passes straight through. Size or TTL of zero disables wrapping.
func WrapLruCache(e ai.IEmbeddingProvider, size int, ttl time.Duration) ai.IEmbeddingProvider {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &lruEmbedder{
		next:  e,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruEmbedder struct {
	next  ai.IEmbeddingProvider
	cache *expirable.LRU[string, []float32]
}

func (l *lruEmbedder) Name() string {
	return l.next.Name()
}

func (l *lruEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	key := buildCacheKey(l.next.Name(), text)
	if cached, ok := l.cache.Get(key); ok {
		logutil.GetLogger(ctx).Debug("embedding cache hit", zap.String("provider", l.next.Name()))
		return cloneEmbedding(cached), nil
	}
	res, err := l.next.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	l.cache.Add(key, cloneEmbedding(res))
	return res, nil
}

func (l *lruEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return l.next.EmbedBatch(ctx, texts)
}

func buildCacheKey(provider string, text string) string {
	hash := sha256.Sum256([]byte(text))
	return "embed:" + provider + ":" + hex.EncodeToString(hash[:])
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
