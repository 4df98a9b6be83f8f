package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/docchat-dev/docchat/internal/model"
)

const contextSeparator = "\n\n---\n\n"

// VectorStore is the similarity index the engine retrieves from. The
// production implementation lives in internal/vectorstore; tests substitute
// fakes.
type VectorStore interface {
	AddDocuments(ctx context.Context, chunks []model.DocumentChunk) ([]string, error)
	Search(ctx context.Context, query string, k int, scoreThreshold float64) ([]model.SearchResult, error)
	DeleteBySource(ctx context.Context, source string) error
	Count(ctx context.Context) (int64, error)
}

// Retriever turns a query into scored chunks and a context block using the
// process-configured top-k and score threshold.
type Retriever struct {
	store          VectorStore
	topK           int
	scoreThreshold float64
}

func NewRetriever(store VectorStore, topK int, scoreThreshold float64) *Retriever {
	return &Retriever{store: store, topK: topK, scoreThreshold: scoreThreshold}
}

// Retrieve searches with the configured defaults.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]model.SearchResult, error) {
	return r.RetrieveWithOptions(ctx, query, r.topK, r.scoreThreshold)
}

// RetrieveWithOptions passes explicit overrides straight through to the
// store. Non-positive k and negative threshold fall back to the defaults.
func (r *Retriever) RetrieveWithOptions(ctx context.Context, query string, k int, scoreThreshold float64) ([]model.SearchResult, error) {
	if k <= 0 {
		k = r.topK
	}
	if scoreThreshold < 0 {
		scoreThreshold = r.scoreThreshold
	}
	return r.store.Search(ctx, query, k, scoreThreshold)
}

// RetrieveAsContext searches and joins the hits into one annotated context
// block. Empty results produce ("", nil): no answer derivable from the
// documents, which is a normal outcome rather than an error.
func (r *Retriever) RetrieveAsContext(ctx context.Context, query string) (string, []model.SearchResult, error) {
	results, err := r.Retrieve(ctx, query)
	if err != nil {
		return "", nil, err
	}
	return BuildContext(results), results, nil
}

// BuildContext renders retrieved chunks in retrieval order, each annotated
// with its source document.
func BuildContext(results []model.SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	entries := make([]string, 0, len(results))
	for _, res := range results {
		entries = append(entries, fmt.Sprintf("[source: %s]\n%s", res.Chunk.Source, res.Chunk.Content))
	}
	return strings.Join(entries, contextSeparator)
}
