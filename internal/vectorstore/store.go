package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/docchat-dev/docchat/internal/ai"
	"github.com/docchat-dev/docchat/internal/model"
)

// StoreError wraps a failed index operation with the operation name so
// callers can tell ingestion failures from search failures in logs.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("vector store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// Params configures the backing Postgres index.
type Params struct {
	DSN        string
	Dimensions int
}

// Manager is the pgvector-backed chunk index. It owns the embedding step for
// both directions: documents are embedded on add, queries on search, always
// through the same provider so vectors stay comparable.
type Manager struct {
	db       *sqlx.DB
	embedder ai.IEmbeddingProvider
	dims     int
}

// Open connects, enables the vector extension, and ensures the schema. Any
// failure here is fatal for the caller: a chatbot without its index cannot
// serve.
func Open(ctx context.Context, params Params, embedder ai.IEmbeddingProvider) (*Manager, error) {
	if params.Dimensions <= 0 {
		return nil, storeErr("open", fmt.Errorf("embedding dimensions must be positive, got %d", params.Dimensions))
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", params.DSN)
	if err != nil {
		return nil, storeErr("open", err)
	}
	m := &Manager{db: db, embedder: embedder, dims: params.Dimensions}
	if err := m.migrate(ctx); err != nil {
		db.Close()
		return nil, storeErr("migrate", err)
	}
	return m, nil
}

func (m *Manager) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
			id UUID PRIMARY KEY,
			content TEXT NOT NULL,
			source TEXT NOT NULL,
			document_id UUID NOT NULL,
			embedding vector(%d) NOT NULL,
			ctime TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, m.dims),
		`CREATE INDEX IF NOT EXISTS idx_document_chunks_source ON document_chunks (source)`,
		`CREATE INDEX IF NOT EXISTS idx_document_chunks_embedding ON document_chunks
			USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, stmt := range stmts {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) Close() error {
	return m.db.Close()
}

// AddDocuments embeds the chunk contents in one batch and inserts them in a
// single transaction. Returned ids follow input order. Chunks arriving
// without an ID get a fresh one.
func (m *Manager) AddDocuments(ctx context.Context, chunks []model.DocumentChunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		texts = append(texts, chunk.Content)
	}
	vectors, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, storeErr("add", err)
	}
	if len(vectors) != len(chunks) {
		return nil, storeErr("add", fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks)))
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storeErr("add", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO document_chunks (id, content, source, document_id, embedding)
		VALUES ($1, $2, $3, $4, $5)
	`
	ids := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		id := chunk.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, query,
			id, chunk.Content, chunk.Source, chunk.DocumentID, pgvector.NewVector(vectors[i]),
		); err != nil {
			return nil, storeErr("add", err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, storeErr("add", err)
	}

	logutil.GetLogger(ctx).Debug("added chunks to index",
		zap.Int("count", len(ids)),
		zap.String("source", chunks[0].Source),
	)
	return ids, nil
}

type chunkRow struct {
	ID         string  `db:"id"`
	Content    string  `db:"content"`
	Source     string  `db:"source"`
	DocumentID string  `db:"document_id"`
	Score      float64 `db:"score"`
}

// Search embeds the query, pulls the k nearest chunks by cosine distance,
// and drops the ones under scoreThreshold locally. The database only ranks;
// the relevance cutoff lives here so a threshold change never depends on
// index-side capabilities.
func (m *Manager) Search(ctx context.Context, query string, k int, scoreThreshold float64) ([]model.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	vec, err := m.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, storeErr("search", err)
	}

	const sqlQuery = `
		SELECT id, content, source, document_id,
			1 - (embedding <=> $1) AS score
		FROM document_chunks
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	var rows []chunkRow
	if err := m.db.SelectContext(ctx, &rows, sqlQuery, pgvector.NewVector(vec), k); err != nil {
		return nil, storeErr("search", err)
	}

	results := make([]model.SearchResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, model.SearchResult{
			Chunk: model.DocumentChunk{
				ID:         row.ID,
				Content:    row.Content,
				Source:     row.Source,
				DocumentID: row.DocumentID,
			},
			Score: row.Score,
		})
	}
	return filterByScore(results, scoreThreshold), nil
}

// filterByScore keeps results at or above threshold, preserving order.
func filterByScore(results []model.SearchResult, threshold float64) []model.SearchResult {
	filtered := make([]model.SearchResult, 0, len(results))
	for _, res := range results {
		if res.Score >= threshold {
			filtered = append(filtered, res)
		}
	}
	return filtered
}

// DeleteBySource removes every chunk ingested from source, across all of its
// document ids. Deleting an unknown source is a no-op.
func (m *Manager) DeleteBySource(ctx context.Context, source string) error {
	res, err := m.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE source = $1`, source)
	if err != nil {
		return storeErr("delete", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		logutil.GetLogger(ctx).Info("deleted chunks by source",
			zap.String("source", source),
			zap.Int64("count", n),
		)
	}
	return nil
}

// Count returns the total number of indexed chunks.
func (m *Manager) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := m.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM document_chunks`); err != nil {
		return 0, storeErr("count", err)
	}
	return count, nil
}

// ListSources returns the distinct source filenames currently indexed, with
// per-source chunk counts, newest first.
func (m *Manager) ListSources(ctx context.Context) ([]model.SourceStat, error) {
	const query = `
		SELECT source, COUNT(*) AS chunks, MAX(ctime) AS last_indexed
		FROM document_chunks
		GROUP BY source
		ORDER BY last_indexed DESC
	`
	var stats []model.SourceStat
	if err := m.db.SelectContext(ctx, &stats, query); err != nil {
		return nil, storeErr("list", err)
	}
	return stats, nil
}
