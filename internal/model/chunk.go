package model

import (
	"math"
	"time"
)

// DocumentChunk is the atomic unit of indexing and retrieval. Every chunk
// stored in the index carries a non-empty Source and DocumentID; all chunks
// produced from one ingested file share the same DocumentID.
type DocumentChunk struct {
	ID         string    `json:"id" db:"id"`
	Content    string    `json:"content" db:"content"`
	Source     string    `json:"source" db:"source"`
	DocumentID string    `json:"document_id" db:"document_id"`
	Embedding  []float32 `json:"-" db:"-"`
}

// SearchResult pairs a stored chunk with its normalized [0,1] relevance
// score for one query. It is never persisted on its own.
type SearchResult struct {
	Chunk DocumentChunk `json:"chunk"`
	Score float64       `json:"score"`
}

// SourceStat summarizes one indexed source file for document listings.
type SourceStat struct {
	Source      string    `json:"source" db:"source"`
	Chunks      int64     `json:"chunks" db:"chunks"`
	LastIndexed time.Time `json:"last_indexed" db:"last_indexed"`
}

const sourcePreviewLimit = 200

// SourceInfo is the caller-facing citation for one retrieved chunk.
type SourceInfo struct {
	Document       string  `json:"document"`
	Chunk          string  `json:"chunk"`
	RelevanceScore float64 `json:"relevance_score"`
}

// NewSourceInfo builds the citation for a search result: preview capped at
// 200 characters, score rounded to 3 decimals.
func NewSourceInfo(res SearchResult) SourceInfo {
	preview := res.Chunk.Content
	if runes := []rune(preview); len(runes) > sourcePreviewLimit {
		preview = string(runes[:sourcePreviewLimit])
	}
	return SourceInfo{
		Document:       res.Chunk.Source,
		Chunk:          preview,
		RelevanceScore: roundScore(res.Score),
	}
}

func roundScore(score float64) float64 {
	return math.Round(score*1000) / 1000
}
