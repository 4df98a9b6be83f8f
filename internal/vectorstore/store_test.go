package vectorstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docchat-dev/docchat/internal/model"
)

func scored(score float64) model.SearchResult {
	return model.SearchResult{Score: score}
}

func TestFilterByScore(t *testing.T) {
	results := []model.SearchResult{scored(0.95), scored(0.7), scored(0.69), scored(0.2)}

	filtered := filterByScore(results, 0.7)
	require.Len(t, filtered, 2)
	require.Equal(t, 0.95, filtered[0].Score)
	require.Equal(t, 0.7, filtered[1].Score)
}

func TestFilterByScoreKeepsOrder(t *testing.T) {
	results := []model.SearchResult{scored(0.8), scored(0.9), scored(0.85)}
	filtered := filterByScore(results, 0.0)
	require.Equal(t, results, filtered)
}

func TestFilterByScoreAllBelow(t *testing.T) {
	results := []model.SearchResult{scored(0.1), scored(0.2)}
	filtered := filterByScore(results, 0.7)
	require.NotNil(t, filtered)
	require.Empty(t, filtered)
}

func TestOpenRejectsBadDimensions(t *testing.T) {
	_, err := Open(t.Context(), Params{DSN: "postgres://ignored", Dimensions: 0}, nil)
	var serr *StoreError
	require.True(t, errors.As(err, &serr))
	require.Equal(t, "open", serr.Op)
}

func TestStoreErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := storeErr("search", inner)
	require.ErrorIs(t, err, inner)
	require.Contains(t, err.Error(), "vector store search failed")
}
