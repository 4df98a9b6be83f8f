package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `{
	"port": 8080,
	"jwt_secret": "secret",
	"database": {"dsn": "postgres://localhost/docchat?sslmode=disable"},
	"redis": {"addr": "127.0.0.1:6379"}
}`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "openai", cfg.AI.Provider)
	require.Equal(t, "openai", cfg.Embedding.Provider)
	require.Equal(t, 768, cfg.Database.EmbeddingDimensions)
	require.Equal(t, 1000, cfg.RAG.ChunkSize)
	require.Equal(t, 200, cfg.RAG.ChunkOverlap)
	require.Equal(t, 5, cfg.RAG.TopK)
	require.Equal(t, 0.7, cfg.RAG.ScoreThreshold)
	require.Equal(t, "./docs", cfg.Documents.Dir)
	require.Equal(t, 20, cfg.Documents.MaxFileSizeMB)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, "local", cfg.FileStore.Type)
	require.Equal(t, "./docs", cfg.FileStore.Dir)
}

func TestLoadEmbeddingProviderFollowsAI(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{
		"port": 8080,
		"jwt_secret": "secret",
		"database": {"dsn": "postgres://x"},
		"redis": {"addr": "r:6379"},
		"ai": {"provider": "google", "api_key": "k"}
	}`))
	require.NoError(t, err)
	require.Equal(t, "google", cfg.Embedding.Provider)
}

func TestLoadMissingRequired(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{"port", `{"jwt_secret":"s","database":{"dsn":"d"},"redis":{"addr":"a"}}`, "port is required"},
		{"jwt", `{"port":1,"database":{"dsn":"d"},"redis":{"addr":"a"}}`, "jwt_secret is required"},
		{"dsn", `{"port":1,"jwt_secret":"s","redis":{"addr":"a"}}`, "database.dsn is required"},
		{"redis", `{"port":1,"jwt_secret":"s","database":{"dsn":"d"}}`, "redis.addr is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLoadKeepsExplicitZeroOverlapAndThreshold(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{
		"port": 1, "jwt_secret": "s",
		"database": {"dsn": "d"}, "redis": {"addr": "a"},
		"rag": {"chunk_overlap": 0, "score_threshold": 0}
	}`))
	require.NoError(t, err)
	require.Equal(t, 0, cfg.RAG.ChunkOverlap)
	require.Equal(t, 0.0, cfg.RAG.ScoreThreshold)
	require.Equal(t, 1000, cfg.RAG.ChunkSize)
	require.Equal(t, 5, cfg.RAG.TopK)
}

func TestLoadRejectsBadThreshold(t *testing.T) {
	_, err := Load(writeConfig(t, `{
		"port": 1, "jwt_secret": "s",
		"database": {"dsn": "d"}, "redis": {"addr": "a"},
		"rag": {"score_threshold": 1.5}
	}`))
	require.ErrorContains(t, err, "score_threshold")
}

func TestLoadRejectsBadOverlap(t *testing.T) {
	_, err := Load(writeConfig(t, `{
		"port": 1, "jwt_secret": "s",
		"database": {"dsn": "d"}, "redis": {"addr": "a"},
		"rag": {"chunk_size": 100, "chunk_overlap": 100}
	}`))
	require.ErrorContains(t, err, "chunk_overlap")
}

func TestLoadBadFileStoreType(t *testing.T) {
	_, err := Load(writeConfig(t, `{
		"port": 1, "jwt_secret": "s",
		"database": {"dsn": "d"}, "redis": {"addr": "a"},
		"file_store": {"type": "ftp"}
	}`))
	require.ErrorContains(t, err, "file_store.type")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}
