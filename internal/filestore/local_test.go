package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := New("local", map[string]interface{}{"dir": dir})
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "upload.txt")
	require.NoError(t, os.WriteFile(src, []byte("document body"), 0o644))
	f, err := os.Open(src)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, store.Save(context.Background(), "guide.txt", f, 13))

	rc, err := store.Open(context.Background(), "guide.txt")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "document body", string(data))

	require.NoError(t, store.Delete(context.Background(), "guide.txt"))
	_, err = store.Open(context.Background(), "guide.txt")
	require.Error(t, err)

	// deleting a missing key is a no-op
	require.NoError(t, store.Delete(context.Background(), "guide.txt"))
}

func TestLocalStoreRejectsPathTraversal(t *testing.T) {
	store, err := New("local", map[string]interface{}{"dir": t.TempDir()})
	require.NoError(t, err)

	_, err = store.Open(context.Background(), "../secret")
	require.Error(t, err)
	require.Error(t, store.Delete(context.Background(), "a/b"))
}

func TestNewUnknownType(t *testing.T) {
	_, err := New("ftp", nil)
	require.ErrorContains(t, err, "unsupported file store type")
}

func TestNewMissingType(t *testing.T) {
	_, err := New("", nil)
	require.Error(t, err)
}
