package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rel, err := store.Save("slips/../slips/a.pdf", []byte("pdf"))
	require.NoError(t, err)
	assert.Equal(t, "slips/a.pdf", rel)

	data, err := store.Read(rel)
	require.NoError(t, err)
	assert.Equal(t, "pdf", string(data))

	require.NoError(t, store.Delete(rel))
	require.NoError(t, store.Delete(rel))
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("../escape.txt", []byte("x"))
	assert.ErrorIs(t, err, ErrOutsideRoot)
	_, err = store.Read("/etc/passwd")
	assert.ErrorIs(t, err, ErrOutsideRoot)
}

func TestCleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = store.Save("reports/old.csv", []byte("old"))
	require.NoError(t, err)
	_, err = store.Save("reports/new.csv", []byte("new"))
	require.NoError(t, err)

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "reports", "old.csv"), past, past))

	deleted, err := store.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"reports/old.csv"}, deleted)
}
