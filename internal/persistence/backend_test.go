package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string   `json:"name"`
	Lines []string `json:"lines"`
}

func backends(t *testing.T) map[string]Backend {
	t.Helper()

	files, err := Open(BackendJSON, t.TempDir())
	require.NoError(t, err)
	db, err := Open(BackendSQLite, t.TempDir())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = files.Close()
		_ = db.Close()
	})
	return map[string]Backend{"json": files, "sqlite": db}
}

func TestBackend_SaveLoadReplace(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var got sample
			ok, err := b.Load(ctx, DocTranslations, &got)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, b.Save(ctx, DocTranslations, sample{Name: "first"}))
			require.NoError(t, b.Save(ctx, DocTranslations, sample{Name: "second", Lines: []string{"a"}}))
			require.NoError(t, b.Save(ctx, DocErrors, map[string]int{"1. a": 3}))

			ok, err = b.Load(ctx, DocTranslations, &got)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, sample{Name: "second", Lines: []string{"a"}}, got)

			var counts map[string]int
			ok, err = b.Load(ctx, DocErrors, &counts)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, map[string]int{"1. a": 3}, counts)
		})
	}
}

func TestJSONFiles_UsesWellKnownNames(t *testing.T) {
	dir := t.TempDir()
	b, err := NewJSONFiles(dir)
	require.NoError(t, err)

	ctx := context.Background()
	for _, doc := range Docs {
		require.NoError(t, b.Save(ctx, doc, []string{}))
	}
	for _, name := range []string{"cache.json", "translations.json", "errors.json"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "errors.json"), []byte("{broken"), 0o644))
	var counts map[string]int
	_, err = b.Load(ctx, DocErrors, &counts)
	assert.Error(t, err)

	assert.Error(t, b.Save(ctx, Doc("other"), 1))
}

func TestSQLiteStore_ReopenKeepsDocuments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", SQLiteFile)
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, DocJobs, []string{"batch_1"}))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	var ids []string
	ok, err := store.Load(ctx, DocJobs, &ids)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"batch_1"}, ids)
}

func TestMigrationVersion(t *testing.T) {
	assert.Equal(t, 1, migrationVersion("001_documents.sql"))
	assert.Equal(t, 12, migrationVersion("12"))
	assert.Equal(t, 0, migrationVersion("init.sql"))
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open("redis", t.TempDir())
	assert.Error(t, err)
}

func TestAcquireLock_SecondHolderFails(t *testing.T) {
	dir := t.TempDir()

	first, err := AcquireLock(dir)
	require.NoError(t, err)

	_, err = AcquireLock(dir)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, first.Release())
	again, err := AcquireLock(dir)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}
