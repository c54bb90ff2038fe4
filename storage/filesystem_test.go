package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/attachsync/common"
)

func TestSaveAndRead(t *testing.T) {
	f := NewFileSystemAdapter()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sub", "a.jpg")

	n, err := f.Save(ctx, path, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	data, err := f.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	// Overwrite.
	_, err = f.Save(ctx, path, []byte{4})
	require.NoError(t, err)
	data, err = f.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []byte{4}, data)
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	f := NewFileSystemAdapter()
	dir := t.TempDir()

	_, err := f.Save(context.Background(), filepath.Join(dir, "a.bin"), []byte("x"))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.bin", entries[0].Name())
}

func TestRead_NotFound(t *testing.T) {
	f := NewFileSystemAdapter()
	_, err := f.Read(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDelete(t *testing.T) {
	f := NewFileSystemAdapter()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "a")

	_, err := f.Save(ctx, path, []byte("x"))
	require.NoError(t, err)

	require.NoError(t, f.Delete(ctx, path))
	assert.ErrorIs(t, f.Delete(ctx, path), common.ErrorNotFound)
}

func TestExists(t *testing.T) {
	f := NewFileSystemAdapter()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "a")

	ok, err := f.Exists(ctx, path)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.Save(ctx, path, []byte("x"))
	require.NoError(t, err)

	ok, err = f.Exists(ctx, path)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMakeAndRemoveDir(t *testing.T) {
	f := NewFileSystemAdapter()
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "a", "b")

	require.NoError(t, f.MakeDir(ctx, dir))
	ok, err := f.Exists(ctx, dir)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.Save(ctx, filepath.Join(dir, "file"), []byte("x"))
	require.NoError(t, err)

	require.NoError(t, f.RemoveDir(ctx, dir))
	ok, err = f.Exists(ctx, dir)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCopy(t *testing.T) {
	f := NewFileSystemAdapter()
	ctx := context.Background()
	dir := t.TempDir()
	from := filepath.Join(dir, "from")
	to := filepath.Join(dir, "to")

	_, err := f.Save(ctx, from, []byte("payload"))
	require.NoError(t, err)

	require.NoError(t, f.Copy(ctx, from, to))
	data, err := f.Read(ctx, to)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestSave_CancelledContext(t *testing.T) {
	f := NewFileSystemAdapter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Save(ctx, filepath.Join(t.TempDir(), "a"), []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
