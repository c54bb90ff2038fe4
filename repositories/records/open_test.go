package records

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/attachsync/models"
)

func TestOpen_BootstrapsSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "attachments.db")

	db, err := Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	r := NewSQLiteRepository(db)
	_, err = r.Upsert(ctx, &models.Attachment{ID: "a", Filename: "a.jpg", State: models.StateQueuedDownload})
	require.NoError(t, err)

	got, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", got.Filename)
}

func TestOpen_IsReentrant(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "attachments.db")

	db, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopening must not attempt to reapply migrations.
	db, err = Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.Error(t, err)
}
