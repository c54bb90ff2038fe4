package records

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/attachsync/models"
)

func waitForIDs(t *testing.T, ch <-chan []string) []string {
	t.Helper()
	select {
	case ids := <-ch:
		return ids
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch emission")
		return nil
	}
}

func TestWatchActive_EmitsOnChange(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := r.WatchActive(ctx, 10*time.Millisecond)

	// Initial snapshot: empty set.
	assert.Empty(t, waitForIDs(t, ch))

	_, err := r.Upsert(ctx, &models.Attachment{ID: "a", Filename: "a", State: models.StateQueuedDownload})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, waitForIDs(t, ch))

	// Transition out of the active set triggers another emission.
	require.NoError(t, r.Archive(ctx, "a"))
	assert.Empty(t, waitForIDs(t, ch))

	cancel()
	for range ch {
	} // drained and closed
}
