package queue

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/attachsync/models"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
CREATE TABLE attachments (
  id TEXT PRIMARY KEY,
  timestamp INTEGER NOT NULL,
  state INTEGER NOT NULL,
  filename TEXT NOT NULL,
  local_uri TEXT,
  media_type TEXT,
  size INTEGER,
  has_synced INTEGER,
  meta_data TEXT
);
CREATE TABLE photos (
  id TEXT PRIMARY KEY,
  attachment_id TEXT
);
`)
	require.NoError(t, err)

	return db
}

// fakeRemote is an in-memory remote.StorageAdapter with call counters.
type fakeRemote struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleteErr error
	downloads int
	uploads   int
	deletes   int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{objects: map[string][]byte{}}
}

func (f *fakeRemote) Upload(ctx context.Context, data []byte, a *models.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	f.objects[a.Filename] = append([]byte(nil), data...)
	return nil
}

func (f *fakeRemote) Download(ctx context.Context, a *models.Attachment) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads++
	data, ok := f.objects[a.Filename]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (f *fakeRemote) Delete(ctx context.Context, a *models.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, a.Filename)
	return nil
}

func (f *fakeRemote) calls() (downloads, uploads, deletes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloads, f.uploads, f.deletes
}

func newTestQueue(t *testing.T, db *sql.DB, remote *fakeRemote, mutate func(*Config)) *Queue {
	t.Helper()

	cfg := Config{
		DB:        db,
		Remote:    remote,
		Directory: t.TempDir(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	q, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func snapshotRows(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query(`SELECT id || '|' || state || '|' || timestamp || '|' || COALESCE(local_uri,'') || '|' || COALESCE(has_synced,-1) FROM attachments ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	var result []string
	for rows.Next() {
		var s string
		require.NoError(t, rows.Scan(&s))
		result = append(result, s)
	}
	require.NoError(t, rows.Err())
	return result
}

func TestReconcile_NewItemQueuesDownload(t *testing.T) {
	db := setupDB(t)
	q := newTestQueue(t, db, newFakeRemote(), nil)
	ctx := context.Background()

	err := q.Reconcile(ctx, []models.WatchedAttachmentItem{{ID: "a", FileExtension: "jpg"}})
	require.NoError(t, err)

	all, err := q.repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "a.jpg", all[0].Filename)
	assert.Equal(t, models.StateQueuedDownload, all[0].State)
}

func TestReconcile_IsIdempotent(t *testing.T) {
	db := setupDB(t)
	q := newTestQueue(t, db, newFakeRemote(), nil)
	ctx := context.Background()

	desired := []models.WatchedAttachmentItem{
		{ID: "a", FileExtension: "jpg"},
		{ID: "b", Filename: "custom.png"},
	}
	require.NoError(t, q.Reconcile(ctx, desired))
	before := snapshotRows(t, db)

	// Re-running with the same desired set changes nothing, not even
	// timestamps.
	require.NoError(t, q.Reconcile(ctx, desired))
	assert.Equal(t, before, snapshotRows(t, db))
}

func TestReconcile_DownloadsDisabled(t *testing.T) {
	db := setupDB(t)
	q := newTestQueue(t, db, newFakeRemote(), func(cfg *Config) {
		cfg.DisableDownloads = true
	})
	ctx := context.Background()

	require.NoError(t, q.Reconcile(ctx, []models.WatchedAttachmentItem{{ID: "a", FileExtension: "jpg"}}))

	all, err := q.repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestReconcile_UnresolvableItemIsSkipped(t *testing.T) {
	db := setupDB(t)
	q := newTestQueue(t, db, newFakeRemote(), nil)
	ctx := context.Background()

	require.NoError(t, q.Reconcile(ctx, []models.WatchedAttachmentItem{
		{ID: "noname"},
		{ID: "ok", FileExtension: "pdf"},
	}))

	all, err := q.repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "ok", all[0].ID)
}

func TestReconcile_RemovedItemIsArchived(t *testing.T) {
	db := setupDB(t)
	q := newTestQueue(t, db, newFakeRemote(), nil)
	ctx := context.Background()

	require.NoError(t, q.Reconcile(ctx, []models.WatchedAttachmentItem{{ID: "a", FileExtension: "jpg"}}))
	require.NoError(t, q.Reconcile(ctx, nil))

	got, err := q.repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.StateArchived, got.State)
}

func TestReconcile_QueuedDeleteIsLeftAlone(t *testing.T) {
	db := setupDB(t)
	q := newTestQueue(t, db, newFakeRemote(), nil)
	ctx := context.Background()

	_, err := q.repo.Upsert(ctx, &models.Attachment{ID: "a", Filename: "a.jpg", State: models.StateQueuedDelete})
	require.NoError(t, err)

	require.NoError(t, q.Reconcile(ctx, nil))

	got, err := q.repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.StateQueuedDelete, got.State)
}

func TestReconcile_RestoresSyncedWithoutTransfer(t *testing.T) {
	db := setupDB(t)
	remote := newFakeRemote()
	q := newTestQueue(t, db, remote, nil)
	ctx := context.Background()

	synced := true
	_, err := q.repo.Upsert(ctx, &models.Attachment{
		ID: "a", Filename: "a.jpg", State: models.StateArchived,
		LocalURI: "/tmp/a.jpg", HasSynced: &synced,
	})
	require.NoError(t, err)

	require.NoError(t, q.Reconcile(ctx, []models.WatchedAttachmentItem{{ID: "a", FileExtension: "jpg"}}))

	got, err := q.repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.StateSynced, got.State)
	assert.Equal(t, "/tmp/a.jpg", got.LocalURI)

	// No storage adapter call happened, and the next tick has nothing to do.
	require.NoError(t, q.Service().SyncNow(ctx))
	downloads, uploads, deletes := remote.calls()
	assert.Zero(t, downloads)
	assert.Zero(t, uploads)
	assert.Zero(t, deletes)
}

func TestReconcile_RestoreInfersMissingSide(t *testing.T) {
	tests := []struct {
		name     string
		localURI string
		want     models.AttachmentState
	}{
		{name: "no local copy queues download", localURI: "", want: models.StateQueuedDownload},
		{name: "local copy queues upload", localURI: "/tmp/a.jpg", want: models.StateQueuedUpload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupDB(t)
			q := newTestQueue(t, db, newFakeRemote(), nil)
			ctx := context.Background()

			notSynced := false
			_, err := q.repo.Upsert(ctx, &models.Attachment{
				ID: "a", Filename: "a.jpg", State: models.StateArchived,
				LocalURI: tt.localURI, HasSynced: &notSynced,
			})
			require.NoError(t, err)

			require.NoError(t, q.Reconcile(ctx, []models.WatchedAttachmentItem{{ID: "a", FileExtension: "jpg"}}))

			got, err := q.repo.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.State)
		})
	}
}

func TestReconcile_ArchiveThenRestoreIsSameRow(t *testing.T) {
	db := setupDB(t)
	remote := newFakeRemote()
	remote.objects["a.jpg"] = []byte("x")
	q := newTestQueue(t, db, remote, nil)
	ctx := context.Background()

	desired := []models.WatchedAttachmentItem{{ID: "a", FileExtension: "jpg"}}
	require.NoError(t, q.Reconcile(ctx, desired))
	require.NoError(t, q.Service().SyncNow(ctx))

	// Item disappears, record is soft-removed.
	require.NoError(t, q.Reconcile(ctx, nil))
	got, err := q.repo.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, models.StateArchived, got.State)

	// Item reappears before eviction: restored, not recreated.
	require.NoError(t, q.Reconcile(ctx, desired))
	got, err = q.repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.StateSynced, got.State)
	assert.True(t, got.Synced())

	downloads, _, _ := remote.calls()
	assert.Equal(t, 1, downloads, "restoration must not download again")
}
