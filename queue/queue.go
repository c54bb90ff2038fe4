// Package queue provides the attachment queue orchestrator: it owns the
// engine lifecycle, reconciles the externally supplied desired attachment
// set against persisted records, and exposes the SaveFile/DeleteFile entry
// points for locally authored content.
package queue

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/attachsync/common"
	"github.com/dmitrijs2005/attachsync/dbx"
	"github.com/dmitrijs2005/attachsync/logging"
	"github.com/dmitrijs2005/attachsync/models"
	"github.com/dmitrijs2005/attachsync/remote"
	"github.com/dmitrijs2005/attachsync/repositories/records"
	"github.com/dmitrijs2005/attachsync/services"
	"github.com/dmitrijs2005/attachsync/storage"
)

// UpdateHook runs inside the same transaction as an attachment-record write,
// so the caller can insert or update its own rows referencing the attachment
// id atomically with the record.
type UpdateHook func(ctx context.Context, tx dbx.DBTX, attachment *models.Attachment) error

// FilenameResolver derives an on-disk filename from an attachment id and an
// optional file extension.
type FilenameResolver func(id, fileExtension string) string

// Config wires an attachment queue together. DB, Remote and Directory are
// required; everything else has defaults.
type Config struct {
	// DB is the local SQLite database holding the attachments table.
	DB *sql.DB

	// Local stores attachment bytes on disk. Defaults to the filesystem
	// adapter.
	Local storage.LocalStorageAdapter

	// Remote stores attachment bytes on the remote backend.
	Remote remote.StorageAdapter

	// Policy decides retry-vs-archive on operation failures. Defaults to
	// never retrying.
	Policy services.ErrorPolicy

	Logger logging.Logger

	// Directory is the root directory attachment files live under.
	Directory string

	// Subdirectories are created under Directory on Start.
	Subdirectories []string

	// DisableDownloads skips creating download records during
	// reconciliation.
	DisableDownloads bool

	// FilenameResolver overrides the default "{id}.{extension}" naming.
	FilenameResolver FilenameResolver

	// WatchedItems is the desired-set stream: each emission is the full,
	// current set of items that should have synced attachments.
	WatchedItems <-chan []models.WatchedAttachmentItem

	// Connectivity reports connected/disconnected transitions; a
	// false→true edge forces a sync trigger.
	Connectivity <-chan bool

	// Sync tunes the syncing service.
	Sync services.SyncOptions
}

// Queue is the orchestrator owning lifecycle, reconciliation and the direct
// mutation entry points. At most one Queue instance should own a given
// attachment directory at a time.
type Queue struct {
	db      *sql.DB
	repo    records.Repository
	local   storage.LocalStorageAdapter
	service *services.SyncService
	log     logging.Logger

	directory        string
	subdirectories   []string
	disableDownloads bool
	resolveName      FilenameResolver

	watched      <-chan []models.WatchedAttachmentItem
	connectivity <-chan bool

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New validates cfg and builds a queue. The queue does nothing until Start
// is called.
func New(cfg Config) (*Queue, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("db is required")
	}
	if cfg.Remote == nil {
		return nil, fmt.Errorf("remote storage adapter is required")
	}
	if cfg.Directory == "" {
		return nil, common.ErrDirectoryRequired
	}
	if cfg.Local == nil {
		cfg.Local = storage.NewFileSystemAdapter()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewDefault()
	}
	if cfg.FilenameResolver == nil {
		cfg.FilenameResolver = DefaultFilenameResolver
	}

	q := &Queue{
		db:               cfg.DB,
		repo:             records.NewSQLiteRepository(cfg.DB),
		local:            cfg.Local,
		log:              cfg.Logger.With("component", "attachment_queue"),
		directory:        cfg.Directory,
		subdirectories:   cfg.Subdirectories,
		disableDownloads: cfg.DisableDownloads,
		resolveName:      cfg.FilenameResolver,
		watched:          cfg.WatchedItems,
		connectivity:     cfg.Connectivity,
	}

	q.service = services.NewSyncService(q.repo, q.local, cfg.Remote, cfg.Policy,
		func(a *models.Attachment) string { return q.localPath(a.Filename) },
		cfg.Logger, cfg.Sync)

	return q, nil
}

// DefaultFilenameResolver names files "{id}.{extension}", or just "{id}"
// when no extension is known.
func DefaultFilenameResolver(id, fileExtension string) string {
	if fileExtension == "" {
		return id
	}
	return id + "." + fileExtension
}

// Service exposes the underlying syncing service, mainly for explicit
// TriggerSync calls.
func (q *Queue) Service() *services.SyncService {
	return q.service
}

func (q *Queue) localPath(filename string) string {
	return filepath.Join(q.directory, filename)
}

// Start ensures the attachment directory exists, begins periodic syncing and
// launches the desired-set and connectivity observation loops. Starting a
// closed queue fails; starting a running queue is a no-op.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return common.ErrQueueClosed
	}
	if q.started {
		q.mu.Unlock()
		return nil
	}

	if err := q.local.MakeDir(ctx, q.directory); err != nil {
		q.mu.Unlock()
		return err
	}
	for _, sub := range q.subdirectories {
		if err := q.local.MakeDir(ctx, filepath.Join(q.directory, sub)); err != nil {
			q.mu.Unlock()
			return err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.started = true
	q.mu.Unlock()

	q.service.Start(runCtx)

	if q.connectivity != nil {
		q.wg.Add(1)
		go q.watchConnectivity(runCtx)
	}
	if q.watched != nil {
		q.wg.Add(1)
		go q.watchItems(runCtx)
	}

	return nil
}

func (q *Queue) watchConnectivity(ctx context.Context) {
	defer q.wg.Done()

	connected := false
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-q.connectivity:
			if !ok {
				return
			}
			if c && !connected {
				q.log.Debug(ctx, "connectivity regained, forcing sync")
				q.service.TriggerSync()
			}
			connected = c
		}
	}
}

func (q *Queue) watchItems(ctx context.Context) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case items, ok := <-q.watched:
			if !ok {
				return
			}
			if err := q.Reconcile(ctx, items); err != nil {
				// The observation loop survives a failed pass; the next
				// emission retries from current state.
				q.log.Error(ctx, "reconciliation failed", "error", err)
			}
		}
	}
}

// SaveFile stores locally authored content: bytes hit the disk first, then
// one transaction creates the record in StateQueuedUpload (with LocalURI
// already set) and runs the update hook. If anything in the transaction
// fails, neither the record nor the hook's writes commit and the file is
// removed again.
func (q *Queue) SaveFile(ctx context.Context, data []byte, mediaType, fileExtension string, hook UpdateHook) (*models.Attachment, error) {
	if err := q.guard(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	filename := q.resolveName(id, fileExtension)
	path := q.localPath(filename)

	size, err := q.local.Save(ctx, path, data)
	if err != nil {
		return nil, fmt.Errorf("failed to save attachment file: %w", err)
	}

	att := &models.Attachment{
		ID:        id,
		Filename:  filename,
		State:     models.StateQueuedUpload,
		LocalURI:  path,
		MediaType: mediaType,
		Size:      size,
	}

	err = dbx.WithTx(ctx, q.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := q.repo.WithTx(tx).Upsert(ctx, att); err != nil {
			return err
		}
		if hook != nil {
			return hook(ctx, tx, att)
		}
		return nil
	})
	if err != nil {
		_ = q.local.Delete(ctx, path)
		return nil, fmt.Errorf("failed to queue upload: %w", err)
	}

	q.service.TriggerSync()
	return att, nil
}

// DeleteFile queues deletion of an existing attachment. Bytes are not
// removed immediately; the syncing service deletes the remote and local
// copies asynchronously. The update hook runs in the same transaction as the
// state transition.
func (q *Queue) DeleteFile(ctx context.Context, id string, hook UpdateHook) error {
	if err := q.guard(); err != nil {
		return err
	}

	att, err := q.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load attachment %s: %w", id, err)
	}
	att.State = models.StateQueuedDelete

	err = dbx.WithTx(ctx, q.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := q.repo.WithTx(tx).Upsert(ctx, att); err != nil {
			return err
		}
		if hook != nil {
			return hook(ctx, tx, att)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to queue delete: %w", err)
	}

	q.service.TriggerSync()
	return nil
}

// ExpireCache runs eviction until the archived set is back under the
// configured retention limit.
func (q *Queue) ExpireCache(ctx context.Context) error {
	if err := q.guard(); err != nil {
		return err
	}

	for {
		done, err := q.service.DeleteArchivedAttachments(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// ClearQueue deletes all records and removes the entire attachment
// directory. Destructive; intended for resets.
func (q *Queue) ClearQueue(ctx context.Context) error {
	if err := q.guard(); err != nil {
		return err
	}

	if err := q.repo.Clear(ctx); err != nil {
		return err
	}
	return q.local.RemoveDir(ctx, q.directory)
}

// Close cancels the observation loops and the syncing service, then marks
// the queue closed. Idempotent; any subsequent Start or mutation fails.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	started := q.started
	cancel := q.cancel
	q.mu.Unlock()

	if started {
		cancel()
		q.wg.Wait()
		q.service.Close()
	}
	return nil
}

func (q *Queue) guard() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return common.ErrQueueClosed
	}
	return nil
}
