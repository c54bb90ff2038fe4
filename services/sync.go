package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/attachsync/common"
	"github.com/dmitrijs2005/attachsync/logging"
	"github.com/dmitrijs2005/attachsync/models"
	"github.com/dmitrijs2005/attachsync/remote"
	"github.com/dmitrijs2005/attachsync/repositories/records"
	"github.com/dmitrijs2005/attachsync/storage"
)

const (
	// DefaultSyncPeriod is the periodic sync timer interval.
	DefaultSyncPeriod = 30 * time.Second
	// DefaultSyncThrottle is the trigger coalescing window.
	DefaultSyncThrottle = time.Second
	// DefaultWatchInterval is the active-set poll interval.
	DefaultWatchInterval = 500 * time.Millisecond
	// DefaultArchivedCacheLimit is how many archived records eviction keeps.
	DefaultArchivedCacheLimit = 100

	evictionBatchSize = 1000
)

// LocalPathResolver maps an attachment to the local path its bytes live at.
type LocalPathResolver func(attachment *models.Attachment) string

// SyncOptions tunes the syncing service. Zero values fall back to the
// package defaults.
type SyncOptions struct {
	Period             time.Duration
	Throttle           time.Duration
	WatchInterval      time.Duration
	ArchivedCacheLimit int
}

// SyncService drains pending attachment work: it watches for actionable
// records, executes queued upload/download/delete operations against the two
// storage adapters, applies the error policy on failures, and keeps the
// archived set bounded.
//
// All triggers (explicit, periodic, watch notifications) feed one
// single-slot channel, so bursts coalesce; a trigger arriving during an
// in-progress tick guarantees at least one more tick.
type SyncService struct {
	repo      records.Repository
	local     storage.LocalStorageAdapter
	remote    remote.StorageAdapter
	policy    ErrorPolicy
	localPath LocalPathResolver
	log       logging.Logger

	throttle      time.Duration
	watchInterval time.Duration
	archivedLimit int

	trigger chan struct{}

	mu           sync.Mutex
	period       time.Duration
	periodicStop context.CancelFunc
	runCtx       context.Context
	runCancel    context.CancelFunc
	done         chan struct{}
	started      bool
}

// NewSyncService builds a syncing service. policy may be nil (never retry)
// and log may be nil (slog default).
func NewSyncService(repo records.Repository, local storage.LocalStorageAdapter,
	rs remote.StorageAdapter, policy ErrorPolicy, localPath LocalPathResolver,
	log logging.Logger, opts SyncOptions) *SyncService {

	if policy == nil {
		policy = NeverRetryPolicy{}
	}
	if log == nil {
		log = logging.NewDefault()
	}
	if opts.Period <= 0 {
		opts.Period = DefaultSyncPeriod
	}
	if opts.Throttle <= 0 {
		opts.Throttle = DefaultSyncThrottle
	}
	if opts.WatchInterval <= 0 {
		opts.WatchInterval = DefaultWatchInterval
	}
	if opts.ArchivedCacheLimit <= 0 {
		opts.ArchivedCacheLimit = DefaultArchivedCacheLimit
	}

	return &SyncService{
		repo:          repo,
		local:         local,
		remote:        rs,
		policy:        policy,
		localPath:     localPath,
		log:           log.With("component", "sync_service"),
		period:        opts.Period,
		throttle:      opts.Throttle,
		watchInterval: opts.WatchInterval,
		archivedLimit: opts.ArchivedCacheLimit,
		trigger:       make(chan struct{}, 1),
	}
}

// Start launches the processing loop, the active-set watcher and the
// periodic timer. It is a no-op if the service is already running.
func (s *SyncService) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	runCtx := s.runCtx
	done := s.done
	period := s.period
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.run(runCtx)
	}()
	go s.feedFromWatch(runCtx)
	s.StartPeriodicSync(period)
}

// Close stops the timer and cancels the processing loop, waiting for an
// in-flight tick to finish. It is idempotent.
func (s *SyncService) Close() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.runCancel
	done := s.done
	if s.periodicStop != nil {
		s.periodicStop()
		s.periodicStop = nil
	}
	s.runCtx, s.runCancel = nil, nil
	s.mu.Unlock()

	cancel()
	<-done
}

// TriggerSync requests one more sync tick. Bursts coalesce: intermediate
// triggers within a throttle window are dropped, not queued.
func (s *SyncService) TriggerSync() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// StartPeriodicSync (re)installs the periodic timer, replacing any prior
// one, and immediately fires one trigger. Calling it before Start just
// records the period.
func (s *SyncService) StartPeriodicSync(period time.Duration) {
	s.mu.Lock()
	s.period = period
	if s.periodicStop != nil {
		s.periodicStop()
		s.periodicStop = nil
	}
	if s.runCtx == nil {
		s.mu.Unlock()
		return
	}
	pctx, cancel := context.WithCancel(s.runCtx)
	s.periodicStop = cancel
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-pctx.Done():
				return
			case <-ticker.C:
				s.TriggerSync()
			}
		}
	}()

	s.TriggerSync()
}

func (s *SyncService) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.trigger:
		}

		if err := s.SyncNow(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error(ctx, "sync tick failed", "error", err)
		}

		// Throttle window: triggers landing here stay pending in the
		// single-slot channel and start exactly one more tick.
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.throttle):
		}
	}
}

func (s *SyncService) feedFromWatch(ctx context.Context) {
	for range s.repo.WatchActive(ctx, s.watchInterval) {
		s.TriggerSync()
	}
}

// SyncNow runs one full tick synchronously: process every active record (one
// failing record does not block the others), save all resulting updates in
// one batch, then run eviction to completion.
func (s *SyncService) SyncNow(ctx context.Context) error {
	active, err := s.repo.GetActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch active attachments: %w", err)
	}

	updates := make([]*models.Attachment, 0, len(active))
	for _, a := range active {
		if err := ctx.Err(); err != nil {
			return err
		}
		if upd := s.process(ctx, a); upd != nil {
			updates = append(updates, upd)
		}
	}

	if err := s.repo.UpsertAll(ctx, updates); err != nil {
		return fmt.Errorf("failed to save sync results: %w", err)
	}

	for {
		done, err := s.DeleteArchivedAttachments(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// process executes one queued operation. It returns the updated record, or
// nil when the record should stay untouched (no-op state or retry).
func (s *SyncService) process(ctx context.Context, a *models.Attachment) *models.Attachment {
	switch a.State {
	case models.StateQueuedDownload:
		return s.download(ctx, a)
	case models.StateQueuedUpload:
		return s.upload(ctx, a)
	case models.StateQueuedDelete:
		return s.deleteAttachment(ctx, a)
	default:
		return nil
	}
}

func (s *SyncService) download(ctx context.Context, a *models.Attachment) *models.Attachment {
	data, err := s.remote.Download(ctx, a)
	if err != nil {
		return s.resolveFailure(ctx, a, "download", err, s.policy.OnDownloadError(ctx, a, err))
	}

	path := s.localPath(a)
	if _, err := s.local.Save(ctx, path, data); err != nil {
		return s.resolveFailure(ctx, a, "download", err, s.policy.OnDownloadError(ctx, a, err))
	}

	s.forgetAttempts(a.ID)
	upd := *a
	upd.State = models.StateSynced
	upd.HasSynced = boolPtr(true)
	upd.LocalURI = path
	upd.Size = int64(len(data))
	s.log.Debug(ctx, "attachment downloaded", "id", a.ID, "size", upd.Size)
	return &upd
}

func (s *SyncService) upload(ctx context.Context, a *models.Attachment) *models.Attachment {
	if a.LocalURI == "" {
		// Record created incorrectly. Hard failure, never retried.
		s.log.Error(ctx, "queued upload has no local uri, archiving",
			"id", a.ID, "error", common.ErrMissingLocalURI)
		upd := *a
		upd.State = models.StateArchived
		return &upd
	}

	data, err := s.local.Read(ctx, a.LocalURI)
	if err != nil {
		return s.resolveFailure(ctx, a, "upload", err, s.policy.OnUploadError(ctx, a, err))
	}

	if err := s.remote.Upload(ctx, data, a); err != nil {
		return s.resolveFailure(ctx, a, "upload", err, s.policy.OnUploadError(ctx, a, err))
	}

	s.forgetAttempts(a.ID)
	upd := *a
	upd.State = models.StateSynced
	upd.HasSynced = boolPtr(true)
	s.log.Debug(ctx, "attachment uploaded", "id", a.ID, "size", int64(len(data)))
	return &upd
}

func (s *SyncService) deleteAttachment(ctx context.Context, a *models.Attachment) *models.Attachment {
	if err := s.remote.Delete(ctx, a); err != nil {
		return s.resolveFailure(ctx, a, "delete", err, s.policy.OnDeleteError(ctx, a, err))
	}

	if a.LocalURI != "" {
		if err := s.local.Delete(ctx, a.LocalURI); err != nil && !errors.Is(err, common.ErrorNotFound) {
			return s.resolveFailure(ctx, a, "delete", err, s.policy.OnDeleteError(ctx, a, err))
		}
	}

	s.forgetAttempts(a.ID)
	upd := *a
	upd.State = models.StateArchived
	upd.LocalURI = ""
	s.log.Debug(ctx, "attachment deleted", "id", a.ID)
	return &upd
}

// forgetAttempts drops any attempt count the policy keeps for an attachment
// once an operation for it succeeds, so a later unrelated failure starts
// counting from zero.
func (s *SyncService) forgetAttempts(id string) {
	if p, ok := s.policy.(interface{ Forget(id string) }); ok {
		p.Forget(id)
	}
}

// resolveFailure applies the error policy verdict: retry leaves the record
// unchanged so the next tick picks it up again; otherwise the record is
// archived but kept for diagnostics and possible restoration.
func (s *SyncService) resolveFailure(ctx context.Context, a *models.Attachment, op string, err error, retry bool) *models.Attachment {
	if retry {
		s.log.Warn(ctx, "attachment operation failed, will retry",
			"op", op, "id", a.ID, "error", err)
		return nil
	}

	s.log.Error(ctx, "attachment operation failed, archiving",
		"op", op, "id", a.ID, "error", err)
	upd := *a
	upd.State = models.StateArchived
	return &upd
}

// DeleteArchivedAttachments runs one eviction batch, removing local files
// for evicted records first. It reports whether eviction is complete.
func (s *SyncService) DeleteArchivedAttachments(ctx context.Context) (bool, error) {
	return s.repo.DeleteArchivedBatch(ctx, evictionBatchSize, s.archivedLimit,
		func(ctx context.Context, doomed []*models.Attachment) error {
			for _, a := range doomed {
				if a.LocalURI == "" {
					continue
				}
				exists, err := s.local.Exists(ctx, a.LocalURI)
				if err != nil || !exists {
					continue
				}
				if err := s.local.Delete(ctx, a.LocalURI); err != nil {
					s.log.Warn(ctx, "failed to delete evicted file",
						"id", a.ID, "path", a.LocalURI, "error", err)
				}
			}
			return nil
		})
}

func boolPtr(b bool) *bool {
	return &b
}
