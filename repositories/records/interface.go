package records

import (
	"context"
	"time"

	"github.com/dmitrijs2005/attachsync/dbx"
	"github.com/dmitrijs2005/attachsync/models"
)

// BeforeDeleteFunc is invoked with a doomed batch of archived records before
// their rows are deleted, so the caller can remove the corresponding files.
type BeforeDeleteFunc func(ctx context.Context, doomed []*models.Attachment) error

// Repository describes CRUD, query and maintenance operations for attachment
// records. Persistence failures propagate to the caller; the repository never
// retries on its own.
type Repository interface {
	// WithTx returns a repository bound to the given transactional handle.
	// Writes through the returned repository join the caller's transaction.
	WithTx(tx dbx.DBTX) Repository

	// Get returns the record with the given id, or common.ErrorNotFound.
	Get(ctx context.Context, id string) (*models.Attachment, error)

	// GetAll returns every record ordered by timestamp ascending.
	GetAll(ctx context.Context) ([]*models.Attachment, error)

	// GetActive returns records in one of the three queued states, ordered
	// by timestamp ascending (FIFO processing order).
	GetActive(ctx context.Context) ([]*models.Attachment, error)

	// ActiveIDs returns the ids of active records, ordered like GetActive.
	ActiveIDs(ctx context.Context) ([]string, error)

	// Upsert inserts or replaces a record by id, stamping a fresh timestamp
	// on it. The stamped record is returned.
	Upsert(ctx context.Context, a *models.Attachment) (*models.Attachment, error)

	// UpsertAll upserts a batch of records. When the repository is bound to
	// a *sql.DB the whole batch commits in one transaction.
	UpsertAll(ctx context.Context, batch []*models.Attachment) error

	// Delete removes the record with the given id.
	Delete(ctx context.Context, id string) error

	// Archive transitions the record with the given id to StateArchived.
	Archive(ctx context.Context, id string) error

	// DeleteArchivedBatch fetches up to limit archived records beyond the
	// keep most recently touched ones, invokes before with the doomed batch,
	// then deletes their rows. It reports whether fewer than limit records
	// were found, i.e. whether eviction is complete.
	DeleteArchivedBatch(ctx context.Context, limit, keep int, before BeforeDeleteFunc) (bool, error)

	// WatchActive polls the active id set at the given interval and emits a
	// snapshot whenever it changes. The channel is closed when ctx is done.
	// It is a change-notification trigger, not a data source.
	WatchActive(ctx context.Context, interval time.Duration) <-chan []string

	// Clear deletes all records.
	Clear(ctx context.Context) error
}
