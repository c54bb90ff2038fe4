package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/attachsync/common"
	"github.com/dmitrijs2005/attachsync/dbx"
	"github.com/dmitrijs2005/attachsync/models"
)

const attachmentColumns = `id, timestamp, state, filename, local_uri, media_type, size, has_synced, meta_data`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or
// *sql.Tx). When constructed over a *sql.DB, batch upserts run inside their
// own transaction.
type SQLiteRepository struct {
	db    dbx.DBTX
	sqlDB *sql.DB // nil when bound to a transaction
	now   func() time.Time
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, sqlDB: db, now: time.Now}
}

// WithTx returns a repository whose writes go through tx.
func (r *SQLiteRepository) WithTx(tx dbx.DBTX) Repository {
	return &SQLiteRepository{db: tx, now: r.now}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttachment(row rowScanner) (*models.Attachment, error) {
	var a models.Attachment
	var localURI, mediaType, metaData sql.NullString
	var size sql.NullInt64
	var hasSynced sql.NullBool

	err := row.Scan(&a.ID, &a.Timestamp, &a.State, &a.Filename,
		&localURI, &mediaType, &size, &hasSynced, &metaData)
	if err != nil {
		return nil, err
	}

	a.LocalURI = localURI.String
	a.MediaType = mediaType.String
	a.Size = size.Int64
	a.MetaData = metaData.String
	if hasSynced.Valid {
		v := hasSynced.Bool
		a.HasSynced = &v
	}
	return &a, nil
}

func (r *SQLiteRepository) selectAttachments(ctx context.Context, query string, args ...any) ([]*models.Attachment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select attachments: %w", err)
	}
	defer rows.Close()

	var result []*models.Attachment
	for rows.Next() {
		item, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Get returns the record with the given id, or common.ErrorNotFound.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Attachment, error) {
	query := `select ` + attachmentColumns + ` from attachments where id=?`
	a, err := scanAttachment(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	return a, nil
}

// GetAll lists every record, oldest first.
func (r *SQLiteRepository) GetAll(ctx context.Context) ([]*models.Attachment, error) {
	query := `select ` + attachmentColumns + ` from attachments order by timestamp asc`
	return r.selectAttachments(ctx, query)
}

// GetActive lists records awaiting a queued operation, oldest first.
func (r *SQLiteRepository) GetActive(ctx context.Context) ([]*models.Attachment, error) {
	query := `select ` + attachmentColumns + ` from attachments
			where state in (?, ?, ?) order by timestamp asc`
	return r.selectAttachments(ctx, query,
		models.StateQueuedDownload, models.StateQueuedUpload, models.StateQueuedDelete)
}

// ActiveIDs is GetActive collapsed to ids only, so change watchers do not
// rebuild model objects on every poll.
func (r *SQLiteRepository) ActiveIDs(ctx context.Context) ([]string, error) {
	query := `select id from attachments where state in (?, ?, ?) order by timestamp asc`
	rows, err := r.db.QueryContext(ctx, query,
		models.StateQueuedDownload, models.StateQueuedUpload, models.StateQueuedDelete)
	if err != nil {
		return nil, fmt.Errorf("failed to select active ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// Upsert inserts or replaces a record by id and stamps a fresh timestamp.
func (r *SQLiteRepository) Upsert(ctx context.Context, a *models.Attachment) (*models.Attachment, error) {
	a.Timestamp = r.now().UnixMilli()

	query := ` INSERT INTO attachments (id, timestamp, state, filename, local_uri, media_type, size, has_synced, meta_data)
			values (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET timestamp = excluded.timestamp,
				state = excluded.state,
				filename = excluded.filename,
				local_uri = excluded.local_uri,
				media_type = excluded.media_type,
				size = excluded.size,
				has_synced = excluded.has_synced,
				meta_data = excluded.meta_data
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Timestamp, a.State, a.Filename,
		nullString(a.LocalURI), nullString(a.MediaType), a.Size,
		nullBool(a.HasSynced), nullString(a.MetaData))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert attachment: %w", err)
	}
	return a, nil
}

// UpsertAll upserts a batch of records. When bound to a *sql.DB the batch
// commits atomically; when bound to a transaction it joins it.
func (r *SQLiteRepository) UpsertAll(ctx context.Context, batch []*models.Attachment) error {
	if len(batch) == 0 {
		return nil
	}
	if r.sqlDB == nil {
		return r.upsertAll(ctx, r, batch)
	}
	return dbx.WithTx(ctx, r.sqlDB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return r.upsertAll(ctx, r.WithTx(tx), batch)
	})
}

func (r *SQLiteRepository) upsertAll(ctx context.Context, repo Repository, batch []*models.Attachment) error {
	for _, a := range batch {
		if _, err := repo.Upsert(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a record by id.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `delete from attachments where id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	return nil
}

// Archive transitions a record to StateArchived. It expects exactly one row
// to be affected.
func (r *SQLiteRepository) Archive(ctx context.Context, id string) error {
	query := `update attachments set state=?, timestamp=? where id=?`
	res, err := r.db.ExecContext(ctx, query, models.StateArchived, r.now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to archive attachment: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return common.ErrorNotFound
	}
	return nil
}

// DeleteArchivedBatch deletes up to limit archived records beyond the keep
// most recently touched ones, calling before with the doomed batch first.
// It reports whether eviction is complete.
func (r *SQLiteRepository) DeleteArchivedBatch(ctx context.Context, limit, keep int, before BeforeDeleteFunc) (bool, error) {
	query := `select ` + attachmentColumns + ` from attachments
			where state=? order by timestamp desc limit ? offset ?`
	doomed, err := r.selectAttachments(ctx, query, models.StateArchived, limit, keep)
	if err != nil {
		return false, err
	}
	if len(doomed) == 0 {
		return true, nil
	}

	if before != nil {
		if err := before(ctx, doomed); err != nil {
			return false, fmt.Errorf("before-delete callback failed: %w", err)
		}
	}

	placeholders := make([]string, len(doomed))
	args := make([]any, len(doomed))
	for i, a := range doomed {
		placeholders[i] = "?"
		args[i] = a.ID
	}
	del := `delete from attachments where id in (` + strings.Join(placeholders, ", ") + `)`
	if _, err := r.db.ExecContext(ctx, del, args...); err != nil {
		return false, fmt.Errorf("failed to delete archived batch: %w", err)
	}

	return len(doomed) < limit, nil
}

// Clear deletes all records.
func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `delete from attachments`); err != nil {
		return fmt.Errorf("failed to clear attachments: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}
