package queue

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/attachsync/common"
	"github.com/dmitrijs2005/attachsync/dbx"
	"github.com/dmitrijs2005/attachsync/models"
)

// Reconcile diffs the desired set against current records and applies the
// resulting transitions as one batched, transactional upsert:
//
//   - a desired item with no record becomes a new StateQueuedDownload record
//     (unless downloads are disabled);
//   - a desired item whose record is archived is restored — straight to
//     StateSynced when it has synced before, otherwise re-queued for the
//     side that is missing the data;
//   - a record no longer desired is archived (soft-remove; bytes stay on
//     disk until eviction so restoration is cheap).
//
// The outcome depends only on the current desired set and record set, never
// on notification order, so duplicate or stale emissions are harmless and
// re-running with the same inputs is a no-op.
func (q *Queue) Reconcile(ctx context.Context, items []models.WatchedAttachmentItem) error {
	current, err := q.repo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load attachment records: %w", err)
	}

	byID := make(map[string]*models.Attachment, len(current))
	for _, a := range current {
		byID[a.ID] = a
	}

	var updates []*models.Attachment

	desired := make(map[string]struct{}, len(items))
	for _, item := range items {
		desired[item.ID] = struct{}{}

		existing := byID[item.ID]
		if existing == nil {
			if q.disableDownloads {
				continue
			}
			filename, err := q.filenameFor(item)
			if err != nil {
				q.log.Warn(ctx, "skipping watched item", "id", item.ID, "error", err)
				continue
			}
			updates = append(updates, &models.Attachment{
				ID:       item.ID,
				Filename: filename,
				State:    models.StateQueuedDownload,
			})
			continue
		}

		if existing.State == models.StateArchived {
			updates = append(updates, q.restore(existing))
		}
	}

	for _, a := range current {
		if _, ok := desired[a.ID]; ok {
			continue
		}
		switch a.State {
		case models.StateQueuedDelete, models.StateArchived:
			// Already on its way out, or already soft-removed.
		default:
			arch := *a
			arch.State = models.StateArchived
			updates = append(updates, &arch)
		}
	}

	if len(updates) == 0 {
		return nil
	}

	err = dbx.WithTx(ctx, q.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return q.repo.WithTx(tx).UpsertAll(ctx, updates)
	})
	if err != nil {
		return fmt.Errorf("failed to apply reconciliation: %w", err)
	}

	q.service.TriggerSync()
	return nil
}

// restore brings an archived record back. A record that has synced before
// needs no transfer at all; otherwise the side missing the data is inferred
// from whether a local copy exists.
func (q *Queue) restore(existing *models.Attachment) *models.Attachment {
	upd := *existing
	switch {
	case existing.Synced():
		upd.State = models.StateSynced
	case existing.LocalURI == "":
		upd.State = models.StateQueuedDownload
	default:
		upd.State = models.StateQueuedUpload
	}
	return &upd
}

func (q *Queue) filenameFor(item models.WatchedAttachmentItem) (string, error) {
	if item.Filename != "" {
		return item.Filename, nil
	}
	if item.FileExtension == "" {
		return "", common.ErrFilenameRequired
	}
	return q.resolveName(item.ID, item.FileExtension), nil
}
