// Package remote defines the remote byte-storage abstraction the syncing
// service executes queued operations against. Implementations are supplied
// by the integrator; an S3-backed one ships in remote/s3.
package remote

import (
	"context"

	"github.com/dmitrijs2005/attachsync/models"
)

// StorageAdapter uploads, downloads and deletes attachment bytes against a
// remote backend. No retry or backoff is built in; retry decisions belong to
// the error policy layered above.
type StorageAdapter interface {
	// Upload pushes data for the given attachment.
	Upload(ctx context.Context, data []byte, attachment *models.Attachment) error

	// Download fetches the bytes for the given attachment.
	Download(ctx context.Context, attachment *models.Attachment) ([]byte, error)

	// Delete removes the remote copy of the given attachment.
	Delete(ctx context.Context, attachment *models.Attachment) error
}
