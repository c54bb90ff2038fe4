// Package services contains the syncing service that drains queued
// attachment operations, and the error policies governing its failures.
package services

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/attachsync/models"
)

// ErrorPolicy decides, per operation kind, whether a failed queued operation
// should be retried on the next tick (true) or given up and archived (false).
type ErrorPolicy interface {
	OnDownloadError(ctx context.Context, attachment *models.Attachment, err error) bool
	OnUploadError(ctx context.Context, attachment *models.Attachment, err error) bool
	OnDeleteError(ctx context.Context, attachment *models.Attachment, err error) bool
}

// NeverRetryPolicy is the default policy: any failure archives the record.
type NeverRetryPolicy struct{}

func (NeverRetryPolicy) OnDownloadError(ctx context.Context, attachment *models.Attachment, err error) bool {
	return false
}

func (NeverRetryPolicy) OnUploadError(ctx context.Context, attachment *models.Attachment, err error) bool {
	return false
}

func (NeverRetryPolicy) OnDeleteError(ctx context.Context, attachment *models.Attachment, err error) bool {
	return false
}

// MaxRetriesPolicy retries each failing attachment up to a fixed number of
// consecutive failed attempts, then archives it. Attempt counts are kept in
// memory per attachment id; the syncing service calls Forget once an
// operation for the attachment succeeds, so counts never carry over from an
// earlier, already recovered failure.
type MaxRetriesPolicy struct {
	max int

	mu       sync.Mutex
	attempts map[string]int
}

// NewMaxRetriesPolicy returns a policy allowing up to max retries per
// attachment before giving up.
func NewMaxRetriesPolicy(max int) *MaxRetriesPolicy {
	return &MaxRetriesPolicy{max: max, attempts: make(map[string]int)}
}

func (p *MaxRetriesPolicy) retry(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts[id]++
	if p.attempts[id] > p.max {
		delete(p.attempts, id)
		return false
	}
	return true
}

// Forget drops the attempt count for an attachment id.
func (p *MaxRetriesPolicy) Forget(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.attempts, id)
}

func (p *MaxRetriesPolicy) OnDownloadError(ctx context.Context, attachment *models.Attachment, err error) bool {
	return p.retry(attachment.ID)
}

func (p *MaxRetriesPolicy) OnUploadError(ctx context.Context, attachment *models.Attachment, err error) bool {
	return p.retry(attachment.ID)
}

func (p *MaxRetriesPolicy) OnDeleteError(ctx context.Context, attachment *models.Attachment, err error) bool {
	return p.retry(attachment.ID)
}
