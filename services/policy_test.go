package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrijs2005/attachsync/models"
)

func TestNeverRetryPolicy(t *testing.T) {
	p := NeverRetryPolicy{}
	ctx := context.Background()
	a := &models.Attachment{ID: "a"}

	assert.False(t, p.OnDownloadError(ctx, a, assert.AnError))
	assert.False(t, p.OnUploadError(ctx, a, assert.AnError))
	assert.False(t, p.OnDeleteError(ctx, a, assert.AnError))
}

func TestMaxRetriesPolicy(t *testing.T) {
	p := NewMaxRetriesPolicy(2)
	ctx := context.Background()
	a := &models.Attachment{ID: "a"}
	b := &models.Attachment{ID: "b"}

	assert.True(t, p.OnDownloadError(ctx, a, assert.AnError))
	assert.True(t, p.OnDownloadError(ctx, a, assert.AnError))
	assert.False(t, p.OnDownloadError(ctx, a, assert.AnError))

	// Counts are per attachment.
	assert.True(t, p.OnUploadError(ctx, b, assert.AnError))

	// Giving up resets the count, so a restored record gets fresh retries.
	assert.True(t, p.OnDownloadError(ctx, a, assert.AnError))
}

func TestMaxRetriesPolicy_Forget(t *testing.T) {
	p := NewMaxRetriesPolicy(1)
	ctx := context.Background()
	a := &models.Attachment{ID: "a"}

	assert.True(t, p.OnDeleteError(ctx, a, assert.AnError))
	p.Forget("a")
	assert.True(t, p.OnDeleteError(ctx, a, assert.AnError))
}
