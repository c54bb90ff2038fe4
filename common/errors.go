// Package common defines shared sentinel errors used across the attachment
// sync engine. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Queue lifecycle errors.
	ErrQueueClosed = errors.New("queue is closed")

	// Programmer errors surfaced by the syncing service and queue.
	ErrMissingLocalURI   = errors.New("upload queued without local uri")
	ErrFilenameRequired  = errors.New("watched item needs a filename or file extension")
	ErrDirectoryRequired = errors.New("attachment directory is required")
)
