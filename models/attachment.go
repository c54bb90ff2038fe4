// Package models defines the data types tracked by the attachment
// synchronization engine.
package models

// AttachmentState describes where an attachment record sits in its
// lifecycle. The three queued states denote pending work for the syncing
// service; Synced and Archived are the only states it does not act on.
type AttachmentState int

const (
	// StateQueuedDownload marks a record whose bytes must be fetched from
	// remote storage.
	StateQueuedDownload AttachmentState = iota

	// StateQueuedUpload marks a locally created record whose bytes must be
	// pushed to remote storage.
	StateQueuedUpload

	// StateQueuedDelete marks a record whose bytes must be removed from
	// remote storage and from disk.
	StateQueuedDelete

	// StateSynced marks a record whose local and remote copies agree.
	StateSynced

	// StateArchived is a reversible soft-delete. Archived records keep
	// their metadata so a reappearing attachment can be restored cheaply;
	// they are eventually removed by eviction.
	StateArchived
)

// String returns a short human-readable name for logging.
func (s AttachmentState) String() string {
	switch s {
	case StateQueuedDownload:
		return "queued_download"
	case StateQueuedUpload:
		return "queued_upload"
	case StateQueuedDelete:
		return "queued_delete"
	case StateSynced:
		return "synced"
	case StateArchived:
		return "archived"
	default:
		return "unknown"
	}
}

// Active reports whether the state denotes pending work.
func (s AttachmentState) Active() bool {
	switch s {
	case StateQueuedDownload, StateQueuedUpload, StateQueuedDelete:
		return true
	default:
		return false
	}
}

// Attachment is the persisted unit of state: one binary file tracked by id,
// with local and/or remote existence.
type Attachment struct {
	// ID is a globally unique identifier and the sync correlation key. It
	// also seeds the default on-disk filename when none is supplied.
	ID string

	// Filename is the name the file is stored under, locally and remotely.
	Filename string

	// State is the record's position in the transition graph.
	State AttachmentState

	// Timestamp is the last-touched time in milliseconds since epoch.
	// It is stamped by the record store on every upsert.
	Timestamp int64

	// LocalURI is the path of the local copy, empty until a local file
	// exists. Once set it is cleared only on a transition back to
	// StateQueuedDownload or to StateArchived.
	LocalURI string

	// MediaType is the MIME type, when known.
	MediaType string

	// Size is the payload size in bytes, when known.
	Size int64

	// HasSynced records whether this attachment has completed at least one
	// successful remote operation. Nil means unknown. It lets a restored
	// archived record skip a redundant transfer.
	HasSynced *bool

	// MetaData carries opaque integrator-supplied data.
	MetaData string
}

// Synced reports whether HasSynced is set and true.
func (a *Attachment) Synced() bool {
	return a.HasSynced != nil && *a.HasSynced
}

// WatchedAttachmentItem is one element of the desired set: "this identifier
// should have a synced attachment". Exactly one of Filename or FileExtension
// must be resolvable; Filename wins when both are set.
type WatchedAttachmentItem struct {
	ID            string
	FileExtension string
	Filename      string
}
