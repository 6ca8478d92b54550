package mapstore

import (
	"context"
	"time"
)

// Store is keyed load/save of unified map documents
type Store interface {
	// Load returns the stored document. It fails with ErrNotFound when no
	// document exists and ErrCorrupt when the stored bytes were unusable.
	Load(ctx context.Context, mapName string) (Document, error)

	// Save replaces the whole document
	Save(ctx context.Context, mapName string, doc Document) error

	// Update performs a serialized read-modify-write. fn receives the current
	// document, or a DefaultDocument when the current one cannot be read.
	Update(ctx context.Context, mapName string, fn func(doc Document) error) error

	// Delete removes the document and reports whether one existed
	Delete(ctx context.Context, mapName string) (bool, error)

	// Stats returns store statistics
	Stats() Stats
}

// Stats contains statistics about store operations
type Stats struct {
	Loads         int64     `json:"loads"`
	Saves         int64     `json:"saves"`
	Deletes       int64     `json:"deletes"`
	ReadRetries   int64     `json:"read_retries"`
	WriteRetries  int64     `json:"write_retries"`
	ReadErrors    int64     `json:"read_errors"`
	WriteErrors   int64     `json:"write_errors"`
	Quarantined   int64     `json:"quarantined"`
	BytesWritten  int64     `json:"bytes_written"`
	LastWriteTime time.Time `json:"last_write_time"`
}
