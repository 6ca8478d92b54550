package mapstore

import "errors"

var (
	// ErrNotFound is returned when no document exists for a map
	ErrNotFound = errors.New("map document not found")
	// ErrCorrupt is returned when a stored document cannot be parsed; the file has been quarantined
	ErrCorrupt = errors.New("map document is corrupt")
	// ErrQuarantineFailed accompanies ErrCorrupt when the corrupt bytes could not
	// be moved or copied aside; the file is left in place
	ErrQuarantineFailed = errors.New("corrupt map document could not be backed up")
	// ErrInvalidMapName is returned for names that cannot be used as a storage key
	ErrInvalidMapName = errors.New("invalid map name")
	// ErrPersistFailed is returned when a write still fails after all retry attempts
	ErrPersistFailed = errors.New("failed to persist map document")
)
