package notionrag

import "errors"

var (
	// ErrSyncInProgress is returned when a sync is requested while one
	// is already running. Syncs never interleave.
	ErrSyncInProgress = errors.New("notionrag: sync already in progress")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("notionrag: invalid configuration")
)
