package domain

import "time"

// FileMetadata is the poller's view of a watched file's remote state.
type FileMetadata struct {
	ID           string
	Name         string
	MimeType     string
	ModifiedTime time.Time
	Trashed      bool
	Size         int64
}
