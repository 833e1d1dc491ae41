package domain

import "time"

// RemoteEvent is the provider-independent view of a calendar event as the
// sync engine consumes it.
type RemoteEvent struct {
	ID             string
	Title          string
	Description    string
	Location       string
	StartTime      time.Time
	EndTime        time.Time
	HangoutLink    string // structured conferencing field
	ConferenceURI  string // conferenceData entry point, when present
	Cancelled      bool
	ResponseStatus string // the calendar owner's own attendance response
}

// ChangeSet is one page-complete fetch result: every changed (or in-range)
// event plus the cursor to resume from.
type ChangeSet struct {
	Events     []*RemoteEvent
	NextCursor string
}
