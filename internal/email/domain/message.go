package domain

import "time"

// InboundMessage is the header-level view of a mailbox message the virtual
// address detector inspects. Only addressing headers and the snippet are
// fetched; full bodies stay with the provider.
type InboundMessage struct {
	ID         string
	To         []string
	Cc         []string
	From       string
	Subject    string
	Snippet    string
	ReceivedAt time.Time
}

// HistoryDelta is the result of one history-cursor fetch.
type HistoryDelta struct {
	AddedMessageIDs []string
	NextCursor      string
}
