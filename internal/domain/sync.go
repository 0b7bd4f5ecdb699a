package domain

import "time"

// Status is the lifecycle state of a destination record. Records are
// never hard-deleted, only transitioned, so a product can come back
// into stock.
type Status string

const (
	StatusPending    Status = "pending"
	StatusPublished  Status = "published"
	StatusOutOfStock Status = "out_of_stock"
	StatusArchived   Status = "archived"
	StatusExcluded   Status = "excluded"
)

func (s Status) String() string {
	return string(s)
}

// Hidden reports whether the status hides the record from the COA view.
func (s Status) Hidden() bool {
	return s == StatusOutOfStock || s == StatusArchived || s == StatusExcluded
}

// Action is the outcome of reconciling a single catalog item against
// the destination.
type Action string

const (
	ActionCreated            Action = "created"
	ActionUpdated            Action = "updated"
	ActionSetDraftArchived   Action = "set_draft_archived"
	ActionSetDraftOutOfStock Action = "set_draft_out_of_stock"
	ActionSkipped            Action = "skipped"
	ActionError              Action = "error"
)

// LogEntry is one line of the user-visible sync log feed.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// SyncStatus is the snapshot returned to the polling client.
type SyncStatus struct {
	Running    bool       `json:"is_running"`
	Log        []LogEntry `json:"log"`
	Total      int        `json:"total"`
	Processed  int        `json:"processed"`
	Percentage int        `json:"percentage"`
}
