package ticket

import "time"

// Status is the lifecycle state recorded for a ticket channel.
type Status string

const (
	StatusOpen     Status = "open"
	StatusArchived Status = "archived"
	StatusDeleted  Status = "deleted"
)

// Record is the typed side-table row for a ticket: channel identity mapped to
// its number and owner so archival never has to parse owner identity out of
// free text. Keyed by channel ID; ticket numbers restart per process and are
// not unique across restarts.
type Record struct {
	ChannelID   string     `json:"channel_id"`
	Number      int        `json:"number"`
	OwnerID     string     `json:"owner_id"`
	OwnerName   string     `json:"owner_name,omitempty"`
	Topic       string     `json:"topic,omitempty"`
	ChannelName string     `json:"channel_name"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
}

// Filter constrains record list queries.
type Filter struct {
	Status  *Status
	OwnerID string
	Query   string // text search on topic and channel name
	Limit   int    // 0 = no limit
}

// Store is the persistence interface for the ticket side-table.
type Store interface {
	// Save creates or updates a record.
	Save(rec *Record) error
	// GetByChannel retrieves the record for a channel ID.
	GetByChannel(channelID string) (*Record, error)
	// List returns records matching the filter, newest first.
	List(filter Filter) ([]*Record, error)
	// Count returns the number of records matching the filter.
	Count(filter Filter) (int, error)
	// SetStatus transitions a record's status, stamping closed_at for
	// terminal states.
	SetStatus(channelID string, status Status) error
}
