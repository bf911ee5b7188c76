package publisher

import (
	"time"
)

// DeliveryOutcome is the transient per-channel result of one publish
// attempt. A recurring post's next cycle supersedes these, it does not
// accumulate them.
type DeliveryOutcome struct {
	ChannelID   int64
	ChannelName string
	Success     bool
	MessageID   int // present iff Success; needed for retraction
	Error       string
}

// PublishReport aggregates one fan-out cycle
type PublishReport struct {
	PostID    string
	At        time.Time
	Succeeded int
	Failed    int
	Outcomes  []DeliveryOutcome // persisted list order
}

// RetractReport aggregates one retraction cycle
type RetractReport struct {
	PostID  string
	At      time.Time
	Deleted int
	Failed  int
	Skipped int // entries that never published; nothing to delete
	Outcomes []DeliveryOutcome
}
