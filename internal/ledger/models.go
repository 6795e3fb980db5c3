package ledger

import "time"

// Status represents the lifecycle of a ledger record.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusDone, StatusFailed}
}

// Decision is the outcome of a CheckAndReserve call.
type Decision int

const (
	// Admitted means the caller owns processing for this key.
	Admitted Decision = iota
	// AlreadyPending means another caller holds a live reservation.
	AlreadyPending
	// AlreadyProcessed means the key reached a terminal state and is not
	// re-admittable in this process lifetime.
	AlreadyProcessed
)

func (d Decision) String() string {
	switch d {
	case Admitted:
		return "admitted"
	case AlreadyPending:
		return "already_pending"
	case AlreadyProcessed:
		return "already_processed"
	default:
		return "unknown"
	}
}

// Record is one persisted dedup entry.
type Record struct {
	Key       string
	SourceID  string
	Locator   string
	MediaKind string
	Status    Status
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Summary aggregates record counts per status for CLI display.
type Summary struct {
	Total   int
	Pending int
	Done    int
	Failed  int
}
