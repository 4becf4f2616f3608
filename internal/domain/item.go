package domain

import "time"

// Item is the authoritative ledger row for a one-of-a-kind catalogue piece.
type Item struct {
	ID     string
	DropID string // empty until assigned to a drop
	Title  string
	Brand  string
	// PriceCents is immutable after creation.
	PriceCents int64
	// Sold is monotonic: once true it never resets.
	Sold bool
	// ReservedUntil is nil when no hold was ever granted. A past instant
	// means the last hold lapsed; only a future instant is an active hold.
	ReservedUntil *time.Time
	// ReservedToken identifies the current (or most recent) hold.
	ReservedToken string
	CreatedAt     time.Time
}

// HasActiveHold reports whether the item is held at the given instant.
func (i Item) HasActiveHold(now time.Time) bool {
	return i.ReservedUntil != nil && i.ReservedUntil.After(now)
}
