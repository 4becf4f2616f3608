package domain

import "time"

// Hold is a time-boxed exclusive claim on an item, returned by a successful
// reserve. The token is required to finalize the sale before the window ends.
type Hold struct {
	ItemID    string
	Token     string
	ExpiresAt time.Time
}

type ReservationOutcome string

const (
	ReservationGranted   ReservationOutcome = "granted"
	ReservationFinalized ReservationOutcome = "finalized"
)

// Reservation is an append-only audit record of a granted hold. The item
// row's reserved_until stays the authoritative projection for fast reads;
// this table answers who held the item and when.
type Reservation struct {
	ID        string
	ItemID    string
	Token     string
	ExpiresAt time.Time
	Outcome   ReservationOutcome
	CreatedAt time.Time
}
