package domain

import "time"

// ItemStatus is the externally visible tri-state of an item.
type ItemStatus string

const (
	StatusAvailable ItemStatus = "available"
	StatusReserved  ItemStatus = "reserved"
	StatusSold      ItemStatus = "sold"
)

// StatusOf derives the public status from the ledger fields. It is a pure
// function of (sold, reservedUntil, now): sold wins, then an unexpired hold,
// then available.
func StatusOf(sold bool, reservedUntil *time.Time, now time.Time) ItemStatus {
	if sold {
		return StatusSold
	}
	if reservedUntil != nil && reservedUntil.After(now) {
		return StatusReserved
	}
	return StatusAvailable
}
