package domain

import "errors"

var (
	ErrItemNotFound = errors.New("item not found")
	// ErrItemConflict is the expected outcome under contention: another
	// buyer's hold has not expired, or the item is already sold.
	ErrItemConflict  = errors.New("item already reserved or sold")
	ErrAlreadySold   = errors.New("item already sold")
	ErrHoldExpired   = errors.New("hold expired")
	ErrInvalidID     = errors.New("invalid id")
	ErrTitleRequired = errors.New("item title required")
	ErrInvalidPrice  = errors.New("invalid price")
)
