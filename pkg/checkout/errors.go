package checkout

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict means another buyer's hold is active or the item sold.
	ErrConflict = errors.New("item already reserved or sold")
	ErrNotFound = errors.New("item not found")
	// ErrHoldExpired means the finalize guard rejected the request: the hold
	// lapsed, or a different buyer holds the item now.
	ErrHoldExpired = errors.New("hold expired")
	ErrAlreadySold = errors.New("item already sold")
)

// UnexpectedStatusError reports a response outside the wire contract.
type UnexpectedStatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.Code, e.Body)
}
