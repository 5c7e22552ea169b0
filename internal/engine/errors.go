package engine

import (
	"errors"
	"fmt"
)

// Error kinds returned by the engine.  Every one of them means the
// operation changed nothing.
var (
	ErrInvalidEvent     = errors.New("invalid_event")
	ErrInvalidRank      = errors.New("invalid_rank")
	ErrInvalidSeat      = errors.New("invalid_sheet")
	ErrSoldOut          = errors.New("sold_out")
	ErrNotReserved      = errors.New("not_reserved")
	ErrNotPermitted     = errors.New("not_permitted")
	ErrNotFound         = errors.New("not_found")
	ErrStoreUnavailable = errors.New("store_unavailable")
)

// storeError wraps a failure of the persistent store.  The transaction was
// rolled back, so the caller may retry the whole operation.
type storeError struct {
	op  string
	err error
}

func (e *storeError) Error() string { return fmt.Sprintf("%s: store unavailable: %v", e.op, e.err) }
func (e *storeError) Unwrap() error { return e.err }
func (e *storeError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

func unavailable(op string, err error) error { return &storeError{op: op, err: err} }

// ConsistencyError reports drift between the ledger and the availability
// counters.  It is a bug, not a user error, and is raised as a panic.
type ConsistencyError struct {
	Op      string
	EventID uint64
	Detail  string
	Err     error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s: consistency violation on event %d: %s: %v", e.Op, e.EventID, e.Detail, e.Err)
}

func (e *ConsistencyError) Unwrap() error { return e.Err }

// domain reports whether err is one of the user-facing kinds above.
func domain(err error) bool {
	for _, k := range []error{
		ErrInvalidEvent, ErrInvalidRank, ErrInvalidSeat, ErrSoldOut,
		ErrNotReserved, ErrNotPermitted, ErrNotFound,
	} {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

// Code returns the wire code of err, "unknown" for anything else.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidEvent):
		return ErrInvalidEvent.Error()
	case errors.Is(err, ErrInvalidRank):
		return ErrInvalidRank.Error()
	case errors.Is(err, ErrInvalidSeat):
		return ErrInvalidSeat.Error()
	case errors.Is(err, ErrSoldOut):
		return ErrSoldOut.Error()
	case errors.Is(err, ErrNotReserved):
		return ErrNotReserved.Error()
	case errors.Is(err, ErrNotPermitted):
		return ErrNotPermitted.Error()
	case errors.Is(err, ErrNotFound):
		return ErrNotFound.Error()
	case errors.Is(err, ErrStoreUnavailable):
		return ErrStoreUnavailable.Error()
	}
	return "unknown"
}
