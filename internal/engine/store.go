package engine

import (
	"context"
	"time"

	"github.com/iliyamo/sheet-reservation/internal/model"
	"github.com/iliyamo/sheet-reservation/internal/seat"
)

// Reader is the read side of the persistent store.  Reads observe the
// latest committed state and take no event locks.
type Reader interface {
	// Event returns repository.ErrEventNotFound when the event is missing.
	Event(ctx context.Context, id uint64) (model.Event, error)
	// Events returns all events ordered by id.
	Events(ctx context.Context) ([]model.Event, error)
	// ReservedCounts returns the availability counters of an event keyed by
	// rank.  Ranks without a counter row are absent.
	ReservedCounts(ctx context.Context, eventID uint64) (map[seat.Rank]int, error)
	// ActiveReservations returns the active ledger rows of an event ordered
	// by sheet id.
	ActiveReservations(ctx context.Context, eventID uint64) ([]model.Reservation, error)
	// Seating returns the same two results read from one committed
	// snapshot, so the counters always agree with the rows.
	Seating(ctx context.Context, eventID uint64) (map[seat.Rank]int, []model.Reservation, error)
}

// Tx is one atomic unit against the store.  LockEvent must be called
// before any other method; it takes the exclusive per-event lock that
// serializes every Reserve and Cancel of that event.
type Tx interface {
	// LockEvent locks the event until commit or rollback and returns its
	// current flags.  It returns repository.ErrEventNotFound when missing.
	LockEvent(ctx context.Context, eventID uint64) (model.Event, error)
	// ActiveSheets returns the sheet ids in [first, last] that have an
	// active reservation for the event.
	ActiveSheets(ctx context.Context, eventID uint64, first, last int) ([]int, error)
	// InsertReservation appends a new active row and sets r.ID.
	InsertReservation(ctx context.Context, r *model.Reservation) error
	// ActiveReservation returns the active row of a seat, or nil when free.
	ActiveReservation(ctx context.Context, eventID uint64, sheetID int) (*model.Reservation, error)
	// CancelReservation sets canceled_at on an active row.
	CancelReservation(ctx context.Context, reservationID uint64, at time.Time) error
	// IncrementReserved adds one to the counter of (event, rank).
	IncrementReserved(ctx context.Context, eventID uint64, rank seat.Rank) error
	// DecrementReserved subtracts one from the counter of (event, rank).  It
	// returns repository.ErrCounterUnderflow instead of going below zero.
	DecrementReserved(ctx context.Context, eventID uint64, rank seat.Rank) error
	// SetReserved overwrites the counter of (event, rank).
	SetReserved(ctx context.Context, eventID uint64, rank seat.Rank, reserved int) error
}

// Store combines reads with transactional writes.  WithTx commits when fn
// returns nil and rolls back otherwise; the error of fn is returned as is.
type Store interface {
	Reader
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
