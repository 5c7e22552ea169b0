package model

import (
    "time"

    "github.com/iliyamo/sheet-reservation/internal/seat"
)

// SeatStatus is the derived occupancy of a seat for one event.  It is not
// stored; it follows from whether an active ledger row exists.
type SeatStatus int

const (
    SeatFree SeatStatus = iota
    SeatActive
)

func (s SeatStatus) String() string {
    if s == SeatActive {
        return "active"
    }
    return "free"
}

// Reservation mirrors one row of the `reservations` ledger.  Rows are never
// deleted; cancellation sets CanceledAt exactly once.
//
// Fields:
//  ID         – primary key identifier.
//  EventID    – event the seat belongs to.
//  SheetID    – global seat position 1..1000.
//  UserID     – user who reserved the seat.
//  ReservedAt – UTC time of the reservation.
//  CanceledAt – UTC time of the cancellation (nil while active).
type Reservation struct {
    ID         uint64     // reservations.id
    EventID    uint64     // reservations.event_id
    SheetID    int        // reservations.sheet_id
    UserID     uint64     // reservations.user_id
    ReservedAt time.Time  // reservations.reserved_at
    CanceledAt *time.Time // reservations.canceled_at (nullable)
}

// Status derives the seat state this row stands for.
func (r Reservation) Status() SeatStatus {
    if r.CanceledAt == nil {
        return SeatActive
    }
    return SeatFree
}

// Seat returns the rank and rank-local number of the reserved seat.
func (r Reservation) Seat() (seat.Rank, int) { return seat.MustLocate(r.SheetID) }

// SalesRow is one line of a sales report: a ledger row joined with its
// seat and price.
type SalesRow struct {
    ReservationID uint64
    EventID       uint64
    Rank          seat.Rank
    Num           int
    Price         int64
    UserID        uint64
    SoldAt        time.Time
    CanceledAt    *time.Time
}
