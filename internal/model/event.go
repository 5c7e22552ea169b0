package model

// Event represents a row in the `events` table.  Price is the base price
// of the event; each rank adds its own delta on top of it.
//
// Fields:
//  ID     – primary key identifier.
//  Title  – display title.
//  Price  – base price in yen.
//  Public – whether the event is listed and open for reservations.
//  Closed – whether sales have ended; a closed event is never edited again.
type Event struct {
    ID     uint64 // events.id
    Title  string // events.title
    Price  int64  // events.price
    Public bool   // events.public_fg
    Closed bool   // events.closed_fg
}

// Reservable reports whether new reservations may be taken for the event.
func (e Event) Reservable() bool { return e.Public && !e.Closed }
