// Package queue defines the messages exchanged over the broker and the
// consumer that records them.
package queue

import (
    "time"

    "github.com/iliyamo/sheet-reservation/internal/engine"
)

// ReservationEvent is published after a reserve or cancel committed.  It
// carries enough to audit the change without querying the store.
type ReservationEvent struct {
    Type          string    `json:"type"` // "reserved" or "canceled"
    ReservationID uint64    `json:"reservation_id"`
    EventID       uint64    `json:"event_id"`
    UserID        uint64    `json:"user_id"`
    Rank          string    `json:"rank"`
    Num           int       `json:"num"`
    At            time.Time `json:"at"`
}

// FromNotice converts an engine notice into its wire form.
func FromNotice(n engine.Notice) ReservationEvent {
    return ReservationEvent{
        Type:          n.Type,
        ReservationID: n.ReservationID,
        EventID:       n.EventID,
        UserID:        n.UserID,
        Rank:          string(n.Rank),
        Num:           n.Num,
        At:            n.At.UTC(),
    }
}
