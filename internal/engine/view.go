package engine

import (
	"context"
	"errors"

	"github.com/iliyamo/sheet-reservation/internal/model"
	"github.com/iliyamo/sheet-reservation/internal/repository"
	"github.com/iliyamo/sheet-reservation/internal/seat"
)

// SheetView is one seat of the detail list.  A free seat carries only Num.
type SheetView struct {
	Num        int   `json:"num"`
	Mine       bool  `json:"mine,omitempty"`
	Reserved   bool  `json:"reserved,omitempty"`
	ReservedAt int64 `json:"reserved_at,omitempty"`
}

// RankView summarizes one rank of an event.  Detail is nil unless the
// view was built with detail.
type RankView struct {
	Price   int64       `json:"price"`
	Total   int         `json:"total"`
	Remains int         `json:"remains"`
	Detail  []SheetView `json:"detail,omitempty"`
}

// EventView is a read-only snapshot of an event's seating.
type EventView struct {
	ID      uint64                  `json:"id"`
	Title   string                  `json:"title"`
	Public  bool                    `json:"public"`
	Closed  bool                    `json:"closed"`
	Price   int64                   `json:"price"`
	Total   int                     `json:"total"`
	Remains int                     `json:"remains"`
	Sheets  map[seat.Rank]*RankView `json:"sheets"`
}

// PublicEventView is EventView without the fields reserved to
// administrators.
type PublicEventView struct {
	ID      uint64                  `json:"id"`
	Title   string                  `json:"title"`
	Total   int                     `json:"total"`
	Remains int                     `json:"remains"`
	Sheets  map[seat.Rank]*RankView `json:"sheets"`
}

// Sanitize drops price and flags.
func (v EventView) Sanitize() PublicEventView {
	return PublicEventView{ID: v.ID, Title: v.Title, Total: v.Total, Remains: v.Remains, Sheets: v.Sheets}
}

// GetEventView builds the view of one event.  viewerID 0 means an
// anonymous viewer.  It returns ErrNotFound when the event is missing.
func (e *Engine) GetEventView(ctx context.Context, eventID, viewerID uint64, detail bool) (EventView, error) {
	ev, err := e.store.Event(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return EventView{}, ErrNotFound
		}
		return EventView{}, unavailable("view", err)
	}
	return e.build(ctx, ev, viewerID, detail)
}

// ListEvents returns summary views of the events accepted by keep, ordered
// by id.  A nil keep accepts every event.
func (e *Engine) ListEvents(ctx context.Context, keep func(model.Event) bool) ([]EventView, error) {
	events, err := e.store.Events(ctx)
	if err != nil {
		return nil, unavailable("list", err)
	}
	out := make([]EventView, 0, len(events))
	for _, ev := range events {
		if keep != nil && !keep(ev) {
			continue
		}
		v, err := e.build(ctx, ev, 0, false)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// PublicOnly keeps public events.
func PublicOnly(ev model.Event) bool { return ev.Public }

func (e *Engine) build(ctx context.Context, ev model.Event, viewerID uint64, detail bool) (EventView, error) {
	var (
		counts map[seat.Rank]int
		active []model.Reservation
		err    error
	)
	if detail {
		counts, active, err = e.store.Seating(ctx, ev.ID)
	} else {
		counts, err = e.store.ReservedCounts(ctx, ev.ID)
	}
	if err != nil {
		return EventView{}, unavailable("view", err)
	}
	v := EventView{
		ID:      ev.ID,
		Title:   ev.Title,
		Public:  ev.Public,
		Closed:  ev.Closed,
		Price:   ev.Price,
		Total:   seat.Total,
		Remains: seat.Total,
		Sheets:  make(map[seat.Rank]*RankView, len(seat.Ranks)),
	}
	for _, r := range seat.Ranks {
		n := seat.SeatCount(r)
		v.Sheets[r] = &RankView{Price: seat.Price(ev.Price, r), Total: n, Remains: n - counts[r]}
		v.Remains -= counts[r]
	}
	if !detail {
		return v, nil
	}

	for _, r := range seat.Ranks {
		v.Sheets[r].Detail = make([]SheetView, 0, seat.SeatCount(r))
	}
	// active is ordered by sheet id; walk the full range once and fill the
	// gaps with free seats
	next := 0
	for id := 1; id <= seat.Total; id++ {
		r, num := seat.MustLocate(id)
		sv := SheetView{Num: num}
		if next < len(active) && active[next].SheetID == id {
			res := active[next]
			sv.Reserved = true
			sv.ReservedAt = res.ReservedAt.Unix()
			sv.Mine = viewerID != 0 && res.UserID == viewerID
			next++
		}
		v.Sheets[r].Detail = append(v.Sheets[r].Detail, sv)
	}
	return v, nil
}
