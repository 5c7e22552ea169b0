// Package engine allocates seats of an event to users.  It owns the
// reserve and cancel protocol and the rule that the availability counter
// of every (event, rank) equals the number of active reservations in it.
//
// The engine keeps no state of its own; all coordination is delegated to
// the transactions of the Store, so any number of engine instances may
// share one store.
package engine

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/sheet-reservation/internal/model"
	"github.com/iliyamo/sheet-reservation/internal/repository"
	"github.com/iliyamo/sheet-reservation/internal/seat"
)

// SeatPicker chooses one sheet id out of a non-empty list of free ones.
type SeatPicker func(free []int) int

// RandomPicker picks uniformly at random.  It is the default policy.
func RandomPicker(free []int) int { return free[rand.IntN(len(free))] }

// LowestPicker picks the lowest-numbered free seat.
func LowestPicker(free []int) int { return free[0] }

// Assignment is the result of a successful Reserve.
type Assignment struct {
	ReservationID uint64    `json:"id"`
	Rank          seat.Rank `json:"sheet_rank"`
	Num           int       `json:"sheet_num"`
}

// Notice describes a committed ledger change for downstream consumers.
type Notice struct {
	Type          string
	ReservationID uint64
	EventID       uint64
	UserID        uint64
	Rank          seat.Rank
	Num           int
	At            time.Time
}

const (
	NoticeReserved = "reserved"
	NoticeCanceled = "canceled"
)

// Notifier receives a Notice after each commit.  Failures must be handled
// by the notifier; they never affect the operation.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Engine runs Reserve and Cancel against a Store.
type Engine struct {
	store    Store
	log      *zap.Logger
	now      func() time.Time
	pick     SeatPicker
	notifier Notifier
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the source of reserved_at / canceled_at.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithPicker overrides the seat assignment policy.
func WithPicker(p SeatPicker) Option { return func(e *Engine) { e.pick = p } }

// WithNotifier registers a receiver of committed changes.
func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

// New returns an Engine bound to store.
func New(store Store, log *zap.Logger, opts ...Option) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		store: store,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
		pick:  RandomPicker,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Reserve assigns one free seat of rank to userID.
func (e *Engine) Reserve(ctx context.Context, eventID uint64, rank string, userID uint64) (Assignment, error) {
	const op = "reserve"
	start := time.Now()

	ev, err := e.store.Event(ctx, eventID)
	if err != nil {
		return Assignment{}, e.finish(op, start, e.readErr(op, err, ErrInvalidEvent))
	}
	if !ev.Reservable() {
		return Assignment{}, e.finish(op, start, ErrInvalidEvent)
	}
	r, err := seat.ParseRank(rank)
	if err != nil {
		return Assignment{}, e.finish(op, start, ErrInvalidRank)
	}

	var res model.Reservation
	err = e.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		locked, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			if errors.Is(err, repository.ErrEventNotFound) {
				return ErrInvalidEvent
			}
			return err
		}
		// flags may have changed between the read above and the lock
		if !locked.Reservable() {
			return ErrInvalidEvent
		}
		first, last := seat.Bounds(r)
		taken, err := tx.ActiveSheets(ctx, eventID, first, last)
		if err != nil {
			return err
		}
		free := freeSheets(first, last, taken)
		if len(free) == 0 {
			return ErrSoldOut
		}
		res = model.Reservation{
			EventID:    eventID,
			SheetID:    e.pick(free),
			UserID:     userID,
			ReservedAt: e.now(),
		}
		if err := tx.InsertReservation(ctx, &res); err != nil {
			return err
		}
		return tx.IncrementReserved(ctx, eventID, r)
	})
	if err != nil {
		return Assignment{}, e.finish(op, start, e.txErr(op, eventID, err))
	}

	_, num := res.Seat()
	e.log.Debug("seat reserved",
		zap.Uint64("event_id", eventID), zap.Uint64("reservation_id", res.ID),
		zap.String("rank", string(r)), zap.Int("num", num), zap.Uint64("user_id", userID))
	e.notify(ctx, Notice{Type: NoticeReserved, ReservationID: res.ID, EventID: eventID,
		UserID: userID, Rank: r, Num: num, At: res.ReservedAt})
	e.finish(op, start, nil)
	return Assignment{ReservationID: res.ID, Rank: r, Num: num}, nil
}

// Cancel releases the seat (rank, num) of an event held by userID.
func (e *Engine) Cancel(ctx context.Context, eventID uint64, rank string, num int, userID uint64) error {
	const op = "cancel"
	start := time.Now()

	ev, err := e.store.Event(ctx, eventID)
	if err != nil {
		return e.finish(op, start, e.readErr(op, err, ErrInvalidEvent))
	}
	if !ev.Public {
		return e.finish(op, start, ErrInvalidEvent)
	}
	r, err := seat.ParseRank(rank)
	if err != nil {
		return e.finish(op, start, ErrInvalidRank)
	}
	sheetID, err := seat.Position(r, num)
	if err != nil {
		return e.finish(op, start, ErrInvalidSeat)
	}

	var res *model.Reservation
	canceledAt := e.now()
	err = e.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockEvent(ctx, eventID); err != nil {
			if errors.Is(err, repository.ErrEventNotFound) {
				return ErrInvalidEvent
			}
			return err
		}
		found, err := tx.ActiveReservation(ctx, eventID, sheetID)
		if err != nil {
			return err
		}
		if found == nil {
			return ErrNotReserved
		}
		if found.UserID != userID {
			return ErrNotPermitted
		}
		res = found
		if err := tx.CancelReservation(ctx, res.ID, canceledAt); err != nil {
			return err
		}
		if err := tx.DecrementReserved(ctx, eventID, r); err != nil {
			if errors.Is(err, repository.ErrCounterUnderflow) {
				return &ConsistencyError{Op: op, EventID: eventID,
					Detail: "counter of rank " + string(r) + " below zero", Err: err}
			}
			return err
		}
		return nil
	})
	if err != nil {
		return e.finish(op, start, e.txErr(op, eventID, err))
	}

	e.log.Debug("seat canceled",
		zap.Uint64("event_id", eventID), zap.Uint64("reservation_id", res.ID),
		zap.String("rank", string(r)), zap.Int("num", num), zap.Uint64("user_id", userID))
	e.notify(ctx, Notice{Type: NoticeCanceled, ReservationID: res.ID, EventID: eventID,
		UserID: userID, Rank: r, Num: num, At: canceledAt})
	e.finish(op, start, nil)
	return nil
}

// Remaining returns the number of free seats of (event, rank) according to
// the availability counter.  Every event gets its counters when it is
// created, so a missing counter means ErrNotFound.
func (e *Engine) Remaining(ctx context.Context, eventID uint64, rank seat.Rank) (int, error) {
	if !rank.Valid() {
		return 0, ErrInvalidRank
	}
	counts, err := e.store.ReservedCounts(ctx, eventID)
	if err != nil {
		return 0, unavailable("remaining", err)
	}
	n, ok := counts[rank]
	if !ok {
		return 0, ErrNotFound
	}
	return seat.SeatCount(rank) - n, nil
}

// RebuildCounters recomputes every availability counter from the active
// ledger rows, one event per transaction.  The ledger is not modified.
func (e *Engine) RebuildCounters(ctx context.Context) error {
	const op = "rebuild"
	events, err := e.store.Events(ctx)
	if err != nil {
		return unavailable(op, err)
	}
	for _, ev := range events {
		err := e.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
			if _, err := tx.LockEvent(ctx, ev.ID); err != nil {
				return err
			}
			for _, r := range seat.Ranks {
				first, last := seat.Bounds(r)
				taken, err := tx.ActiveSheets(ctx, ev.ID, first, last)
				if err != nil {
					return err
				}
				if err := tx.SetReserved(ctx, ev.ID, r, len(taken)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return unavailable(op, err)
		}
	}
	e.log.Info("availability counters rebuilt", zap.Int("events", len(events)))
	return nil
}

// freeSheets returns the ids in [first, last] not listed in taken.
func freeSheets(first, last int, taken []int) []int {
	busy := make(map[int]struct{}, len(taken))
	for _, id := range taken {
		busy[id] = struct{}{}
	}
	free := make([]int, 0, last-first+1-len(busy))
	for id := first; id <= last; id++ {
		if _, ok := busy[id]; !ok {
			free = append(free, id)
		}
	}
	return free
}

// readErr maps a failed pre-transaction read.
func (e *Engine) readErr(op string, err, missing error) error {
	if errors.Is(err, repository.ErrEventNotFound) {
		return missing
	}
	return unavailable(op, err)
}

// txErr maps the error of a rolled back transaction.  Consistency
// violations abort loudly.
func (e *Engine) txErr(op string, eventID uint64, err error) error {
	var ce *ConsistencyError
	if errors.As(err, &ce) {
		e.log.Error("ledger and availability counter drifted",
			zap.String("op", op), zap.Uint64("event_id", eventID), zap.Error(err))
		observe(op, "inconsistent", 0)
		panic(ce)
	}
	if domain(err) {
		return err
	}
	e.log.Warn("transaction rolled back",
		zap.String("op", op), zap.Uint64("event_id", eventID), zap.Error(err))
	return unavailable(op, err)
}

func (e *Engine) finish(op string, start time.Time, err error) error {
	observe(op, resultOf(err), time.Since(start))
	return err
}

func (e *Engine) notify(ctx context.Context, n Notice) {
	if e.notifier != nil {
		e.notifier.Notify(ctx, n)
	}
}
