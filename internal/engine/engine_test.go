package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/sheet-reservation/internal/engine"
	"github.com/iliyamo/sheet-reservation/internal/memstore"
	"github.com/iliyamo/sheet-reservation/internal/model"
	"github.com/iliyamo/sheet-reservation/internal/seat"
)

var fixed = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu      sync.Mutex
	notices []engine.Notice
}

func (r *recorder) Notify(_ context.Context, n engine.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func setup(t *testing.T, opts ...engine.Option) (*engine.Engine, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	opts = append([]engine.Option{engine.WithClock(func() time.Time { return fixed })}, opts...)
	return engine.New(store, nil, opts...), store
}

func addEvent(t *testing.T, store *memstore.Store, ev model.Event) uint64 {
	t.Helper()
	if ev.Title == "" {
		ev.Title = "concert"
	}
	id, err := store.CreateEvent(context.Background(), ev)
	require.NoError(t, err)
	return id
}

func counter(t *testing.T, store *memstore.Store, eventID uint64, r seat.Rank) int {
	t.Helper()
	counts, err := store.ReservedCounts(context.Background(), eventID)
	require.NoError(t, err)
	return counts[r]
}

func activeIn(t *testing.T, store *memstore.Store, eventID uint64, r seat.Rank) int {
	t.Helper()
	rows, err := store.ActiveReservations(context.Background(), eventID)
	require.NoError(t, err)
	n := 0
	for _, row := range rows {
		if rank, _ := row.Seat(); rank == r {
			n++
		}
	}
	return n
}

func assertConsistent(t *testing.T, store *memstore.Store, eventID uint64) {
	t.Helper()
	for _, r := range seat.Ranks {
		assert.Equal(t, activeIn(t, store, eventID, r), counter(t, store, eventID, r), "rank %s", r)
	}
}

func TestReserve(t *testing.T) {
	rec := &recorder{}
	e, store := setup(t, engine.WithPicker(engine.LowestPicker), engine.WithNotifier(rec))
	ctx := context.Background()
	id := addEvent(t, store, model.Event{Public: true, Price: 1000})

	a, err := e.Reserve(ctx, id, "A", 7)
	require.NoError(t, err)
	assert.Equal(t, seat.RankA, a.Rank)
	assert.Equal(t, 1, a.Num)
	assert.NotZero(t, a.ReservationID)

	left, err := e.Remaining(ctx, id, seat.RankA)
	require.NoError(t, err)
	assert.Equal(t, 149, left)
	assertConsistent(t, store, id)

	ledger := store.Ledger(id)
	require.Len(t, ledger, 1)
	assert.Equal(t, 51, ledger[0].SheetID)
	assert.Equal(t, uint64(7), ledger[0].UserID)
	assert.Equal(t, fixed, ledger[0].ReservedAt)
	assert.Nil(t, ledger[0].CanceledAt)

	require.Len(t, rec.notices, 1)
	assert.Equal(t, engine.Notice{Type: engine.NoticeReserved, ReservationID: a.ReservationID,
		EventID: id, UserID: 7, Rank: seat.RankA, Num: 1, At: fixed}, rec.notices[0])
}

func TestReserveRejects(t *testing.T) {
	e, store := setup(t)
	ctx := context.Background()
	public := addEvent(t, store, model.Event{Public: true})
	draft := addEvent(t, store, model.Event{})
	closed := addEvent(t, store, model.Event{Closed: true})

	cases := []struct {
		name    string
		eventID uint64
		rank    string
		want    error
	}{
		{"missing event", 999, "S", engine.ErrInvalidEvent},
		{"draft event", draft, "S", engine.ErrInvalidEvent},
		{"closed event", closed, "S", engine.ErrInvalidEvent},
		{"unknown rank", public, "Z", engine.ErrInvalidRank},
		{"lower case rank", public, "s", engine.ErrInvalidRank},
		{"empty rank", public, "", engine.ErrInvalidRank},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Reserve(ctx, tc.eventID, tc.rank, 1)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Empty(t, store.Ledger(public))
	assertConsistent(t, store, public)
}

func TestConcurrentReserveNeverDoubleAllocates(t *testing.T) {
	e, store := setup(t)
	ctx := context.Background()
	id := addEvent(t, store, model.Event{Public: true})

	const callers = 80
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		nums    = map[int]int{}
		soldOut int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(user uint64) {
			defer wg.Done()
			a, err := e.Reserve(ctx, id, "S", user)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				nums[a.Num]++
			case errors.Is(err, engine.ErrSoldOut):
				soldOut++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(uint64(i + 1))
	}
	wg.Wait()

	assert.Len(t, nums, seat.SeatCount(seat.RankS))
	for num, n := range nums {
		assert.Equal(t, 1, n, "seat %d assigned %d times", num, n)
		assert.True(t, num >= 1 && num <= 50)
	}
	assert.Equal(t, callers-seat.SeatCount(seat.RankS), soldOut)
	assert.Equal(t, 50, counter(t, store, id, seat.RankS))
	assertConsistent(t, store, id)
}

func TestLastSeatRace(t *testing.T) {
	e, store := setup(t, engine.WithPicker(engine.LowestPicker))
	ctx := context.Background()
	id := addEvent(t, store, model.Event{Public: true})
	for i := 0; i < 49; i++ {
		_, err := e.Reserve(ctx, id, "S", 1)
		require.NoError(t, err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []engine.Assignment
		losers  int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(user uint64) {
			defer wg.Done()
			a, err := e.Reserve(ctx, id, "S", user)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, a)
			} else if assert.ErrorIs(t, err, engine.ErrSoldOut) {
				losers++
			}
		}(uint64(100 + i))
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, 50, winners[0].Num)
	assert.Equal(t, 9, losers)
	assertConsistent(t, store, id)
}

func TestSoldOutThenCancelFreesSeat(t *testing.T) {
	e, store := setup(t, engine.WithPicker(engine.LowestPicker))
	ctx := context.Background()
	id := addEvent(t, store, model.Event{Public: true})
	for i := 0; i < seat.SeatCount(seat.RankC); i++ {
		_, err := e.Reserve(ctx, id, "C", 1)
		require.NoError(t, err)
	}
	_, err := e.Reserve(ctx, id, "C", 2)
	require.ErrorIs(t, err, engine.ErrSoldOut)

	require.NoError(t, e.Cancel(ctx, id, "C", 17, 1))
	a, err := e.Reserve(ctx, id, "C", 2)
	require.NoError(t, err)
	assert.Equal(t, 17, a.Num)

	left, err := e.Remaining(ctx, id, seat.RankC)
	require.NoError(t, err)
	assert.Zero(t, left)
	assertConsistent(t, store, id)
}

func TestRemainingUnknownEvent(t *testing.T) {
	e, store := setup(t)
	id := addEvent(t, store, model.Event{Public: true})

	_, err := e.Remaining(context.Background(), id+1, seat.RankS)
	assert.ErrorIs(t, err, engine.ErrNotFound)

	left, err := e.Remaining(context.Background(), id, seat.RankS)
	require.NoError(t, err)
	assert.Equal(t, seat.SeatCount(seat.RankS), left)

	_, err = e.Remaining(context.Background(), id, "Z")
	assert.ErrorIs(t, err, engine.ErrInvalidRank)
}

func TestReserveThenCancelIsReversible(t *testing.T) {
	rec := &recorder{}
	e, store := setup(t, engine.WithNotifier(rec))
	ctx := context.Background()
	id := addEvent(t, store, model.Event{Public: true, Price: 3000})

	before, err := e.GetEventView(ctx, id, 0, true)
	require.NoError(t, err)

	a, err := e.Reserve(ctx, id, "B", 5)
	require.NoError(t, err)
	require.NoError(t, e.Cancel(ctx, id, "B", a.Num, 5))

	after, err := e.GetEventView(ctx, id, 0, true)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assertConsistent(t, store, id)

	ledger := store.Ledger(id)
	require.Len(t, ledger, 1)
	require.NotNil(t, ledger[0].CanceledAt)
	assert.Equal(t, fixed, *ledger[0].CanceledAt)
	assert.Equal(t, model.SeatFree, ledger[0].Status())

	require.Len(t, rec.notices, 2)
	assert.Equal(t, engine.NoticeCanceled, rec.notices[1].Type)
	assert.Equal(t, a.ReservationID, rec.notices[1].ReservationID)
}

func TestCancelRejects(t *testing.T) {
	e, store := setup(t, engine.WithPicker(engine.LowestPicker))
	ctx := context.Background()
	id := addEvent(t, store, model.Event{Public: true})
	draft := addEvent(t, store, model.Event{})
	_, err := e.Reserve(ctx, id, "S", 1)
	require.NoError(t, err)

	cases := []struct {
		name    string
		eventID uint64
		rank    string
		num     int
		user    uint64
		want    error
	}{
		{"missing event", 999, "S", 1, 1, engine.ErrInvalidEvent},
		{"draft event", draft, "S", 1, 1, engine.ErrInvalidEvent},
		{"unknown rank", id, "Z", 1, 1, engine.ErrInvalidRank},
		{"num zero", id, "S", 0, 1, engine.ErrInvalidSeat},
		{"num past rank", id, "S", 51, 1, engine.ErrInvalidSeat},
		{"free seat", id, "S", 2, 1, engine.ErrNotReserved},
		{"other user", id, "S", 1, 2, engine.ErrNotPermitted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := e.Cancel(ctx, tc.eventID, tc.rank, tc.num, tc.user)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	ledger := store.Ledger(id)
	require.Len(t, ledger, 1)
	assert.Nil(t, ledger[0].CanceledAt)
	assert.Equal(t, 1, counter(t, store, id, seat.RankS))
}

func TestCancelOnClosedEvent(t *testing.T) {
	e, store := setup(t, engine.WithPicker(engine.LowestPicker))
	ctx := context.Background()
	id := addEvent(t, store, model.Event{Public: true})
	_, err := e.Reserve(ctx, id, "S", 1)
	require.NoError(t, err)

	// closing forces public off, after which the seat can no longer be released
	require.NoError(t, store.EditEvent(ctx, id, func(ev model.Event) (model.Event, error) {
		ev.Public, ev.Closed = false, true
		return ev, nil
	}))
	assert.ErrorIs(t, e.Cancel(ctx, id, "S", 1, 1), engine.ErrInvalidEvent)
}

func TestCancelTwice(t *testing.T) {
	e, store := setup(t, engine.WithPicker(engine.LowestPicker))
	ctx := context.Background()
	id := addEvent(t, store, model.Event{Public: true})
	_, err := e.Reserve(ctx, id, "A", 3)
	require.NoError(t, err)

	require.NoError(t, e.Cancel(ctx, id, "A", 1, 3))
	assert.ErrorIs(t, e.Cancel(ctx, id, "A", 1, 3), engine.ErrNotReserved)
	assert.Zero(t, counter(t, store, id, seat.RankA))
}

func TestStoreFaultRollsBack(t *testing.T) {
	for _, step := range []string{"lock", "insert", "increment", "commit"} {
		t.Run(step, func(t *testing.T) {
			e, store := setup(t)
			ctx := context.Background()
			id := addEvent(t, store, model.Event{Public: true})
			boom := errors.New("connection reset")
			store.Fault = func(op string) error {
				if op == step {
					return boom
				}
				return nil
			}

			_, err := e.Reserve(ctx, id, "S", 1)
			require.ErrorIs(t, err, engine.ErrStoreUnavailable)
			assert.ErrorIs(t, err, boom)
			assert.Equal(t, "store_unavailable", engine.Code(err))
			assert.Empty(t, store.Ledger(id))
			assert.Zero(t, counter(t, store, id, seat.RankS))
		})
	}
}

func TestCancelFaultRollsBack(t *testing.T) {
	e, store := setup(t, engine.WithPicker(engine.LowestPicker))
	ctx := context.Background()
	id := addEvent(t, store, model.Event{Public: true})
	_, err := e.Reserve(ctx, id, "S", 1)
	require.NoError(t, err)

	store.Fault = func(op string) error {
		if op == "decrement" {
			return errors.New("lost connection")
		}
		return nil
	}
	require.ErrorIs(t, e.Cancel(ctx, id, "S", 1, 1), engine.ErrStoreUnavailable)
	store.Fault = nil

	ledger := store.Ledger(id)
	require.Len(t, ledger, 1)
	assert.Nil(t, ledger[0].CanceledAt)
	assert.Equal(t, 1, counter(t, store, id, seat.RankS))
}

func TestLockWaitHonoursContext(t *testing.T) {
	e, store := setup(t)
	id := addEvent(t, store, model.Event{Public: true})

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- store.WithTx(context.Background(), func(ctx context.Context, tx engine.Tx) error {
			if _, err := tx.LockEvent(ctx, id); err != nil {
				return err
			}
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := e.Reserve(ctx, id, "S", 1)
	require.ErrorIs(t, err, engine.ErrStoreUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-done)
	_, err = e.Reserve(context.Background(), id, "S", 1)
	assert.NoError(t, err)
}

func TestLockWaitTimeout(t *testing.T) {
	store := memstore.New(memstore.WithLockWait(20 * time.Millisecond))
	e := engine.New(store, nil)
	id := addEvent(t, store, model.Event{Public: true})

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = store.WithTx(context.Background(), func(ctx context.Context, tx engine.Tx) error {
			_, _ = tx.LockEvent(ctx, id)
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	err := e.Cancel(context.Background(), id, "S", 1, 1)
	require.ErrorIs(t, err, engine.ErrStoreUnavailable)
	assert.ErrorIs(t, err, memstore.ErrLockWaitTimeout)
}

func TestCounterUnderflowPanics(t *testing.T) {
	e, store := setup(t, engine.WithPicker(engine.LowestPicker))
	ctx := context.Background()
	id := addEvent(t, store, model.Event{Public: true})
	_, err := e.Reserve(ctx, id, "S", 1)
	require.NoError(t, err)

	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx engine.Tx) error {
		if _, err := tx.LockEvent(ctx, id); err != nil {
			return err
		}
		return tx.SetReserved(ctx, id, seat.RankS, 0)
	}))

	assert.PanicsWithError(t,
		"cancel: consistency violation on event 1: counter of rank S below zero: availability counter underflow",
		func() { _ = e.Cancel(ctx, id, "S", 1, 1) })

	// the panic happened after rollback; the row is still active
	ledger := store.Ledger(id)
	require.Len(t, ledger, 1)
	assert.Nil(t, ledger[0].CanceledAt)

	// and the lock was released
	require.NoError(t, e.RebuildCounters(ctx))
	assertConsistent(t, store, id)
}

func TestRebuildCounters(t *testing.T) {
	e, store := setup(t)
	ctx := context.Background()
	first := addEvent(t, store, model.Event{Public: true})
	second := addEvent(t, store, model.Event{Public: true})
	for _, r := range []string{"S", "S", "A", "C"} {
		_, err := e.Reserve(ctx, first, r, 1)
		require.NoError(t, err)
	}
	_, err := e.Reserve(ctx, second, "B", 2)
	require.NoError(t, err)

	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx engine.Tx) error {
		if _, err := tx.LockEvent(ctx, first); err != nil {
			return err
		}
		if err := tx.SetReserved(ctx, first, seat.RankS, 40); err != nil {
			return err
		}
		return tx.SetReserved(ctx, first, seat.RankB, 3)
	}))

	ledgerBefore := store.Ledger(first)
	require.NoError(t, e.RebuildCounters(ctx))
	assert.Equal(t, ledgerBefore, store.Ledger(first))
	assert.Equal(t, 2, counter(t, store, first, seat.RankS))
	assert.Zero(t, counter(t, store, first, seat.RankB))
	assertConsistent(t, store, first)
	assertConsistent(t, store, second)
}

func TestCode(t *testing.T) {
	assert.Equal(t, "sold_out", engine.Code(engine.ErrSoldOut))
	assert.Equal(t, "invalid_sheet", engine.Code(engine.ErrInvalidSeat))
	assert.Equal(t, "unknown", engine.Code(errors.New("x")))
	assert.Equal(t, "unknown", engine.Code(nil))
}
