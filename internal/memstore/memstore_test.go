package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/sheet-reservation/internal/engine"
	"github.com/iliyamo/sheet-reservation/internal/model"
	"github.com/iliyamo/sheet-reservation/internal/repository"
	"github.com/iliyamo/sheet-reservation/internal/seat"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func reserve(t *testing.T, s *Store, eventID uint64, sheetID int, userID uint64, at time.Time) uint64 {
	t.Helper()
	var id uint64
	require.NoError(t, s.WithTx(context.Background(), func(ctx context.Context, tx engine.Tx) error {
		if _, err := tx.LockEvent(ctx, eventID); err != nil {
			return err
		}
		r := model.Reservation{EventID: eventID, SheetID: sheetID, UserID: userID, ReservedAt: at}
		if err := tx.InsertReservation(ctx, &r); err != nil {
			return err
		}
		id = r.ID
		rank, _ := seat.MustLocate(sheetID)
		return tx.IncrementReserved(ctx, eventID, rank)
	}))
	return id
}

func cancel(t *testing.T, s *Store, eventID, id uint64, at time.Time) {
	t.Helper()
	require.NoError(t, s.WithTx(context.Background(), func(ctx context.Context, tx engine.Tx) error {
		if _, err := tx.LockEvent(ctx, eventID); err != nil {
			return err
		}
		return tx.CancelReservation(ctx, id, at)
	}))
}

func TestCreateEventSeedsCounters(t *testing.T) {
	s := New()
	id, err := s.CreateEvent(context.Background(), model.Event{Title: "x", Price: 10})
	require.NoError(t, err)
	counts, err := s.ReservedCounts(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, map[seat.Rank]int{seat.RankS: 0, seat.RankA: 0, seat.RankB: 0, seat.RankC: 0}, counts)
}

func TestTxIsolation(t *testing.T) {
	s := New()
	ctx := context.Background()
	id, _ := s.CreateEvent(ctx, model.Event{Public: true})

	err := s.WithTx(ctx, func(ctx context.Context, tx engine.Tx) error {
		if _, err := tx.LockEvent(ctx, id); err != nil {
			return err
		}
		r := model.Reservation{EventID: id, SheetID: 3, UserID: 1, ReservedAt: t0}
		require.NoError(t, tx.InsertReservation(ctx, &r))
		require.NoError(t, tx.IncrementReserved(ctx, id, seat.RankS))

		// own writes are visible inside the transaction only
		sheets, err := tx.ActiveSheets(ctx, id, 1, 50)
		require.NoError(t, err)
		assert.Equal(t, []int{3}, sheets)
		outside, _ := s.ActiveReservations(ctx, id)
		assert.Empty(t, outside)
		return errors.New("rollback")
	})
	require.Error(t, err)

	rows, _ := s.ActiveReservations(ctx, id)
	assert.Empty(t, rows)
	counts, _ := s.ReservedCounts(ctx, id)
	assert.Zero(t, counts[seat.RankS])

	// the rolled back id is not reused
	next := reserve(t, s, id, 4, 1, t0)
	assert.Equal(t, uint64(2), next)
}

func TestLockEventMissing(t *testing.T) {
	s := New()
	err := s.WithTx(context.Background(), func(ctx context.Context, tx engine.Tx) error {
		_, err := tx.LockEvent(ctx, 9)
		return err
	})
	assert.ErrorIs(t, err, repository.ErrEventNotFound)
}

func TestDecrementUnderflow(t *testing.T) {
	s := New()
	ctx := context.Background()
	id, _ := s.CreateEvent(ctx, model.Event{})
	err := s.WithTx(ctx, func(ctx context.Context, tx engine.Tx) error {
		if _, err := tx.LockEvent(ctx, id); err != nil {
			return err
		}
		return tx.DecrementReserved(ctx, id, seat.RankA)
	})
	assert.ErrorIs(t, err, repository.ErrCounterUnderflow)
}

func TestEditEvent(t *testing.T) {
	s := New()
	ctx := context.Background()
	id, _ := s.CreateEvent(ctx, model.Event{Title: "x", Price: 5})

	require.NoError(t, s.EditEvent(ctx, id, func(ev model.Event) (model.Event, error) {
		ev.Public = true
		ev.Title = "ignored"
		return ev, nil
	}))
	ev, _ := s.Event(ctx, id)
	assert.Equal(t, model.Event{ID: id, Title: "x", Price: 5, Public: true}, ev)

	boom := errors.New("no")
	assert.ErrorIs(t, s.EditEvent(ctx, id, func(ev model.Event) (model.Event, error) {
		ev.Public = false
		return ev, boom
	}), boom)
	ev, _ = s.Event(ctx, id)
	assert.True(t, ev.Public)

	assert.ErrorIs(t, s.EditEvent(ctx, 99, func(ev model.Event) (model.Event, error) { return ev, nil }),
		repository.ErrEventNotFound)
}

func TestUsers(t *testing.T) {
	s := New()
	ctx := context.Background()
	id, err := s.CreateUser(ctx, model.User{Nickname: "n", LoginName: "alice", PassHash: "h"})
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, model.User{Nickname: "m", LoginName: "alice", PassHash: "h"})
	assert.ErrorIs(t, err, repository.ErrDuplicated)

	u, err := s.UserByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	_, err = s.UserByID(ctx, 77)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	aid, err := s.CreateAdministrator(ctx, model.Administrator{Nickname: "root", LoginName: "admin", PassHash: "h"})
	require.NoError(t, err)
	a, err := s.AdministratorByID(ctx, aid)
	require.NoError(t, err)
	assert.Equal(t, "admin", a.LoginName)
	_, err = s.AdministratorByLogin(ctx, "alice")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestHistory(t *testing.T) {
	s := New()
	ctx := context.Background()
	e1, _ := s.CreateEvent(ctx, model.Event{Price: 1000})
	e2, _ := s.CreateEvent(ctx, model.Event{Price: 2000})

	r1 := reserve(t, s, e1, 1, 7, t0)                  // S, 6000
	r2 := reserve(t, s, e2, 600, 7, t0.Add(time.Hour)) // C, 2000
	r3 := reserve(t, s, e1, 60, 7, t0.Add(2*time.Hour))
	reserve(t, s, e1, 2, 8, t0.Add(3*time.Hour))
	cancel(t, s, e1, r1, t0.Add(4*time.Hour))

	rows, err := s.RecentReservations(ctx, 7, 5)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []uint64{r1, r3, r2}, []uint64{rows[0].ID, rows[1].ID, rows[2].ID})

	rows, err = s.RecentReservations(ctx, 7, 2)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	total, err := s.ActiveTotalPrice(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2000+1000+3000), total)

	ids, err := s.RecentEventIDs(ctx, 7, 5)
	require.NoError(t, err)
	assert.Equal(t, []uint64{e1, e2}, ids)
}

func TestSalesRows(t *testing.T) {
	s := New()
	ctx := context.Background()
	e1, _ := s.CreateEvent(ctx, model.Event{Price: 1000})
	e2, _ := s.CreateEvent(ctx, model.Event{Price: 0})

	late := reserve(t, s, e1, 250, 1, t0.Add(time.Hour))
	early := reserve(t, s, e2, 1, 2, t0)
	cancel(t, s, e1, late, t0.Add(2*time.Hour))

	rows, err := s.SalesRows(ctx, e1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, seat.RankB, rows[0].Rank)
	assert.Equal(t, 50, rows[0].Num)
	assert.Equal(t, int64(2000), rows[0].Price)
	require.NotNil(t, rows[0].CanceledAt)

	all, err := s.AllSalesRows(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, early, all[0].ReservationID)
	assert.Equal(t, late, all[1].ReservationID)
}
