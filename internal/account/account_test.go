package account_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/sheet-reservation/internal/account"
	"github.com/iliyamo/sheet-reservation/internal/engine"
	"github.com/iliyamo/sheet-reservation/internal/memstore"
	"github.com/iliyamo/sheet-reservation/internal/model"
	"github.com/iliyamo/sheet-reservation/internal/repository"
	"github.com/iliyamo/sheet-reservation/internal/seat"
)

func setup(t *testing.T) (*account.Service, *engine.Engine, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	clock := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	eng := engine.New(store, nil, engine.WithPicker(engine.LowestPicker), engine.WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))
	return account.New(store, eng, bcrypt.MinCost, nil), eng, store
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	id, err := svc.Register(ctx, " Alice ", "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "Alice", id.Nickname)

	_, err = svc.Register(ctx, "Other", "alice", "pw2")
	assert.ErrorIs(t, err, account.ErrDuplicated)
	_, err = svc.Register(ctx, "", "bob", "pw")
	assert.ErrorIs(t, err, account.ErrInvalidInput)

	got, err := svc.Login(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, account.ErrAuthenticationFailed)
	_, err = svc.Login(ctx, "nobody", "pw")
	assert.ErrorIs(t, err, account.ErrAuthenticationFailed)
}

func TestAdministrators(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.EnsureAdministrator(ctx, "Root", "admin", "secret"))
	// a second seed keeps the first password
	require.NoError(t, svc.EnsureAdministrator(ctx, "Root", "admin", "changed"))

	a, err := svc.AdminLogin(ctx, "admin", "secret")
	require.NoError(t, err)
	assert.Equal(t, "Root", a.Nickname)
	_, err = svc.AdminLogin(ctx, "admin", "changed")
	assert.ErrorIs(t, err, account.ErrAuthenticationFailed)

	// users and administrators are separate tables
	_, err = svc.Login(ctx, "admin", "secret")
	assert.ErrorIs(t, err, account.ErrAuthenticationFailed)

	got, err := svc.Administrator(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestProfile(t *testing.T) {
	svc, eng, store := setup(t)
	ctx := context.Background()
	u, err := svc.Register(ctx, "Alice", "alice", "pw")
	require.NoError(t, err)
	other, err := svc.Register(ctx, "Bob", "bob", "pw")
	require.NoError(t, err)

	var events []uint64
	for i := 0; i < 6; i++ {
		id, err := store.CreateEvent(ctx, model.Event{Title: "e", Public: true, Price: 1000})
		require.NoError(t, err)
		events = append(events, id)
	}
	for _, ev := range events {
		_, err := eng.Reserve(ctx, ev, "S", u.ID)
		require.NoError(t, err)
	}
	require.NoError(t, eng.Cancel(ctx, events[0], "S", 1, u.ID))

	p, err := svc.Profile(ctx, u.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.ID)
	require.Len(t, p.RecentReservations, 5)

	// the cancellation is the latest change
	latest := p.RecentReservations[0]
	assert.Equal(t, events[0], latest.Event.ID)
	assert.Equal(t, seat.RankS, latest.SheetRank)
	assert.Equal(t, 1, latest.SheetNum)
	assert.Equal(t, int64(6000), latest.Price)
	require.NotNil(t, latest.CanceledAt)
	assert.Nil(t, p.RecentReservations[1].CanceledAt)
	assert.Equal(t, events[5], p.RecentReservations[1].Event.ID)

	assert.Equal(t, int64(5*6000), p.TotalPrice)
	require.Len(t, p.RecentEvents, 5)
	assert.Equal(t, events[0], p.RecentEvents[0].ID)

	_, err = svc.Profile(ctx, u.ID, other.ID)
	assert.ErrorIs(t, err, repository.ErrForbidden)
	_, err = svc.Profile(ctx, 999, u.ID)
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func TestProfileEmpty(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()
	u, err := svc.Register(ctx, "Alice", "alice", "pw")
	require.NoError(t, err)

	p, err := svc.Profile(ctx, u.ID, u.ID)
	require.NoError(t, err)
	assert.NotNil(t, p.RecentReservations)
	assert.NotNil(t, p.RecentEvents)
	assert.Zero(t, p.TotalPrice)
}
