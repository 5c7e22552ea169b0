package memstore

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/iliyamo/sheet-reservation/internal/model"
	"github.com/iliyamo/sheet-reservation/internal/repository"
	"github.com/iliyamo/sheet-reservation/internal/seat"
)

// CreateEvent inserts the event with a zero counter per rank.
func (s *Store) CreateEvent(ctx context.Context, ev model.Event) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastEventID++
	ev.ID = s.lastEventID
	s.events[ev.ID] = ev
	counters := make(map[seat.Rank]int, len(seat.Ranks))
	for _, r := range seat.Ranks {
		counters[r] = 0
	}
	s.counters[ev.ID] = counters
	return ev.ID, nil
}

// EditEvent holds the event lock while fn decides the new flags.
func (s *Store) EditEvent(ctx context.Context, id uint64, fn func(model.Event) (model.Event, error)) error {
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()
	ev, err := s.Event(ctx, id)
	if err != nil {
		return err
	}
	updated, err := fn(ev)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ev.Public, ev.Closed = updated.Public, updated.Closed
	s.events[id] = ev
	return nil
}

// ---------------------------------------------------------------------------
// users

func (s *Store) CreateUser(ctx context.Context, u model.User) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.LoginName == u.LoginName {
			return 0, repository.ErrDuplicated
		}
	}
	s.lastUserID++
	u.ID = s.lastUserID
	s.users[u.ID] = u
	return u.ID, nil
}

func (s *Store) UserByLogin(ctx context.Context, loginName string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.LoginName == loginName {
			return u, nil
		}
	}
	return model.User{}, repository.ErrUserNotFound
}

func (s *Store) UserByID(ctx context.Context, id uint64) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (s *Store) CreateAdministrator(ctx context.Context, a model.Administrator) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.admins {
		if existing.LoginName == a.LoginName {
			return 0, repository.ErrDuplicated
		}
	}
	s.lastAdminID++
	a.ID = s.lastAdminID
	s.admins[a.ID] = a
	return a.ID, nil
}

func (s *Store) AdministratorByLogin(ctx context.Context, loginName string) (model.Administrator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.admins {
		if a.LoginName == loginName {
			return a, nil
		}
	}
	return model.Administrator{}, repository.ErrUserNotFound
}

func (s *Store) AdministratorByID(ctx context.Context, id uint64) (model.Administrator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.admins[id]
	if !ok {
		return model.Administrator{}, repository.ErrUserNotFound
	}
	return a, nil
}

// ---------------------------------------------------------------------------
// history

func lastChange(r model.Reservation) time.Time {
	if r.CanceledAt != nil {
		return *r.CanceledAt
	}
	return r.ReservedAt
}

func (s *Store) userRows(userID uint64) []model.Reservation {
	var out []model.Reservation
	for _, r := range s.reservations {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}

// RecentReservations orders by last change, newest first, then by id.
func (s *Store) RecentReservations(ctx context.Context, userID uint64, limit int) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.userRows(userID)
	slices.SortFunc(rows, func(a, b model.Reservation) int {
		if c := lastChange(b).Compare(lastChange(a)); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *Store) ActiveTotalPrice(ctx context.Context, userID uint64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, r := range s.userRows(userID) {
		if r.CanceledAt != nil {
			continue
		}
		rank, _ := r.Seat()
		total += seat.Price(s.events[r.EventID].Price, rank)
	}
	return total, nil
}

// RecentEventIDs orders events by the user's latest change on them.
func (s *Store) RecentEventIDs(ctx context.Context, userID uint64, limit int) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	latest := map[uint64]time.Time{}
	for _, r := range s.userRows(userID) {
		if t := lastChange(r); t.After(latest[r.EventID]) {
			latest[r.EventID] = t
		}
	}
	ids := make([]uint64, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uint64) int {
		if c := latest[b].Compare(latest[a]); c != 0 {
			return c
		}
		return cmp.Compare(b, a)
	})
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// ---------------------------------------------------------------------------
// reports

func (s *Store) salesRows(keep func(model.Reservation) bool) []model.SalesRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.SalesRow
	for _, r := range s.reservations {
		if !keep(r) {
			continue
		}
		rank, num := r.Seat()
		out = append(out, model.SalesRow{
			ReservationID: r.ID,
			EventID:       r.EventID,
			Rank:          rank,
			Num:           num,
			Price:         seat.Price(s.events[r.EventID].Price, rank),
			UserID:        r.UserID,
			SoldAt:        r.ReservedAt,
			CanceledAt:    r.CanceledAt,
		})
	}
	slices.SortStableFunc(out, func(a, b model.SalesRow) int {
		if c := a.SoldAt.Compare(b.SoldAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ReservationID, b.ReservationID)
	})
	return out
}

func (s *Store) SalesRows(ctx context.Context, eventID uint64) ([]model.SalesRow, error) {
	return s.salesRows(func(r model.Reservation) bool { return r.EventID == eventID }), nil
}

func (s *Store) AllSalesRows(ctx context.Context) ([]model.SalesRow, error) {
	return s.salesRows(func(model.Reservation) bool { return true }), nil
}
