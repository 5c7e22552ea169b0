// Package memstore is an in-process implementation of the engine, catalog,
// account and report stores.  It honours the same locking contract as the
// MySQL store: LockEvent blocks until the event is free, the context is
// done or the lock wait timeout elapses, and nothing a transaction writes
// is visible before it commits.
package memstore

import (
	"cmp"
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/iliyamo/sheet-reservation/internal/engine"
	"github.com/iliyamo/sheet-reservation/internal/model"
	"github.com/iliyamo/sheet-reservation/internal/repository"
	"github.com/iliyamo/sheet-reservation/internal/seat"
)

// ErrLockWaitTimeout is returned by LockEvent when the event stays locked
// for longer than the configured wait.
var ErrLockWaitTimeout = errors.New("memstore: lock wait timeout exceeded")

// Store keeps every table in memory.  The zero value is not usable; call New.
type Store struct {
	mu           sync.RWMutex
	events       map[uint64]model.Event
	counters     map[uint64]map[seat.Rank]int
	reservations []model.Reservation // commit order
	byID         map[uint64]int      // reservation id -> index in reservations
	users        map[uint64]model.User
	admins       map[uint64]model.Administrator
	lastEventID  uint64
	lastResID    uint64
	lastUserID   uint64
	lastAdminID  uint64

	lockMu sync.Mutex
	locks  map[uint64]chan struct{}

	lockWait time.Duration

	// Fault, when set, is called with the name of every transactional step
	// ("lock", "insert", "cancel", "increment", "decrement", "set",
	// "commit") and aborts the transaction with the returned error.
	Fault func(op string) error
}

// Option configures a Store.
type Option func(*Store)

// WithLockWait bounds how long LockEvent waits.  Zero waits until the
// context is done.
func WithLockWait(d time.Duration) Option { return func(s *Store) { s.lockWait = d } }

func New(opts ...Option) *Store {
	s := &Store{
		events:   map[uint64]model.Event{},
		counters: map[uint64]map[seat.Rank]int{},
		byID:     map[uint64]int{},
		users:    map[uint64]model.User{},
		admins:   map[uint64]model.Administrator{},
		locks:    map[uint64]chan struct{}{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) fault(op string) error {
	if s.Fault == nil {
		return nil
	}
	return s.Fault(op)
}

// lock acquires the per-event lock.  The returned func releases it.
func (s *Store) lock(ctx context.Context, eventID uint64) (func(), error) {
	s.lockMu.Lock()
	ch, ok := s.locks[eventID]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[eventID] = ch
	}
	s.lockMu.Unlock()

	var timeout <-chan time.Time
	if s.lockWait > 0 {
		t := time.NewTimer(s.lockWait)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout:
		return nil, ErrLockWaitTimeout
	}
}

// ---------------------------------------------------------------------------
// reads

func (s *Store) Event(ctx context.Context, id uint64) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	if !ok {
		return model.Event{}, repository.ErrEventNotFound
	}
	return ev, nil
}

func (s *Store) Events(ctx context.Context) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Event, 0, len(s.events))
	for _, id := range slices.Sorted(maps.Keys(s.events)) {
		out = append(out, s.events[id])
	}
	return out, nil
}

func (s *Store) ReservedCounts(ctx context.Context, eventID uint64) (map[seat.Rank]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.counters[eventID]), nil
}

func (s *Store) ActiveReservations(ctx context.Context, eventID uint64) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active(eventID), nil
}

// Seating holds the read lock across both reads; commits take the write lock.
func (s *Store) Seating(ctx context.Context, eventID uint64) (map[seat.Rank]int, []model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.counters[eventID]), s.active(eventID), nil
}

// active must be called with mu held.
func (s *Store) active(eventID uint64) []model.Reservation {
	var out []model.Reservation
	for _, r := range s.reservations {
		if r.EventID == eventID && r.CanceledAt == nil {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b model.Reservation) int { return cmp.Compare(a.SheetID, b.SheetID) })
	return out
}

// Ledger returns every row of an event, canceled ones included, in id order.
func (s *Store) Ledger(eventID uint64) []model.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Reservation
	for _, r := range s.reservations {
		if r.EventID == eventID {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, byReservationID)
	return out
}

func byReservationID(a, b model.Reservation) int { return cmp.Compare(a.ID, b.ID) }

// ---------------------------------------------------------------------------
// transactions

type counterKey struct {
	event uint64
	rank  seat.Rank
}

type tx struct {
	s        *Store
	held     map[uint64]func()
	inserted []model.Reservation
	canceled map[uint64]time.Time
	delta    map[counterKey]int
	set      map[counterKey]int
}

// WithTx runs fn in a transaction.  Event locks taken by fn are released
// after commit or rollback.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx engine.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := &tx{
		s:        s,
		held:     map[uint64]func(){},
		canceled: map[uint64]time.Time{},
		delta:    map[counterKey]int{},
		set:      map[counterKey]int{},
	}
	defer t.release()
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := s.fault("commit"); err != nil {
		return err
	}
	t.commit()
	return nil
}

func (t *tx) release() {
	for _, unlock := range t.held {
		unlock()
	}
}

func (t *tx) commit() {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, at := range t.canceled {
		s.reservations[s.byID[id]].CanceledAt = &at
	}
	for _, r := range t.inserted {
		s.byID[r.ID] = len(s.reservations)
		s.reservations = append(s.reservations, r)
	}
	for k, n := range t.set {
		s.counters[k.event][k.rank] = n
	}
	for k, d := range t.delta {
		s.counters[k.event][k.rank] += d
	}
}

func (t *tx) LockEvent(ctx context.Context, eventID uint64) (model.Event, error) {
	if err := t.s.fault("lock"); err != nil {
		return model.Event{}, err
	}
	if _, ok := t.held[eventID]; !ok {
		unlock, err := t.s.lock(ctx, eventID)
		if err != nil {
			return model.Event{}, err
		}
		t.held[eventID] = unlock
	}
	ev, err := t.s.Event(ctx, eventID)
	if err != nil {
		t.held[eventID]()
		delete(t.held, eventID)
		return model.Event{}, err
	}
	return ev, nil
}

// active reports whether r is active as seen by this transaction.
func (t *tx) active(r model.Reservation) bool {
	if r.CanceledAt != nil {
		return false
	}
	_, gone := t.canceled[r.ID]
	return !gone
}

func (t *tx) rows() []model.Reservation {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	out := slices.Clone(t.s.reservations)
	return append(out, t.inserted...)
}

func (t *tx) ActiveSheets(ctx context.Context, eventID uint64, first, last int) ([]int, error) {
	var out []int
	for _, r := range t.rows() {
		if r.EventID == eventID && r.SheetID >= first && r.SheetID <= last && t.active(r) {
			out = append(out, r.SheetID)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (t *tx) InsertReservation(ctx context.Context, r *model.Reservation) error {
	if err := t.s.fault("insert"); err != nil {
		return err
	}
	// ids of rolled back rows are not reused, as with AUTO_INCREMENT
	t.s.mu.Lock()
	t.s.lastResID++
	r.ID = t.s.lastResID
	t.s.mu.Unlock()
	row := *r
	row.CanceledAt = nil
	t.inserted = append(t.inserted, row)
	return nil
}

func (t *tx) ActiveReservation(ctx context.Context, eventID uint64, sheetID int) (*model.Reservation, error) {
	for _, r := range t.rows() {
		if r.EventID == eventID && r.SheetID == sheetID && t.active(r) {
			return &r, nil
		}
	}
	return nil, nil
}

func (t *tx) CancelReservation(ctx context.Context, reservationID uint64, at time.Time) error {
	if err := t.s.fault("cancel"); err != nil {
		return err
	}
	for i, r := range t.inserted {
		if r.ID == reservationID {
			t.inserted[i].CanceledAt = &at
			return nil
		}
	}
	t.canceled[reservationID] = at
	return nil
}

// counter returns the value of (event, rank) as seen by this transaction.
func (t *tx) counter(k counterKey) (int, bool) {
	if n, ok := t.set[k]; ok {
		return n + t.delta[k], true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	ranks, ok := t.s.counters[k.event]
	if !ok {
		return 0, false
	}
	n, ok := ranks[k.rank]
	return n + t.delta[k], ok
}

func (t *tx) IncrementReserved(ctx context.Context, eventID uint64, rank seat.Rank) error {
	if err := t.s.fault("increment"); err != nil {
		return err
	}
	k := counterKey{eventID, rank}
	if _, ok := t.counter(k); !ok {
		return repository.ErrEventNotFound
	}
	t.delta[k]++
	return nil
}

func (t *tx) DecrementReserved(ctx context.Context, eventID uint64, rank seat.Rank) error {
	if err := t.s.fault("decrement"); err != nil {
		return err
	}
	k := counterKey{eventID, rank}
	n, ok := t.counter(k)
	if !ok || n <= 0 {
		return repository.ErrCounterUnderflow
	}
	t.delta[k]--
	return nil
}

func (t *tx) SetReserved(ctx context.Context, eventID uint64, rank seat.Rank, reserved int) error {
	if err := t.s.fault("set"); err != nil {
		return err
	}
	k := counterKey{eventID, rank}
	if _, ok := t.counter(k); !ok {
		return repository.ErrEventNotFound
	}
	t.set[k] = reserved
	delete(t.delta, k)
	return nil
}
