// Package sqlstore adapts the MySQL repositories to the stores consumed by
// the engine, catalog, account and report packages.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/sheet-reservation/internal/engine"
	"github.com/iliyamo/sheet-reservation/internal/model"
	"github.com/iliyamo/sheet-reservation/internal/repository"
	"github.com/iliyamo/sheet-reservation/internal/seat"
)

// Store is backed by a single *sql.DB.  Every transaction runs at the
// server's default isolation (REPEATABLE READ); exclusion comes from the
// SELECT ... FOR UPDATE on the event row, not from the isolation level.
type Store struct {
	db           *sql.DB
	events       *repository.EventRepo
	reservations *repository.ReservationRepo
	counters     *repository.AvailabilityRepo
	users        *repository.UserRepo
	lockWait     time.Duration
	log          *zap.Logger
}

// New wraps db.  lockWait, when positive, is applied to every transaction
// as innodb_lock_wait_timeout so a caller stuck behind a busy event gives
// up with error 1205 instead of waiting for the server default.
func New(db *sql.DB, lockWait time.Duration, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		db:           db,
		events:       repository.NewEventRepo(db),
		reservations: repository.NewReservationRepo(db),
		counters:     repository.NewAvailabilityRepo(db),
		users:        repository.NewUserRepo(db),
		lockWait:     lockWait,
		log:          log,
	}
}

// WithTx runs fn in one database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx engine.Tx) error) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return fn(ctx, &sqlTx{s: s, tx: tx})
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if s.lockWait > 0 {
		secs := int(s.lockWait / time.Second)
		if secs < 1 {
			secs = 1
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", secs)); err != nil {
			return err
		}
	}
	if err := fn(tx); err != nil {
		if repository.IsTransient(err) {
			s.log.Debug("transaction aborted by server", zap.Error(err))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ---------------------------------------------------------------------------
// engine.Reader

func (s *Store) Event(ctx context.Context, id uint64) (model.Event, error) {
	return s.events.GetByID(ctx, id)
}

func (s *Store) Events(ctx context.Context) ([]model.Event, error) { return s.events.List(ctx) }

func (s *Store) ReservedCounts(ctx context.Context, eventID uint64) (map[seat.Rank]int, error) {
	return s.counters.Counts(ctx, eventID)
}

func (s *Store) ActiveReservations(ctx context.Context, eventID uint64) ([]model.Reservation, error) {
	return s.reservations.ActiveByEvent(ctx, eventID)
}

// Seating reads both tables in one read-only transaction.  InnoDB pins the
// snapshot at the first read under REPEATABLE READ, so a reservation that
// commits between the two queries is invisible to both.
func (s *Store) Seating(ctx context.Context, eventID uint64) (map[seat.Rank]int, []model.Reservation, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	counts, err := s.counters.CountsTx(ctx, tx, eventID)
	if err != nil {
		return nil, nil, err
	}
	active, err := s.reservations.ActiveByEventTx(ctx, tx, eventID)
	if err != nil {
		return nil, nil, err
	}
	return counts, active, tx.Commit()
}

// ---------------------------------------------------------------------------
// engine.Tx

type sqlTx struct {
	s  *Store
	tx *sql.Tx
}

func (t *sqlTx) LockEvent(ctx context.Context, eventID uint64) (model.Event, error) {
	return t.s.events.LockTx(ctx, t.tx, eventID)
}

func (t *sqlTx) ActiveSheets(ctx context.Context, eventID uint64, first, last int) ([]int, error) {
	return t.s.reservations.ActiveSheetsTx(ctx, t.tx, eventID, first, last)
}

func (t *sqlTx) InsertReservation(ctx context.Context, r *model.Reservation) error {
	return t.s.reservations.InsertTx(ctx, t.tx, r)
}

func (t *sqlTx) ActiveReservation(ctx context.Context, eventID uint64, sheetID int) (*model.Reservation, error) {
	return t.s.reservations.ActiveBySheetTx(ctx, t.tx, eventID, sheetID)
}

func (t *sqlTx) CancelReservation(ctx context.Context, reservationID uint64, at time.Time) error {
	return t.s.reservations.CancelTx(ctx, t.tx, reservationID, at)
}

func (t *sqlTx) IncrementReserved(ctx context.Context, eventID uint64, rank seat.Rank) error {
	return t.s.counters.IncrementTx(ctx, t.tx, eventID, rank)
}

func (t *sqlTx) DecrementReserved(ctx context.Context, eventID uint64, rank seat.Rank) error {
	return t.s.counters.DecrementTx(ctx, t.tx, eventID, rank)
}

func (t *sqlTx) SetReserved(ctx context.Context, eventID uint64, rank seat.Rank, reserved int) error {
	return t.s.counters.SetTx(ctx, t.tx, eventID, rank, reserved)
}

// ---------------------------------------------------------------------------
// catalog.Store

func (s *Store) CreateEvent(ctx context.Context, ev model.Event) (uint64, error) {
	var id uint64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = s.events.CreateTx(ctx, tx, ev)
		return err
	})
	return id, err
}

func (s *Store) EditEvent(ctx context.Context, id uint64, fn func(model.Event) (model.Event, error)) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		ev, err := s.events.LockTx(ctx, tx, id)
		if err != nil {
			return err
		}
		updated, err := fn(ev)
		if err != nil {
			return err
		}
		return s.events.UpdateFlagsTx(ctx, tx, id, updated.Public, updated.Closed)
	})
}

// ---------------------------------------------------------------------------
// account.Store

func (s *Store) CreateUser(ctx context.Context, u model.User) (uint64, error) {
	return s.users.Create(ctx, u)
}

func (s *Store) UserByLogin(ctx context.Context, loginName string) (model.User, error) {
	return s.users.GetByLogin(ctx, loginName)
}

func (s *Store) UserByID(ctx context.Context, id uint64) (model.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Store) CreateAdministrator(ctx context.Context, a model.Administrator) (uint64, error) {
	return s.users.CreateAdministrator(ctx, a)
}

func (s *Store) AdministratorByLogin(ctx context.Context, loginName string) (model.Administrator, error) {
	return s.users.GetAdministratorByLogin(ctx, loginName)
}

func (s *Store) AdministratorByID(ctx context.Context, id uint64) (model.Administrator, error) {
	return s.users.GetAdministratorByID(ctx, id)
}

func (s *Store) RecentReservations(ctx context.Context, userID uint64, limit int) ([]model.Reservation, error) {
	return s.reservations.RecentByUser(ctx, userID, limit)
}

func (s *Store) ActiveTotalPrice(ctx context.Context, userID uint64) (int64, error) {
	return s.reservations.ActiveTotalPrice(ctx, userID)
}

func (s *Store) RecentEventIDs(ctx context.Context, userID uint64, limit int) ([]uint64, error) {
	return s.reservations.RecentEventIDs(ctx, userID, limit)
}

// ---------------------------------------------------------------------------
// report.Store

func (s *Store) SalesRows(ctx context.Context, eventID uint64) ([]model.SalesRow, error) {
	return s.reservations.SalesByEvent(ctx, eventID)
}

func (s *Store) AllSalesRows(ctx context.Context) ([]model.SalesRow, error) {
	return s.reservations.Sales(ctx)
}
