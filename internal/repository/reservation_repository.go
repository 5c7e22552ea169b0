package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/sheet-reservation/internal/model"
	"github.com/iliyamo/sheet-reservation/internal/seat"
)

// ReservationRepo reads and appends to the reservations ledger.  Rows are
// never deleted; a cancellation stamps canceled_at.  All timestamps are
// stored in UTC.
//
// The composite index (event_id, canceled_at, sheet_id) serves both the
// free seat scan of a rank and the active row lookup of a single seat.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = "id, event_id, sheet_id, user_id, reserved_at, canceled_at"

func scanReservation(row rowScanner) (model.Reservation, error) {
	var (
		r        model.Reservation
		canceled sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.EventID, &r.SheetID, &r.UserID, &r.ReservedAt, &canceled); err != nil {
		return model.Reservation{}, err
	}
	r.ReservedAt = r.ReservedAt.UTC()
	if canceled.Valid {
		t := canceled.Time.UTC()
		r.CanceledAt = &t
	}
	return r, nil
}

func collectReservations(rows *sql.Rows) ([]model.Reservation, error) {
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ActiveByEvent returns the active rows of an event ordered by sheet id.
func (r *ReservationRepo) ActiveByEvent(ctx context.Context, eventID uint64) ([]model.Reservation, error) {
	return activeByEvent(ctx, r.db, eventID)
}

// ActiveByEventTx is ActiveByEvent inside tx.
func (r *ReservationRepo) ActiveByEventTx(ctx context.Context, tx *sql.Tx, eventID uint64) ([]model.Reservation, error) {
	return activeByEvent(ctx, tx, eventID)
}

func activeByEvent(ctx context.Context, q querier, eventID uint64) ([]model.Reservation, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE event_id = ? AND canceled_at IS NULL ORDER BY sheet_id ASC",
		eventID)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

// ActiveSheetsTx returns the reserved sheet ids of [first, last].
func (r *ReservationRepo) ActiveSheetsTx(ctx context.Context, tx *sql.Tx, eventID uint64, first, last int) ([]int, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT sheet_id FROM reservations WHERE event_id = ? AND canceled_at IS NULL AND sheet_id BETWEEN ? AND ? ORDER BY sheet_id ASC",
		eventID, first, last)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// InsertTx appends an active row and populates res.ID.
func (r *ReservationRepo) InsertTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	result, err := tx.ExecContext(ctx,
		"INSERT INTO reservations (event_id, sheet_id, user_id, reserved_at) VALUES (?, ?, ?, ?)",
		res.EventID, res.SheetID, res.UserID, res.ReservedAt.UTC())
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// ActiveBySheetTx returns the active row of a seat locked for update, or
// nil when the seat is free.
func (r *ReservationRepo) ActiveBySheetTx(ctx context.Context, tx *sql.Tx, eventID uint64, sheetID int) (*model.Reservation, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE event_id = ? AND sheet_id = ? AND canceled_at IS NULL LIMIT 1 FOR UPDATE",
		eventID, sheetID)
	if err != nil {
		return nil, err
	}
	found, err := collectReservations(rows)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return &found[0], nil
}

// CancelTx stamps canceled_at on an active row.
func (r *ReservationRepo) CancelTx(ctx context.Context, tx *sql.Tx, id uint64, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE reservations SET canceled_at = ? WHERE id = ? AND canceled_at IS NULL", at.UTC(), id)
	if err != nil {
		return err
	}
	return expectOne(res, ErrNotActive)
}

// RecentByUser returns the user's rows, most recently changed first.
func (r *ReservationRepo) RecentByUser(ctx context.Context, userID uint64, limit int) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE user_id = ? "+
			"ORDER BY COALESCE(canceled_at, reserved_at) DESC, id DESC LIMIT ?",
		userID, limit)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

// ActiveTotalPrice sums the price of every active reservation of the user.
// Rank deltas come from the seat layout, not from a table.
func (r *ReservationRepo) ActiveTotalPrice(ctx context.Context, userID uint64) (int64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT r.sheet_id, e.price FROM reservations r INNER JOIN events e ON e.id = r.event_id "+
			"WHERE r.user_id = ? AND r.canceled_at IS NULL",
		userID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	var total int64
	for rows.Next() {
		var (
			sheetID int
			base    int64
		)
		if err := rows.Scan(&sheetID, &base); err != nil {
			return 0, err
		}
		rank, _, err := seat.Locate(sheetID)
		if err != nil {
			return 0, err
		}
		total += seat.Price(base, rank)
	}
	return total, rows.Err()
}

// RecentEventIDs returns the events the user touched most recently.
func (r *ReservationRepo) RecentEventIDs(ctx context.Context, userID uint64, limit int) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT event_id FROM reservations WHERE user_id = ? GROUP BY event_id "+
			"ORDER BY MAX(COALESCE(canceled_at, reserved_at)) DESC, event_id DESC LIMIT ?",
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

const salesQuery = "SELECT r.id, r.event_id, r.sheet_id, r.user_id, r.reserved_at, r.canceled_at, e.price " +
	"FROM reservations r INNER JOIN events e ON e.id = r.event_id"

// SalesByEvent returns the report rows of one event in sale order.
func (r *ReservationRepo) SalesByEvent(ctx context.Context, eventID uint64) ([]model.SalesRow, error) {
	return r.sales(ctx, salesQuery+" WHERE r.event_id = ? ORDER BY r.reserved_at ASC, r.id ASC", eventID)
}

// Sales returns the report rows of every event in sale order.
func (r *ReservationRepo) Sales(ctx context.Context) ([]model.SalesRow, error) {
	return r.sales(ctx, salesQuery+" ORDER BY r.reserved_at ASC, r.id ASC")
}

func (r *ReservationRepo) sales(ctx context.Context, q string, args ...any) ([]model.SalesRow, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.SalesRow
	for rows.Next() {
		var (
			row      model.SalesRow
			sheetID  int
			base     int64
			canceled sql.NullTime
		)
		if err := rows.Scan(&row.ReservationID, &row.EventID, &sheetID, &row.UserID, &row.SoldAt, &canceled, &base); err != nil {
			return nil, err
		}
		rank, num, err := seat.Locate(sheetID)
		if err != nil {
			return nil, err
		}
		row.Rank, row.Num, row.Price = rank, num, seat.Price(base, rank)
		row.SoldAt = row.SoldAt.UTC()
		if canceled.Valid {
			t := canceled.Time.UTC()
			row.CanceledAt = &t
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
