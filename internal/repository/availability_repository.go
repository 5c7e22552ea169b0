package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/sheet-reservation/internal/seat"
)

// AvailabilityRepo maintains sheet_reserved, the number of active
// reservations per (event, rank).  Writes happen only inside the
// transaction that changes the ledger.
type AvailabilityRepo struct {
	db *sql.DB
}

// NewAvailabilityRepo returns a new AvailabilityRepo bound to the given database.
func NewAvailabilityRepo(db *sql.DB) *AvailabilityRepo { return &AvailabilityRepo{db: db} }

// Counts returns the counters of an event keyed by rank.
func (r *AvailabilityRepo) Counts(ctx context.Context, eventID uint64) (map[seat.Rank]int, error) {
	return counts(ctx, r.db, eventID)
}

// CountsTx is Counts inside tx.
func (r *AvailabilityRepo) CountsTx(ctx context.Context, tx *sql.Tx, eventID uint64) (map[seat.Rank]int, error) {
	return counts(ctx, tx, eventID)
}

func counts(ctx context.Context, q querier, eventID uint64) (map[seat.Rank]int, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT `rank`, reserved FROM sheet_reserved WHERE event_id = ?", eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[seat.Rank]int, len(seat.Ranks))
	for rows.Next() {
		var (
			rank string
			n    int
		)
		if err := rows.Scan(&rank, &n); err != nil {
			return nil, err
		}
		out[seat.Rank(rank)] = n
	}
	return out, rows.Err()
}

// IncrementTx adds one to the counter.  A missing counter row means the
// event was never created through CreateTx.
func (r *AvailabilityRepo) IncrementTx(ctx context.Context, tx *sql.Tx, eventID uint64, rank seat.Rank) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE sheet_reserved SET reserved = reserved + 1 WHERE event_id = ? AND `rank` = ?",
		eventID, string(rank))
	if err != nil {
		return err
	}
	return expectOne(res, ErrEventNotFound)
}

// DecrementTx subtracts one from the counter and returns
// ErrCounterUnderflow when it is already zero.
func (r *AvailabilityRepo) DecrementTx(ctx context.Context, tx *sql.Tx, eventID uint64, rank seat.Rank) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE sheet_reserved SET reserved = reserved - 1 WHERE event_id = ? AND `rank` = ? AND reserved > 0",
		eventID, string(rank))
	if err != nil {
		return err
	}
	return expectOne(res, ErrCounterUnderflow)
}

// SetTx overwrites the counter.
func (r *AvailabilityRepo) SetTx(ctx context.Context, tx *sql.Tx, eventID uint64, rank seat.Rank, reserved int) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO sheet_reserved (event_id, `rank`, reserved) VALUES (?, ?, ?) "+
			"ON DUPLICATE KEY UPDATE reserved = VALUES(reserved)",
		eventID, string(rank), reserved)
	return err
}

func expectOne(res sql.Result, none error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return none
	}
	return nil
}
