package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/sheet-reservation/internal/model"
	"github.com/iliyamo/sheet-reservation/internal/seat"
)

// EventRepo reads and writes the events table.  Creating an event also
// seeds its availability counters so the two never disagree on which
// events exist.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = "id, title, public_fg, closed_fg, price"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (model.Event, error) {
	var ev model.Event
	err := row.Scan(&ev.ID, &ev.Title, &ev.Public, &ev.Closed, &ev.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, ErrEventNotFound
	}
	return ev, err
}

// GetByID returns the event or ErrEventNotFound.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (model.Event, error) {
	return scanEvent(r.db.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id = ?", id))
}

// List returns every event ordered by id.
func (r *EventRepo) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+eventColumns+" FROM events ORDER BY id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// LockTx takes the exclusive row lock of the event for the lifetime of tx.
// Every reserve and cancel of the event queues behind it.
func (r *EventRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Event, error) {
	return scanEvent(tx.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id = ? FOR UPDATE", id))
}

// CreateTx inserts the event and one zero counter row per rank.
func (r *EventRepo) CreateTx(ctx context.Context, tx *sql.Tx, ev model.Event) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO events (title, public_fg, closed_fg, price) VALUES (?, ?, ?, ?)",
		ev.Title, ev.Public, ev.Closed, ev.Price)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for _, rank := range seat.Ranks {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO sheet_reserved (event_id, `rank`, reserved) VALUES (?, ?, 0)",
			id, string(rank)); err != nil {
			return 0, err
		}
	}
	return uint64(id), nil
}

// UpdateFlagsTx stores the public and closed flags of an event.
func (r *EventRepo) UpdateFlagsTx(ctx context.Context, tx *sql.Tx, id uint64, public, closed bool) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE events SET public_fg = ?, closed_fg = ? WHERE id = ?", public, closed, id)
	return err
}
