// Package report renders the sales ledger as CSV.
package report

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/iliyamo/sheet-reservation/internal/model"
)

// Store returns ledger rows ordered by reserved_at ascending.
type Store interface {
	SalesRows(ctx context.Context, eventID uint64) ([]model.SalesRow, error)
	AllSalesRows(ctx context.Context) ([]model.SalesRow, error)
}

// Header is the first line of every report.
var Header = []string{"reservation_id", "event_id", "rank", "num", "price", "user_id", "sold_at", "canceled_at"}

const timeLayout = "2006-01-02T15:04:05Z"

// WriteCSV writes the header followed by one line per row.  canceled_at is
// empty for active reservations.
func WriteCSV(w io.Writer, rows []model.SalesRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		canceled := ""
		if r.CanceledAt != nil {
			canceled = formatTime(*r.CanceledAt)
		}
		rec := []string{
			strconv.FormatUint(r.ReservationID, 10),
			strconv.FormatUint(r.EventID, 10),
			string(r.Rank),
			strconv.Itoa(r.Num),
			strconv.FormatInt(r.Price, 10),
			strconv.FormatUint(r.UserID, 10),
			formatTime(r.SoldAt),
			canceled,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }
