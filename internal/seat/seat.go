// Package seat maps global seat positions of an event onto ranked,
// rank-local seat numbers.  Every event shares the same fixed layout of
// 1000 seats partitioned into four ranks; nothing here touches storage.
package seat

import (
	"errors"
	"fmt"
)

// Rank is a price tier partitioning an event's seat pool.
type Rank string

const (
	RankS Rank = "S"
	RankA Rank = "A"
	RankB Rank = "B"
	RankC Rank = "C"
)

// Total is the number of seats of every event.
const Total = 1000

// ErrInvalidSeat is returned when a position or rank-local number falls
// outside the layout.
var ErrInvalidSeat = errors.New("invalid seat")

// ErrInvalidRank is returned for a rank outside {S, A, B, C}.
var ErrInvalidRank = errors.New("invalid rank")

// rankInfo describes one partition of the layout.  first is the global
// position of seat number 1 of the rank.
type rankInfo struct {
	first      int
	count      int
	priceDelta int64
}

// Ranks lists every rank in layout order.
var Ranks = []Rank{RankS, RankA, RankB, RankC}

var layout = map[Rank]rankInfo{
	RankS: {first: 1, count: 50, priceDelta: 5000},
	RankA: {first: 51, count: 150, priceDelta: 3000},
	RankB: {first: 201, count: 300, priceDelta: 1000},
	RankC: {first: 501, count: 500, priceDelta: 0},
}

// Valid reports whether r is a recognized rank with at least one seat.
func (r Rank) Valid() bool {
	info, ok := layout[r]
	return ok && info.count > 0
}

// ParseRank validates a raw rank string.
func ParseRank(s string) (Rank, error) {
	r := Rank(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRank, s)
	}
	return r, nil
}

// SeatCount returns the number of seats of the rank, 0 for unknown ranks.
func SeatCount(r Rank) int { return layout[r].count }

// PriceDelta returns the amount added to an event's base price for seats of
// the rank.
func PriceDelta(r Rank) int64 { return layout[r].priceDelta }

// Price returns the full price of a seat of rank r for an event priced at base.
func Price(base int64, r Rank) int64 { return base + PriceDelta(r) }

// Bounds returns the first and last global position of the rank.
func Bounds(r Rank) (first, last int) {
	info := layout[r]
	return info.first, info.first + info.count - 1
}

// Locate converts a global position 1..Total into (rank, number).
func Locate(position int) (Rank, int, error) {
	if position < 1 || position > Total {
		return "", 0, fmt.Errorf("%w: position %d", ErrInvalidSeat, position)
	}
	for _, r := range Ranks {
		first, last := Bounds(r)
		if position <= last {
			return r, position - first + 1, nil
		}
	}
	// unreachable while layout covers 1..Total
	return "", 0, fmt.Errorf("%w: position %d", ErrInvalidSeat, position)
}

// Position converts (rank, number) into a global position.
func Position(r Rank, num int) (int, error) {
	if !r.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRank, string(r))
	}
	info := layout[r]
	if num < 1 || num > info.count {
		return 0, fmt.Errorf("%w: %s-%d", ErrInvalidSeat, r, num)
	}
	return info.first + num - 1, nil
}

// MustLocate is Locate for positions already known to be in range, such as
// those read back from the ledger.
func MustLocate(position int) (Rank, int) {
	r, n, err := Locate(position)
	if err != nil {
		panic(err)
	}
	return r, n
}
