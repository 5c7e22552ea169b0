package seat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutCoversAllSeats(t *testing.T) {
	total := 0
	for _, r := range Ranks {
		total += SeatCount(r)
	}
	assert.Equal(t, Total, total)
}

func TestLocateBoundaries(t *testing.T) {
	cases := []struct {
		pos  int
		rank Rank
		num  int
	}{
		{1, RankS, 1},
		{50, RankS, 50},
		{51, RankA, 1},
		{200, RankA, 150},
		{201, RankB, 1},
		{500, RankB, 300},
		{501, RankC, 1},
		{1000, RankC, 500},
	}
	for _, tc := range cases {
		r, n, err := Locate(tc.pos)
		require.NoError(t, err)
		assert.Equal(t, tc.rank, r, "position %d", tc.pos)
		assert.Equal(t, tc.num, n, "position %d", tc.pos)
	}
}

func TestLocateOutOfRange(t *testing.T) {
	for _, p := range []int{0, -1, 1001} {
		_, _, err := Locate(p)
		assert.ErrorIs(t, err, ErrInvalidSeat)
	}
}

func TestPositionRoundTrip(t *testing.T) {
	for p := 1; p <= Total; p++ {
		r, n, err := Locate(p)
		require.NoError(t, err)
		back, err := Position(r, n)
		require.NoError(t, err)
		require.Equal(t, p, back)
	}
}

func TestPositionErrors(t *testing.T) {
	_, err := Position(RankS, 51)
	assert.ErrorIs(t, err, ErrInvalidSeat)
	_, err = Position(RankC, 0)
	assert.ErrorIs(t, err, ErrInvalidSeat)
	_, err = Position(Rank("Z"), 1)
	assert.ErrorIs(t, err, ErrInvalidRank)
}

func TestParseRank(t *testing.T) {
	r, err := ParseRank("B")
	require.NoError(t, err)
	assert.Equal(t, RankB, r)

	_, err = ParseRank("Z")
	assert.ErrorIs(t, err, ErrInvalidRank)
	_, err = ParseRank("s")
	assert.ErrorIs(t, err, ErrInvalidRank)
}

func TestPrice(t *testing.T) {
	assert.Equal(t, int64(6000), Price(1000, RankS))
	assert.Equal(t, int64(4000), Price(1000, RankA))
	assert.Equal(t, int64(2000), Price(1000, RankB))
	assert.Equal(t, int64(1000), Price(1000, RankC))
}
