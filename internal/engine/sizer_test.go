package engine

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSizer_SizeEntry(t *testing.T) {
	z := NewSizer(testSizing())
	assert.Equal(t, "285000", z.SizeEntry(1000, 100, 3).String())
	assert.Equal(t, "0", z.SizeEntry(0, 100, 3).String())

	for _, tc := range []struct{ free, price, lev float64 }{
		{0.0123, 30123.5, 5},
		{1.5, 29999.99, 1},
		{0.00041, 61000, 10},
		{3, 0.5, 2},
	} {
		got := z.SizeEntry(tc.free, tc.price, tc.lev).InexactFloat64()
		want := math.Floor(tc.free * tc.price * tc.lev * 0.95)
		assert.InDelta(t, want, got, 1, "free=%v price=%v lev=%v", tc.free, tc.price, tc.lev)
		assert.LessOrEqual(t, got, tc.free*tc.price*tc.lev)
		assert.Equal(t, got, math.Floor(got))
	}
}

func TestSizer_SizeFullExit(t *testing.T) {
	z := NewSizer(testSizing())
	assert.Equal(t, "315", z.SizeFullExit(3, 100, 1).String())
	// ceil
	assert.Equal(t, "106", z.SizeFullExit(1, 100.5, 1).String())
}

func TestSizer_SizeReversal(t *testing.T) {
	z := NewSizer(testSizing())
	assert.Equal(t, "525", z.SizeReversal(3, 2, 100, 1).String())

	s := testSizing()
	s.ReversalOvershoot = 1.2
	assert.Equal(t, "600", NewSizer(s).SizeReversal(3, 2, 100, 1).String())
}

func TestSizer_QtyStep(t *testing.T) {
	s := testSizing()
	s.QtyStep = 0.001
	z := NewSizer(s)
	assert.Equal(t, "0.123", z.SizeEntry(0.0000432, 3000, 1).String())
	assert.Equal(t, "0.137", z.SizeFullExit(0.0000432, 3000, 1).String())
}

func TestSizer_SplitLadder(t *testing.T) {
	z := NewSizer(testSizing())

	tests := []struct {
		total int64
		n     int
		want  []string
	}{
		{300, 3, []string{"100", "100", "100"}},
		{100, 3, []string{"33", "33", "34"}},
		{2, 3, []string{"0", "0", "2"}},
		{7, 1, []string{"7"}},
	}
	for _, tt := range tests {
		got := z.SplitLadder(decimal.NewFromInt(tt.total), tt.n)
		strs := make([]string, len(got))
		for i, q := range got {
			strs[i] = q.String()
		}
		assert.Equal(t, tt.want, strs)
	}
	assert.Nil(t, z.SplitLadder(decimal.NewFromInt(10), 0))
}

func TestSizer_Filled(t *testing.T) {
	z := NewSizer(testSizing())
	assert.False(t, z.Filled(Snapshot{FreeQty: 1000, UsedQty: 0}))
	assert.False(t, z.Filled(Snapshot{FreeQty: 100, UsedQty: 900}))
	assert.True(t, z.Filled(Snapshot{FreeQty: 99, UsedQty: 901}))
	assert.False(t, z.Filled(Snapshot{}))
}

func TestSizer_Price(t *testing.T) {
	z := NewSizer(testSizing())
	assert.Equal(t, "102.00", z.Price(100, above(0.02)))
	assert.Equal(t, "99.00", z.Price(100, below(0.01)))
	assert.Equal(t, "30149.99", z.Price(30000, above(0.0049997)))
}
