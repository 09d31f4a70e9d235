package split

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		name     string
		total    string
		n        int
		scale    int32
		expected []string
	}{
		{
			name:     "zero-decimal remainder goes to first share",
			total:    "10000",
			n:        3,
			scale:    0,
			expected: []string{"3334", "3333", "3333"},
		},
		{
			name:     "even split has no remainder",
			total:    "9000",
			n:        3,
			scale:    0,
			expected: []string{"3000", "3000", "3000"},
		},
		{
			name:     "single participant takes everything",
			total:    "12345",
			n:        1,
			scale:    0,
			expected: []string{"12345"},
		},
		{
			name:     "two-decimal currency",
			total:    "100.01",
			n:        3,
			scale:    2,
			expected: []string{"33.35", "33.33", "33.33"},
		},
		{
			name:     "two-decimal exact split",
			total:    "0.03",
			n:        3,
			scale:    2,
			expected: []string{"0.01", "0.01", "0.01"},
		},
		{
			name:     "zero total",
			total:    "0",
			n:        4,
			scale:    0,
			expected: []string{"0", "0", "0", "0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares := Allocate(dec(tt.total), tt.n, tt.scale)
			require.Len(t, shares, len(tt.expected))
			for i, want := range tt.expected {
				assert.True(t, shares[i].Equal(dec(want)),
					"share %d: got %s, want %s", i, shares[i], want)
			}
		})
	}
}

func TestAllocateNoParticipants(t *testing.T) {
	assert.Empty(t, Allocate(dec("10000"), 0, 0))
	assert.Empty(t, Allocate(dec("10000"), -1, 0))
}

func TestAllocateSharesSumToTotal(t *testing.T) {
	totals := []string{"10000", "99999", "1", "12345678", "0.01", "777.77"}
	for _, total := range totals {
		for n := 1; n <= 9; n++ {
			for _, scale := range []int32{0, 2} {
				shares := Allocate(dec(total), n, scale)
				sum := decimal.Zero
				for _, s := range shares {
					sum = sum.Add(s)
				}
				assert.True(t, sum.Equal(dec(total)),
					"total=%s n=%d scale=%d: shares sum to %s", total, n, scale, sum)
			}
		}
	}
}

func TestAllocateNonFirstSharesNeverExceedFirst(t *testing.T) {
	shares := Allocate(dec("10001"), 4, 0)
	require.Len(t, shares, 4)
	for _, s := range shares[1:] {
		assert.True(t, s.LessThanOrEqual(shares[0]))
	}
}

func TestScaleFor(t *testing.T) {
	assert.Equal(t, int32(0), ScaleFor("KRW"))
	assert.Equal(t, int32(0), ScaleFor("JPY"))
	assert.Equal(t, int32(0), ScaleFor("VND"))
	assert.Equal(t, int32(2), ScaleFor("USD"))
	assert.Equal(t, int32(2), ScaleFor("EUR"))
}

func TestEpsilon(t *testing.T) {
	assert.True(t, Epsilon(0).Equal(dec("1")))
	assert.True(t, Epsilon(2).Equal(dec("0.01")))
}

func TestSortParticipantIDs(t *testing.T) {
	ids := []string{"p-c", "p-a", "p-b"}
	sorted := SortParticipantIDs(ids)

	assert.Equal(t, []string{"p-a", "p-b", "p-c"}, sorted)
	assert.Equal(t, []string{"p-c", "p-a", "p-b"}, ids, "input must not be mutated")
}
