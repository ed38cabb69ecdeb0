package position

import (
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBetweenOpenBounds(t *testing.T) {
	first := Between("", "")
	require.True(t, Valid(first))

	after := Between(first, "")
	before := Between("", first)

	assert.Less(t, first, after)
	assert.Less(t, before, first)
	assert.True(t, Valid(after))
	assert.True(t, Valid(before))
}

func TestBetweenAdjacentDigits(t *testing.T) {
	cases := []struct {
		prev, next string
	}{
		{"V", "W"},
		{"V", "V1"},
		{"0V", "1"},
		{"", "1"},
		{"", "01"},
		{"y", "z"},
		{"zz", "zzV"},
		{"A", "AzzzzV"},
	}

	for _, tc := range cases {
		got := Between(tc.prev, tc.next)
		assert.Less(t, tc.prev, got, "prev=%q next=%q", tc.prev, tc.next)
		assert.Less(t, got, tc.next, "prev=%q next=%q", tc.prev, tc.next)
		assert.True(t, Valid(got), "got %q", got)
	}
}

func TestBetweenIsDeterministic(t *testing.T) {
	assert.Equal(t, Between("a", "b"), Between("a", "b"))
	assert.Equal(t, Between("", "k"), Between("", "k"))
}

func TestBetweenInvertedBoundsStillAfterPrev(t *testing.T) {
	got := Between("k", "k")
	assert.Greater(t, got, "k")

	got = Between("m", "c")
	assert.Greater(t, got, "m")
}

func TestBetweenRandomInsertsKeepOrder(t *testing.T) {
	//nolint:gosec // deterministic test data
	rng := rand.New(rand.NewPCG(1, 2))

	keys := []string{Between("", "")}
	for range 2000 {
		i := rng.IntN(len(keys) + 1)

		var prev, next string
		if i > 0 {
			prev = keys[i-1]
		}
		if i < len(keys) {
			next = keys[i]
		}

		key := Between(prev, next)
		require.True(t, Valid(key), "invalid key %q", key)
		if prev != "" {
			require.Less(t, prev, key)
		}
		if next != "" {
			require.Less(t, key, next)
		}

		keys = append(keys, "")
		copy(keys[i+1:], keys[i:])
		keys[i] = key
	}

	assert.True(t, sort.StringsAreSorted(keys))
}

func TestAppendGrowthIsLogarithmic(t *testing.T) {
	cases := []struct {
		start string
		limit int
	}{
		{"", 5},
		{"k", 13},
		{"V", 8},
	}

	for _, tc := range cases {
		key := tc.start
		for range 50000 {
			next := Between(key, "")
			require.Less(t, key, next)
			key = next
		}
		assert.LessOrEqual(t, len(key), tc.limit, "append from %q", tc.start)

		key = tc.start
		for range 50000 {
			prev := Between("", key)
			if key != "" {
				require.Less(t, prev, key)
			}
			key = prev
		}
		assert.LessOrEqual(t, len(key), tc.limit, "prepend from %q", tc.start)
	}
}

func TestIntegerKeysStep(t *testing.T) {
	assert.Equal(t, "aV", Between("", ""))
	assert.Equal(t, "aW", Between("aV", ""))
	assert.Equal(t, "b01", Between("az", ""))
	assert.Equal(t, "a1", Between("", "a2"))
	assert.Equal(t, "Zz", Between("", "a1"))
	assert.Equal(t, "aV", Between("", "aVV"))
	assert.Equal(t, "Yzz", Between("", "Z1"))
}

func TestNBetween(t *testing.T) {
	cases := []struct {
		name       string
		prev, next string
		n          int
	}{
		{"open", "", "", 10},
		{"after", "V", "", 25},
		{"before", "", "V", 25},
		{"bounded", "V", "W", 50},
		{"single", "a", "b", 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			keys := NBetween(tc.prev, tc.next, tc.n)
			require.Len(t, keys, tc.n)

			for i, key := range keys {
				assert.True(t, Valid(key), "invalid key %q", key)
				if tc.prev != "" {
					assert.Less(t, tc.prev, key)
				}
				if tc.next != "" {
					assert.Less(t, key, tc.next)
				}
				if i > 0 {
					assert.Less(t, keys[i-1], key)
				}
			}
		})
	}
}

func TestNBetweenZero(t *testing.T) {
	assert.Empty(t, NBetween("a", "b", 0))
	assert.Empty(t, NBetween("a", "b", -3))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("V"))
	assert.True(t, Valid("0V"))
	assert.False(t, Valid(""))
	assert.False(t, Valid("V0"))
	assert.False(t, Valid("a-b"))
}
