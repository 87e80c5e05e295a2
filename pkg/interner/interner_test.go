package interner_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaelsamenezes/farol/pkg/interner"
)

const (
	defaultCap  = uint64(16)
	growthCount = 64
)

// newInterner builds an interner, optionally with the Bloom pre-filter, and
// fails the test on construction errors.
func newInterner(t *testing.T, prefilter bool) *interner.Interner {
	t.Helper()

	var opts []interner.Option
	if prefilter {
		opts = append(opts, interner.WithPrefilter(1024, 0.01))
	}

	it, err := interner.New(opts...)
	require.NoError(t, err)

	return it
}

// variants runs a subtest with and without the pre-filter, since the filter
// must not change any observable behavior.
func variants(t *testing.T, fn func(t *testing.T, it *interner.Interner)) {
	t.Helper()

	for _, tc := range []struct {
		name      string
		prefilter bool
	}{
		{name: "linear", prefilter: false},
		{name: "prefiltered", prefilter: true},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fn(t, newInterner(t, tc.prefilter))
		})
	}
}

func TestNew_InitialState(t *testing.T) {
	t.Parallel()

	it, err := interner.New()
	require.NoError(t, err)

	assert.Equal(t, uint64(0), it.Len())
	assert.Equal(t, defaultCap, it.Cap())
}

func TestNew_InvalidOptions(t *testing.T) {
	t.Parallel()

	t.Run("zero_capacity", func(t *testing.T) {
		t.Parallel()

		_, err := interner.New(interner.WithInitialCapacity(0))
		assert.ErrorIs(t, err, interner.ErrInvalidCapacity)
	})

	t.Run("bad_prefilter_rate", func(t *testing.T) {
		t.Parallel()

		_, err := interner.New(interner.WithPrefilter(100, 1.5))
		assert.Error(t, err)
	})
}

func TestIntern_FirstString(t *testing.T) {
	t.Parallel()

	variants(t, func(t *testing.T, it *interner.Interner) {
		id, err := it.Intern("hello")
		require.NoError(t, err)

		assert.Equal(t, uint64(0), id)
		assert.Equal(t, uint64(1), it.Len())
	})
}

func TestIntern_Deduplicates(t *testing.T) {
	t.Parallel()

	variants(t, func(t *testing.T, it *interner.Interner) {
		first, err := it.Intern("hello")
		require.NoError(t, err)

		second, err := it.Intern("hello")
		require.NoError(t, err)

		assert.Equal(t, uint64(0), first)
		assert.Equal(t, first, second)
		assert.Equal(t, uint64(1), it.Len())
	})
}

func TestIntern_InsertionOrder(t *testing.T) {
	t.Parallel()

	variants(t, func(t *testing.T, it *interner.Interner) {
		for i, key := range []string{"alpha", "beta", "gamma"} {
			id, err := it.Intern(key)
			require.NoError(t, err)
			assert.Equal(t, uint64(i), id)
		}

		got, ok := it.Resolve(1)
		require.True(t, ok)
		assert.Equal(t, "beta", got)
	})
}

func TestIntern_GrowthPreservesIdentifiers(t *testing.T) {
	t.Parallel()

	variants(t, func(t *testing.T, it *interner.Interner) {
		keys := make([]string, growthCount)
		for i := 0; i < growthCount; i++ {
			keys[i] = string(rune('a' + i))

			id, err := it.Intern(keys[i])
			require.NoError(t, err)
			require.Equal(t, uint64(i), id)
		}

		assert.Equal(t, uint64(growthCount), it.Len())
		assert.GreaterOrEqual(t, it.Cap(), uint64(growthCount))

		// Every identifier still resolves to its original content after
		// however many growth events occurred.
		for i, key := range keys {
			got, ok := it.Resolve(uint64(i))
			require.True(t, ok)
			assert.Equal(t, key, got)

			again, err := it.Intern(key)
			require.NoError(t, err)
			assert.Equal(t, uint64(i), again)
		}
	})
}

func TestIntern_CapacityAtLeastDoubles(t *testing.T) {
	t.Parallel()

	it, err := interner.New(interner.WithInitialCapacity(2))
	require.NoError(t, err)

	require.Equal(t, uint64(2), it.Cap())

	for i := 0; i < 3; i++ {
		_, internErr := it.Intern(fmt.Sprintf("key-%d", i))
		require.NoError(t, internErr)
	}

	assert.GreaterOrEqual(t, it.Cap(), uint64(4))
}

func TestIntern_InterleavedIdempotence(t *testing.T) {
	t.Parallel()

	variants(t, func(t *testing.T, it *interner.Interner) {
		sequence := []string{"x", "y", "x", "z", "y", "x", "w", "z"}
		distinct := map[string]uint64{}

		for _, key := range sequence {
			id, err := it.Intern(key)
			require.NoError(t, err)

			if firstID, seen := distinct[key]; seen {
				assert.Equal(t, firstID, id, "repeat of %q", key)
			} else {
				distinct[key] = id
			}
		}

		assert.Equal(t, uint64(len(distinct)), it.Len())
	})
}

func TestIntern_EmptyString(t *testing.T) {
	t.Parallel()

	variants(t, func(t *testing.T, it *interner.Interner) {
		id, err := it.Intern("")
		require.NoError(t, err)

		again, err := it.Intern("")
		require.NoError(t, err)

		assert.Equal(t, id, again)
		assert.Equal(t, uint64(1), it.Len())
	})
}

func TestStats_CountsHitsAndMisses(t *testing.T) {
	t.Parallel()

	variants(t, func(t *testing.T, it *interner.Interner) {
		for _, key := range []string{"a", "b", "a", "a", "c"} {
			_, err := it.Intern(key)
			require.NoError(t, err)
		}

		stats := it.Stats()
		assert.Equal(t, uint64(3), stats.Misses)
		assert.Equal(t, uint64(2), stats.Hits)
	})
}

func TestClose_Lifecycle(t *testing.T) {
	t.Parallel()

	it, err := interner.New()
	require.NoError(t, err)

	_, err = it.Intern("hello")
	require.NoError(t, err)

	require.NoError(t, it.Close())

	t.Run("double_close", func(t *testing.T) {
		assert.ErrorIs(t, it.Close(), interner.ErrClosed)
	})

	t.Run("intern_after_close", func(t *testing.T) {
		_, internErr := it.Intern("world")
		assert.ErrorIs(t, internErr, interner.ErrClosed)
	})

	t.Run("resolve_after_close", func(t *testing.T) {
		_, ok := it.Resolve(0)
		assert.False(t, ok)
	})

	t.Run("len_and_cap_after_close", func(t *testing.T) {
		assert.Equal(t, uint64(0), it.Len())
		assert.Equal(t, uint64(0), it.Cap())
	})
}
