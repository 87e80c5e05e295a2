package strpool_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaelsamenezes/farol/pkg/strpool"
)

func TestNew_InitialState(t *testing.T) {
	t.Parallel()

	pool := strpool.New()

	assert.Equal(t, uint32(0), pool.Len())
	assert.Positive(t, pool.Reserved())
}

func TestAdd_AssignsSequentialIdentifiers(t *testing.T) {
	t.Parallel()

	pool := strpool.New()

	for i, s := range []string{"My str 1", "My str 2", "My str 3"} {
		id, err := pool.Add(s)
		require.NoError(t, err)
		assert.Equal(t, uint32(i), id)
	}

	assert.Equal(t, uint32(3), pool.Len())
}

func TestGet_RoundTrips(t *testing.T) {
	t.Parallel()

	pool := strpool.New()

	want := []string{"My str 1", "", "another string"}
	for _, s := range want {
		_, err := pool.Add(s)
		require.NoError(t, err)
	}

	for i, s := range want {
		got, err := pool.Get(uint32(i))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestGet_OutOfRange(t *testing.T) {
	t.Parallel()

	pool := strpool.New()

	_, err := pool.Get(0)
	assert.ErrorIs(t, err, strpool.ErrOutOfRange)
}

func TestAdd_TruncatesOversizedStrings(t *testing.T) {
	t.Parallel()

	pool := strpool.New()
	long := strings.Repeat("x", strpool.SlotSize*2)

	id, err := pool.Add(long)
	require.NoError(t, err)

	got, err := pool.Get(id)
	require.NoError(t, err)
	assert.Equal(t, long[:strpool.SlotSize], got)
}

func TestAdd_PoolFull(t *testing.T) {
	t.Parallel()

	pool := strpool.New()

	for i := uint32(0); i < pool.Reserved(); i++ {
		_, err := pool.Add("s")
		require.NoError(t, err)
	}

	_, err := pool.Add("one too many")
	assert.ErrorIs(t, err, strpool.ErrPoolFull)
}

func TestFree_ResetsState(t *testing.T) {
	t.Parallel()

	pool := strpool.New()

	_, err := pool.Add("My str 1")
	require.NoError(t, err)

	pool.Free()

	assert.Equal(t, uint32(0), pool.Len())
	assert.Equal(t, uint32(0), pool.Reserved())

	_, err = pool.Add("after free")
	assert.ErrorIs(t, err, strpool.ErrPoolFull)

	_, err = pool.Get(0)
	assert.ErrorIs(t, err, strpool.ErrOutOfRange)
}
