package bloom_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaelsamenezes/farol/pkg/alg/bloom"
)

const (
	smallN     = uint(1000)
	standardFP = 0.01
	fpTestN    = uint(10_000)
	fpProbeN   = 20_000
	fpMargin   = 1.5 // Allow 50 percent above the configured FP rate.
)

func TestNewWithEstimates_EdgeCases(t *testing.T) {
	t.Parallel()

	t.Run("zero_n_returns_error", func(t *testing.T) {
		t.Parallel()

		_, err := bloom.NewWithEstimates(0, standardFP)
		assert.ErrorIs(t, err, bloom.ErrZeroN)
	})

	t.Run("fp_out_of_range_returns_error", func(t *testing.T) {
		t.Parallel()

		for _, fp := range []float64{0, 1, -0.5, 2} {
			_, err := bloom.NewWithEstimates(smallN, fp)
			assert.ErrorIs(t, err, bloom.ErrInvalidFP)
		}
	})

	t.Run("valid_parameters", func(t *testing.T) {
		t.Parallel()

		f, err := bloom.NewWithEstimates(smallN, standardFP)
		require.NoError(t, err)
		assert.Positive(t, f.BitCount())
		assert.Positive(t, f.HashCount())
	})
}

func TestFilter_NoFalseNegatives(t *testing.T) {
	t.Parallel()

	f, err := bloom.NewWithEstimates(smallN, standardFP)
	require.NoError(t, err)

	for i := 0; i < int(smallN); i++ {
		f.Add(fmt.Appendf(nil, "element-%d", i))
	}

	for i := 0; i < int(smallN); i++ {
		assert.True(t, f.Test(fmt.Appendf(nil, "element-%d", i)))
	}
}

func TestFilter_FalsePositiveRateWithinMargin(t *testing.T) {
	t.Parallel()

	f, err := bloom.NewWithEstimates(fpTestN, standardFP)
	require.NoError(t, err)

	for i := 0; i < int(fpTestN); i++ {
		f.Add(fmt.Appendf(nil, "member-%d", i))
	}

	falsePositives := 0
	for i := 0; i < fpProbeN; i++ {
		if f.Test(fmt.Appendf(nil, "absent-%d", i)) {
			falsePositives++
		}
	}

	observed := float64(falsePositives) / float64(fpProbeN)
	assert.LessOrEqual(t, observed, standardFP*fpMargin)
}

func TestFilter_TestAndAdd(t *testing.T) {
	t.Parallel()

	f, err := bloom.NewWithEstimates(smallN, standardFP)
	require.NoError(t, err)

	assert.False(t, f.TestAndAdd([]byte("hello")))
	assert.True(t, f.TestAndAdd([]byte("hello")))
	assert.True(t, f.Test([]byte("hello")))
}

func TestFilter_Reset(t *testing.T) {
	t.Parallel()

	f, err := bloom.NewWithEstimates(smallN, standardFP)
	require.NoError(t, err)

	f.Add([]byte("hello"))
	require.True(t, f.Test([]byte("hello")))
	require.Equal(t, uint(1), f.EstimatedCount())

	f.Reset()

	assert.False(t, f.Test([]byte("hello")))
	assert.Equal(t, uint(0), f.EstimatedCount())
	assert.Zero(t, f.FillRatio())
}
