package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWelch_UnequalVariances(t *testing.T) {
	r, err := Welch(Sample{N: 10, Mean: 5, Variance: 4}, Sample{N: 12, Mean: 7, Variance: 9}, 0.95)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, r.Diff, 1e-12)
	assert.InDelta(t, 19.1905, r.DF, 1e-4)
	assert.InDelta(t, 1.86501, r.T, 1e-5)
	assert.InDelta(t, 0.07755, r.PValue, 1e-4)
	assert.InDelta(t, -0.24301, r.CILow, 1e-4)
	assert.InDelta(t, 4.24301, r.CIHigh, 1e-4)
	assert.False(t, r.Degenerate)
}

func TestWelch_LargeSample(t *testing.T) {
	r, err := Welch(Sample{N: 40, Mean: 1.0, Variance: 2.25}, Sample{N: 35, Mean: 1.4, Variance: 4.0}, 0.95)
	require.NoError(t, err)

	assert.InDelta(t, 62.5048, r.DF, 1e-3)
	assert.InDelta(t, 0.33647, r.PValue, 1e-4)
	assert.InDelta(t, -0.42536, r.CILow, 1e-4)
	assert.InDelta(t, 1.22536, r.CIHigh, 1e-4)
}

func TestWelch_OneConstantArm(t *testing.T) {
	// All-zero revenue in control: its term drops out and df collapses to n_t-1.
	r, err := Welch(Sample{N: 10, Mean: 5, Variance: 0}, Sample{N: 12, Mean: 7, Variance: 9}, 0.95)
	require.NoError(t, err)

	assert.True(t, r.Degenerate)
	assert.InDelta(t, 11.0, r.DF, 1e-9)
	assert.InDelta(t, 2.30940, r.T, 1e-5)
	assert.InDelta(t, 0.04134, r.PValue, 1e-4)
	assert.InDelta(t, 0.09389, r.CILow, 1e-4)
	assert.InDelta(t, 3.90611, r.CIHigh, 1e-4)
}

func TestWelch_NegativeRoundingVariance(t *testing.T) {
	r, err := Welch(Sample{N: 10, Mean: 5, Variance: -1e-18}, Sample{N: 12, Mean: 7, Variance: 9}, 0.95)
	require.NoError(t, err)
	assert.True(t, r.Degenerate)
}

func TestWelch_BothConstant(t *testing.T) {
	_, err := Welch(Sample{N: 10, Mean: 0}, Sample{N: 12, Mean: 0}, 0.95)
	assert.ErrorIs(t, err, ErrZeroVariance)
}

func TestWelch_SampleSizes(t *testing.T) {
	_, err := Welch(Sample{N: 0}, Sample{N: 12, Mean: 1, Variance: 1}, 0.95)
	assert.ErrorIs(t, err, ErrEmptyArm)

	_, err = Welch(Sample{N: 1, Mean: 3}, Sample{N: 12, Mean: 1, Variance: 1}, 0.95)
	assert.ErrorIs(t, err, ErrTooFewSamples)
}
