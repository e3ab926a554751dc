package warehouse

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Usaidkhxn/LaunchLens/internal/metrics"
)

func TestMemory_SessionFactsWindow(t *testing.T) {
	m := NewMemory(sampleFacts()...)
	ctx := context.Background()

	facts, err := m.SessionFacts(ctx, "exp_checkout", Window{})
	require.NoError(t, err)
	require.Len(t, facts, 4)
	assert.Equal(t, day(1), facts[0].EventDate)
	assert.Equal(t, day(2), facts[3].EventDate)

	facts, err = m.SessionFacts(ctx, "exp_checkout", Window{End: day(1)})
	require.NoError(t, err)
	assert.Len(t, facts, 2)
}

func TestMemory_DailyRollupsMatchRollup(t *testing.T) {
	m := NewMemory(sampleFacts()...)

	rollups, err := m.DailyRollups(context.Background(), "exp_checkout", Window{})
	require.NoError(t, err)
	require.Len(t, rollups, 4)

	assert.Equal(t, "control", rollups[0].Variant)
	assert.Equal(t, "treatment", rollups[1].Variant)
	assert.Equal(t, day(1), rollups[1].EventDate)
	assert.Equal(t, 1, rollups[1].Stage(metrics.StageClick))
	assert.Equal(t, 0, rollups[1].Stage(metrics.StagePurchase))
	assert.True(t, rollups[3].Revenue.Equal(decimal.NewFromInt(40)))
}

func TestMemory_Experiments(t *testing.T) {
	m := NewMemory(sampleFacts()...)

	exps, err := m.Experiments(context.Background())
	require.NoError(t, err)
	require.Len(t, exps, 2)
	assert.Equal(t, "exp_checkout", exps[0].ID)
	assert.Equal(t, 3, exps[0].Users)
	assert.Equal(t, 4, exps[0].Sessions)
}

func TestMemory_DataQualityChecks(t *testing.T) {
	m := NewMemory(sampleFacts()...)

	checks, err := m.DataQualityChecks(context.Background())
	require.NoError(t, err)
	for _, c := range checks {
		assert.True(t, c.Pass, c.Name)
	}

	m.SetDataQualityChecks([]DQCheck{{Name: "facts_nonempty", Observed: 0, Threshold: 1}})
	checks, err = m.DataQualityChecks(context.Background())
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.False(t, checks[0].Pass)
}

func TestSessionFact_Reached(t *testing.T) {
	f := SessionFact{Impression: true, Click: true}

	assert.True(t, f.Reached(metrics.StageSession))
	assert.True(t, f.Reached(metrics.StageImpression))
	assert.True(t, f.Reached(metrics.StageClick))
	assert.False(t, f.Reached(metrics.StageAddToCart))
	assert.False(t, f.Reached(metrics.StagePurchase))
}

func TestWindow_Contains(t *testing.T) {
	w := Window{Start: day(2), End: day(4)}

	assert.False(t, w.Contains(day(1)))
	assert.True(t, w.Contains(day(2)))
	assert.True(t, w.Contains(day(4)))
	assert.False(t, w.Contains(day(5)))
	assert.True(t, Window{}.Contains(day(30)))
	assert.Equal(t, "2024-03-02..2024-03-04", w.String())
}
