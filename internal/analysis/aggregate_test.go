package analysis

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Usaidkhxn/LaunchLens/internal/metrics"
	"github.com/Usaidkhxn/LaunchLens/internal/testutil"
	"github.com/Usaidkhxn/LaunchLens/internal/warehouse"
)

func TestAggregate_FunnelCounts(t *testing.T) {
	facts := testutil.Facts("exp", 7, testutil.InconclusiveArms()...)

	counts, err := Aggregate(facts, metrics.DefaultCatalog(), "control", "treatment")
	require.NoError(t, err)
	require.Len(t, counts, 2)

	c := counts[0]
	assert.Equal(t, "control", c.Variant)
	assert.Equal(t, 21238, c.Sessions)
	assert.Equal(t, 4031, c.Users)
	assert.Equal(t, 2440, c.Clicks)
	assert.Equal(t, 2440, c.Stage(metrics.StageClick))

	atc := c.Metrics["atc_rate"]
	assert.Equal(t, 576, atc.Numerator)
	assert.Equal(t, 2440, atc.Denominator)

	assert.Equal(t, 21238+20706, counts[0].Sessions+counts[1].Sessions)
}

func TestAggregate_NumeratorRequiresDenominatorStage(t *testing.T) {
	// A cart without a recorded click is outside atc_rate's denominator and
	// so cannot count towards its numerator.
	facts := []warehouse.SessionFact{
		{UserID: "u1", SessionID: "s1", Variant: "control", Impression: true, AddToCart: true},
		{UserID: "u2", SessionID: "s2", Variant: "control", Impression: true, Click: true, AddToCart: true},
		{UserID: "u3", SessionID: "s3", Variant: "treatment", Impression: true},
	}

	counts, err := Aggregate(facts, metrics.DefaultCatalog(), "control", "treatment")
	require.NoError(t, err)

	atc := counts[0].Metrics["atc_rate"]
	assert.Equal(t, 1, atc.Numerator)
	assert.Equal(t, 1, atc.Denominator)
	assert.Equal(t, 2, counts[0].AddToCarts)
}

func TestAggregate_UnexpectedVariant(t *testing.T) {
	facts := []warehouse.SessionFact{{UserID: "u1", SessionID: "s1", Variant: "holdout"}}

	_, err := Aggregate(facts, metrics.DefaultCatalog(), "control", "treatment")
	assert.ErrorIs(t, err, ErrUnexpectedVariant)
	assert.Contains(t, err.Error(), "holdout")
}

func TestAggregate_DistinctUsers(t *testing.T) {
	facts := []warehouse.SessionFact{
		{UserID: "u1", SessionID: "s1", Variant: "control"},
		{UserID: "u1", SessionID: "s2", Variant: "control"},
		{UserID: "u2", SessionID: "s3", Variant: "control"},
	}

	counts, err := Aggregate(facts, metrics.DefaultCatalog(), "control", "treatment")
	require.NoError(t, err)
	assert.Equal(t, 3, counts[0].Sessions)
	assert.Equal(t, 2, counts[0].Users)
	assert.Equal(t, 0, counts[1].Users)
}

func TestMetricCounts_Sample(t *testing.T) {
	var facts []warehouse.SessionFact
	for i, rev := range []string{"10", "20", "30"} {
		facts = append(facts, warehouse.SessionFact{
			UserID: "u", SessionID: string(rune('a' + i)), Variant: "control",
			Revenue: decimal.RequireFromString(rev),
		})
	}

	counts, err := Aggregate(facts, metrics.DefaultCatalog(), "control", "treatment")
	require.NoError(t, err)

	s := counts[0].Metrics["revenue_per_session"].Sample()
	assert.Equal(t, 3, s.N)
	assert.InDelta(t, 20.0, s.Mean, 1e-12)
	assert.InDelta(t, 100.0, s.Variance, 1e-12)

	empty := counts[1].Metrics["revenue_per_session"].Sample()
	assert.Equal(t, 0, empty.N)
	assert.Equal(t, 0.0, empty.Variance)
}

func TestAggregate_SessionsPartitionFacts(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 200).Draw(rt, "n")
		facts := make([]warehouse.SessionFact, n)
		for i := range facts {
			variant := rapid.SampledFrom([]string{"control", "treatment"}).Draw(rt, "variant")
			click := rapid.Bool().Draw(rt, "click")
			facts[i] = warehouse.SessionFact{
				UserID:     rapid.StringMatching(`u[0-9]{1,2}`).Draw(rt, "user"),
				SessionID:  rapid.StringMatching(`s[0-9]{1,4}`).Draw(rt, "session"),
				Variant:    variant,
				Impression: click || rapid.Bool().Draw(rt, "impression"),
				Click:      click,
				AddToCart:  click && rapid.Bool().Draw(rt, "cart"),
			}
		}

		counts, err := Aggregate(facts, metrics.DefaultCatalog(), "control", "treatment")
		require.NoError(rt, err)
		assert.Equal(rt, n, counts[0].Sessions+counts[1].Sessions)
		for _, c := range counts {
			for name, m := range c.Metrics {
				assert.LessOrEqual(rt, m.Numerator, m.Denominator, name)
				assert.GreaterOrEqual(rt, m.Denominator, 0, name)
			}
		}
	})
}
