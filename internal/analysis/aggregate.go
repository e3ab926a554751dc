package analysis

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/Usaidkhxn/LaunchLens/internal/metrics"
	"github.com/Usaidkhxn/LaunchLens/internal/stats"
	"github.com/Usaidkhxn/LaunchLens/internal/warehouse"
)

// MetricCounts holds what one metric needs from one arm. Numerator is only
// used by proportion metrics, Sum and SumSquares only by continuous ones.
type MetricCounts struct {
	Numerator   int             `json:"numerator"`
	Denominator int             `json:"denominator"`
	Sum         decimal.Decimal `json:"sum"`
	SumSquares  decimal.Decimal `json:"sum_squares"`
}

// VariantCounts is the per-arm aggregate every downstream test reads.
type VariantCounts struct {
	Variant     string                  `json:"variant"`
	Sessions    int                     `json:"sessions"`
	Users       int                     `json:"users"`
	Impressions int                     `json:"impressions"`
	Clicks      int                     `json:"clicks"`
	AddToCarts  int                     `json:"add_to_carts"`
	Purchases   int                     `json:"purchases"`
	Revenue     decimal.Decimal         `json:"revenue"`
	Metrics     map[string]MetricCounts `json:"metrics"`
}

// Stage returns how many sessions in the arm reached s.
func (c VariantCounts) Stage(s metrics.Stage) int {
	switch s {
	case metrics.StageSession:
		return c.Sessions
	case metrics.StageImpression:
		return c.Impressions
	case metrics.StageClick:
		return c.Clicks
	case metrics.StageAddToCart:
		return c.AddToCarts
	case metrics.StagePurchase:
		return c.Purchases
	}
	return 0
}

// Sample summarises a continuous metric as count, mean and unbiased variance.
// Variance is zero when fewer than two sessions qualify.
func (m MetricCounts) Sample() stats.Sample {
	s := stats.Sample{N: m.Denominator}
	if m.Denominator == 0 {
		return s
	}
	n := decimal.NewFromInt(int64(m.Denominator))
	s.Mean = m.Sum.Div(n).InexactFloat64()
	if m.Denominator > 1 {
		ss := m.SumSquares.Sub(m.Sum.Mul(m.Sum).Div(n))
		s.Variance = ss.Div(n.Sub(decimal.NewFromInt(1))).InexactFloat64()
	}
	return s
}

// Aggregate reduces facts to one VariantCounts per arm, in arm order. Every
// fact must belong to one of the arms.
func Aggregate(facts []warehouse.SessionFact, catalog metrics.Catalog, arms ...string) ([]VariantCounts, error) {
	index := make(map[string]int, len(arms))
	out := make([]VariantCounts, len(arms))
	users := make([]map[string]struct{}, len(arms))
	for i, a := range arms {
		index[a] = i
		out[i] = VariantCounts{Variant: a, Revenue: decimal.Zero, Metrics: make(map[string]MetricCounts, len(catalog))}
		for _, d := range catalog {
			out[i].Metrics[d.Name] = MetricCounts{Sum: decimal.Zero, SumSquares: decimal.Zero}
		}
		users[i] = map[string]struct{}{}
	}

	for _, f := range facts {
		i, ok := index[f.Variant]
		if !ok {
			return nil, eris.Wrapf(ErrUnexpectedVariant, "variant %q in session %s", f.Variant, f.SessionID)
		}
		c := &out[i]
		c.Sessions++
		users[i][f.UserID] = struct{}{}
		if f.Impression {
			c.Impressions++
		}
		if f.Click {
			c.Clicks++
		}
		if f.AddToCart {
			c.AddToCarts++
		}
		if f.Purchase {
			c.Purchases++
		}
		c.Revenue = c.Revenue.Add(f.Revenue)

		for _, d := range catalog {
			if !f.Reached(d.Denominator) {
				continue
			}
			m := c.Metrics[d.Name]
			m.Denominator++
			switch d.Kind {
			case metrics.KindProportion:
				if f.Reached(d.Numerator) {
					m.Numerator++
				}
			case metrics.KindContinuous:
				m.Sum = m.Sum.Add(f.Revenue)
				m.SumSquares = m.SumSquares.Add(f.Revenue.Mul(f.Revenue))
			}
			c.Metrics[d.Name] = m
		}
	}

	for i := range out {
		out[i].Users = len(users[i])
	}
	return out, nil
}
