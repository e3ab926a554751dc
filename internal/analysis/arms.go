package analysis

import (
	"github.com/shopspring/decimal"

	"github.com/Usaidkhxn/LaunchLens/internal/stats"
)

// ArmRate is a per-arm rate with a Wilson confidence band.
type ArmRate struct {
	Name    string  `json:"name" yaml:"name"`
	Value   float64 `json:"value" yaml:"value"`
	Low     float64 `json:"low" yaml:"low"`
	High    float64 `json:"high" yaml:"high"`
	Defined bool    `json:"defined" yaml:"defined"`
}

// ArmSummary is the monitoring rollup of one arm.
type ArmSummary struct {
	Variant           string    `json:"variant" yaml:"variant"`
	Sessions          int       `json:"sessions" yaml:"sessions"`
	Users             int       `json:"users" yaml:"users"`
	Rates             []ArmRate `json:"rates" yaml:"rates"`
	RevenuePerSession float64   `json:"revenue_per_session" yaml:"revenue_per_session"`
}

// Rate returns the named rate.
func (a ArmSummary) Rate(name string) (ArmRate, bool) {
	for _, r := range a.Rates {
		if r.Name == name {
			return r, true
		}
	}
	return ArmRate{}, false
}

// SummarizeArm builds the monitoring rollup of c.
func SummarizeArm(c VariantCounts, confidence float64) ArmSummary {
	rate := func(name string, x, n int) ArmRate {
		r := ArmRate{Name: name}
		// x > n only happens on funnel-inconsistent data, which dq_checks reports.
		if n == 0 || x > n {
			return r
		}
		r.Defined = true
		r.Value = float64(x) / float64(n)
		r.Low, r.High = stats.WilsonInterval(x, n, confidence)
		return r
	}

	s := ArmSummary{
		Variant:  c.Variant,
		Sessions: c.Sessions,
		Users:    c.Users,
		Rates: []ArmRate{
			rate("impression_rate", c.Impressions, c.Sessions),
			rate("click_rate", c.Clicks, c.Sessions),
			rate("atc_rate_per_session", c.AddToCarts, c.Sessions),
			rate("purchase_rate_per_session", c.Purchases, c.Sessions),
			rate("ctr", c.Clicks, c.Impressions),
			rate("atc_rate_given_click", c.AddToCarts, c.Clicks),
		},
	}
	if c.Sessions > 0 {
		s.RevenuePerSession = c.Revenue.Div(decimal.NewFromInt(int64(c.Sessions))).InexactFloat64()
	}
	return s
}
