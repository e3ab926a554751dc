package analysis

import (
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/Usaidkhxn/LaunchLens/internal/metrics"
	"github.com/Usaidkhxn/LaunchLens/internal/warehouse"
)

// TrendValue is one metric on one (date, variant).
type TrendValue struct {
	Metric      string        `json:"metric" yaml:"metric"`
	Value       float64       `json:"value" yaml:"value"`
	Denominator int           `json:"denominator" yaml:"denominator"`
	Status      Computability `json:"status" yaml:"status"`
}

// TrendRow is the daily rollup of one variant. ExperimentPeriod is a
// per-date flag shared by every variant on that date.
type TrendRow struct {
	Date             time.Time    `json:"date" yaml:"date"`
	Variant          string       `json:"variant" yaml:"variant"`
	ExperimentPeriod bool         `json:"is_experiment_period" yaml:"is_experiment_period"`
	Sessions         int          `json:"sessions" yaml:"sessions"`
	Values           []TrendValue `json:"values" yaml:"values"`
}

// Value returns the named metric's value for the row.
func (r TrendRow) Value(metric string) (TrendValue, bool) {
	for _, v := range r.Values {
		if v.Metric == metric {
			return v, true
		}
	}
	return TrendValue{}, false
}

// BuildTrend turns daily rollups into trend rows ordered by date then arm
// order. Proportion metrics are stage-count ratios; continuous metrics are
// revenue over the denominator stage count.
func BuildTrend(rollups []warehouse.DailyRollup, catalog metrics.Catalog, arms ...string) ([]TrendRow, error) {
	armIndex := make(map[string]int, len(arms))
	for i, a := range arms {
		armIndex[a] = i
	}

	period := map[string]bool{}
	rows := make([]TrendRow, 0, len(rollups))
	for _, r := range rollups {
		if _, ok := armIndex[r.Variant]; !ok {
			return nil, eris.Wrapf(ErrUnexpectedVariant, "variant %q on %s", r.Variant, r.EventDate.Format(warehouse.DateLayout))
		}
		key := r.EventDate.Format(warehouse.DateLayout)
		period[key] = period[key] || r.ExperimentPeriod

		row := TrendRow{Date: r.EventDate, Variant: r.Variant, Sessions: r.Sessions, Values: make([]TrendValue, len(catalog))}
		for i, d := range catalog {
			row.Values[i] = trendValue(d, r)
		}
		rows = append(rows, row)
	}

	for i := range rows {
		rows[i].ExperimentPeriod = period[rows[i].Date.Format(warehouse.DateLayout)]
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return armIndex[rows[i].Variant] < armIndex[rows[j].Variant]
	})
	return rows, nil
}

func trendValue(d metrics.Definition, r warehouse.DailyRollup) TrendValue {
	v := TrendValue{Metric: d.Name, Denominator: r.Stage(d.Denominator)}
	if v.Denominator == 0 {
		v.Status = NonComputable
		return v
	}
	v.Status = Computable
	switch d.Kind {
	case metrics.KindProportion:
		v.Value = float64(r.Stage(d.Numerator)) / float64(v.Denominator)
	case metrics.KindContinuous:
		v.Value = r.Revenue.Div(decimal.NewFromInt(int64(v.Denominator))).InexactFloat64()
	}
	return v
}

// TrailingMetric compares the per-arm mean of daily values over the window.
type TrailingMetric struct {
	Metric        string        `json:"metric" yaml:"metric"`
	Control       float64       `json:"control" yaml:"control"`
	Treatment     float64       `json:"treatment" yaml:"treatment"`
	Diff          float64       `json:"diff" yaml:"diff"`
	ControlDays   int           `json:"control_days" yaml:"control_days"`
	TreatmentDays int           `json:"treatment_days" yaml:"treatment_days"`
	Status        Computability `json:"status" yaml:"status"`
}

// TrailingWindow summarises the last Days available dates of a trend.
type TrailingWindow struct {
	Days    int              `json:"days" yaml:"days"`
	Start   time.Time        `json:"start" yaml:"start"`
	End     time.Time        `json:"end" yaml:"end"`
	Metrics []TrailingMetric `json:"metrics" yaml:"metrics"`
}

// Metric returns the named trailing comparison.
func (w TrailingWindow) Metric(name string) (TrailingMetric, bool) {
	for _, m := range w.Metrics {
		if m.Metric == name {
			return m, true
		}
	}
	return TrailingMetric{}, false
}

// Trailing averages each arm's daily values over the last days distinct
// dates present in rows. A metric with no computable day in either arm is
// NonComputable; the other arm's mean is still reported.
func Trailing(rows []TrendRow, catalog metrics.Catalog, days int, control, treatment string) TrailingWindow {
	w := TrailingWindow{Days: days, Metrics: make([]TrailingMetric, len(catalog))}

	var dates []time.Time
	for _, r := range rows {
		if len(dates) == 0 || !dates[len(dates)-1].Equal(r.Date) {
			dates = append(dates, r.Date)
		}
	}
	if days > 0 && len(dates) > days {
		dates = dates[len(dates)-days:]
	}
	if len(dates) > 0 {
		w.Start, w.End = dates[0], dates[len(dates)-1]
	}

	for i, d := range catalog {
		var sumC, sumT float64
		m := TrailingMetric{Metric: d.Name}
		for _, r := range rows {
			if len(dates) == 0 || r.Date.Before(w.Start) {
				continue
			}
			v, ok := r.Value(d.Name)
			if !ok || v.Status == NonComputable {
				continue
			}
			switch r.Variant {
			case control:
				sumC += v.Value
				m.ControlDays++
			case treatment:
				sumT += v.Value
				m.TreatmentDays++
			}
		}
		if m.ControlDays > 0 {
			m.Control = sumC / float64(m.ControlDays)
		}
		if m.TreatmentDays > 0 {
			m.Treatment = sumT / float64(m.TreatmentDays)
		}
		if m.ControlDays == 0 || m.TreatmentDays == 0 {
			m.Status = NonComputable
		} else {
			m.Status = Computable
			m.Diff = m.Treatment - m.Control
		}
		w.Metrics[i] = m
	}
	return w
}
