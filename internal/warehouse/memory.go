package warehouse

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// Memory is an in-process warehouse. Daily rollups and data-quality checks
// are derived from the loaded facts on each call.
type Memory struct {
	mu    sync.RWMutex
	facts []SessionFact
	dq    []DQCheck
}

// NewMemory returns a Memory warehouse holding facts.
func NewMemory(facts ...SessionFact) *Memory {
	m := &Memory{}
	m.Add(facts...)
	return m
}

// Add appends session facts.
func (m *Memory) Add(facts ...SessionFact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.facts = append(m.facts, facts...)
}

// SetDataQualityChecks replaces the derived checks with fixed rows.
func (m *Memory) SetDataQualityChecks(checks []DQCheck) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dq = append([]DQCheck(nil), checks...)
}

func (m *Memory) CheckSchema(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

func (m *Memory) Experiments(context.Context) ([]ExperimentSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byID := map[string]*ExperimentSummary{}
	users := map[string]map[string]struct{}{}
	for _, f := range m.facts {
		e, ok := byID[f.ExperimentID]
		if !ok {
			e = &ExperimentSummary{ID: f.ExperimentID, FirstDate: f.EventDate, LastDate: f.EventDate}
			byID[f.ExperimentID] = e
			users[f.ExperimentID] = map[string]struct{}{}
		}
		e.Sessions++
		users[f.ExperimentID][f.UserID] = struct{}{}
		if f.EventDate.Before(e.FirstDate) {
			e.FirstDate = f.EventDate
		}
		if f.EventDate.After(e.LastDate) {
			e.LastDate = f.EventDate
		}
	}

	out := make([]ExperimentSummary, 0, len(byID))
	for id, e := range byID {
		e.Users = len(users[id])
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SessionFacts(_ context.Context, experimentID string, w Window) ([]SessionFact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []SessionFact
	for _, f := range m.facts {
		if f.ExperimentID == experimentID && w.Contains(f.EventDate) {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.EventDate.Equal(b.EventDate) {
			return a.EventDate.Before(b.EventDate)
		}
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		return a.SessionID < b.SessionID
	})
	return out, nil
}

func (m *Memory) DailyRollups(ctx context.Context, experimentID string, w Window) ([]DailyRollup, error) {
	facts, err := m.SessionFacts(ctx, experimentID, w)
	if err != nil {
		return nil, err
	}
	return Rollup(facts), nil
}

func (m *Memory) DataQualityChecks(context.Context) ([]DQCheck, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.dq != nil {
		return append([]DQCheck(nil), m.dq...), nil
	}

	var emptyUsers, emptySessions, negative, inconsistent int64
	seen := map[[3]string]int{}
	for _, f := range m.facts {
		if f.UserID == "" {
			emptyUsers++
		}
		if f.SessionID == "" {
			emptySessions++
		}
		if f.Revenue.IsNegative() {
			negative++
		}
		if (f.Purchase && !f.AddToCart) || (f.AddToCart && !f.Click) || (!f.Purchase && f.Revenue.IsPositive()) {
			inconsistent++
		}
		seen[[3]string{f.ExperimentID, f.UserID, f.SessionID}]++
	}
	var dupes int64
	for _, n := range seen {
		if n > 1 {
			dupes++
		}
	}

	check := func(name string, observed, threshold int64, atLeast bool) DQCheck {
		pass := observed <= threshold
		if atLeast {
			pass = observed >= threshold
		}
		return DQCheck{Name: name, Observed: observed, Threshold: threshold, Pass: pass}
	}
	return []DQCheck{
		check("facts_nonempty", int64(len(m.facts)), 1, true),
		check("funnel_consistent", inconsistent, 0, false),
		check("no_duplicate_sessions", dupes, 0, false),
		check("no_empty_session_ids", emptySessions, 0, false),
		check("no_empty_user_ids", emptyUsers, 0, false),
		check("revenue_nonnegative", negative, 0, false),
	}, nil
}

// Rollup groups facts by (date, variant) the way daily_metrics is built,
// ordered by date then variant.
func Rollup(facts []SessionFact) []DailyRollup {
	type key struct {
		date    string
		variant string
	}
	byKey := map[key]*DailyRollup{}
	var keys []key
	for _, f := range facts {
		k := key{f.EventDate.Format(DateLayout), f.Variant}
		r, ok := byKey[k]
		if !ok {
			r = &DailyRollup{EventDate: f.EventDate, ExperimentID: f.ExperimentID, Variant: f.Variant, Revenue: decimal.Zero}
			byKey[k] = r
			keys = append(keys, k)
		}
		r.ExperimentPeriod = r.ExperimentPeriod || f.ExperimentPeriod
		r.Sessions++
		if f.Impression {
			r.Impressions++
		}
		if f.Click {
			r.Clicks++
		}
		if f.AddToCart {
			r.AddToCarts++
		}
		if f.Purchase {
			r.Purchases++
		}
		r.Revenue = r.Revenue.Add(f.Revenue)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].date != keys[j].date {
			return keys[i].date < keys[j].date
		}
		return keys[i].variant < keys[j].variant
	})
	out := make([]DailyRollup, len(keys))
	for i, k := range keys {
		out[i] = *byKey[k]
	}
	return out
}
