// Package testutil builds deterministic experiment fixtures for tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Usaidkhxn/LaunchLens/internal/warehouse"
)

// Start is the first date of every generated experiment.
var Start = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

// Arm describes the exact funnel counts of one generated arm. Stage counts
// must be nested: Purchases <= AddToCarts <= Clicks <= Impressions <= Sessions.
type Arm struct {
	Variant     string
	Users       int
	Sessions    int
	Impressions int
	Clicks      int
	AddToCarts  int
	Purchases   int
	// Revenue is the base order value; purchase k earns Revenue + k%5.
	Revenue decimal.Decimal
}

// Facts generates one experiment-period session fact per arm session.
// Session k belongs to user k%Users and falls on day k%days.
func Facts(experimentID string, days int, arms ...Arm) []warehouse.SessionFact {
	var out []warehouse.SessionFact
	for _, a := range arms {
		for k := 0; k < a.Sessions; k++ {
			f := warehouse.SessionFact{
				UserID:           fmt.Sprintf("%s-u%05d", a.Variant, k%a.Users),
				SessionID:        fmt.Sprintf("%s-s%06d", a.Variant, k),
				ExperimentID:     experimentID,
				Variant:          a.Variant,
				EventDate:        Start.AddDate(0, 0, k%days),
				ExperimentPeriod: true,
				Impression:       k < a.Impressions,
				Click:            k < a.Clicks,
				AddToCart:        k < a.AddToCarts,
				Purchase:         k < a.Purchases,
				Revenue:          decimal.Zero,
			}
			if f.Purchase {
				f.Revenue = a.Revenue.Add(decimal.NewFromInt(int64(k % 5)))
			}
			out = append(out, f)
		}
	}
	return out
}

// InconclusiveArms is a balanced two-arm experiment whose primary metric
// (purchases per session) shows no significant lift. The user split is
// 4031/3969 and the session split 21238/20706.
func InconclusiveArms() []Arm {
	return []Arm{
		{Variant: "control", Users: 4031, Sessions: 21238, Impressions: 17000, Clicks: 2440, AddToCarts: 576, Purchases: 300,
			Revenue: decimal.NewFromInt(40)},
		{Variant: "treatment", Users: 3969, Sessions: 20706, Impressions: 16600, Clicks: 2343, AddToCarts: 528, Purchases: 290,
			Revenue: decimal.NewFromInt(41)},
	}
}

// SetupTestWarehouse opens a migrated SQLite warehouse in t.TempDir, loads
// facts and rebuilds the derived relations.
func SetupTestWarehouse(t *testing.T, facts []warehouse.SessionFact) (*warehouse.SQLite, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := warehouse.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open warehouse: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	ctx := context.Background()
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate warehouse: %v", err)
	}
	if len(facts) > 0 {
		if err := s.InsertSessions(ctx, facts); err != nil {
			t.Fatalf("failed to insert sessions: %v", err)
		}
	}
	if err := s.Rebuild(ctx); err != nil {
		t.Fatalf("failed to rebuild warehouse: %v", err)
	}
	return s, dbPath
}
