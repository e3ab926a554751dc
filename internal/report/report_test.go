package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Usaidkhxn/LaunchLens/internal/analysis"
	"github.com/Usaidkhxn/LaunchLens/internal/metrics"
	"github.com/Usaidkhxn/LaunchLens/internal/testutil"
	"github.com/Usaidkhxn/LaunchLens/internal/warehouse"
)

const expID = "exp_checkout_v1"

func fixtureBundle(t *testing.T) *analysis.Bundle {
	t.Helper()
	src := warehouse.NewMemory(testutil.Facts(expID, 14, testutil.InconclusiveArms()...)...)
	b, err := analysis.Run(context.Background(), src, expID, analysis.DefaultConfig())
	require.NoError(t, err)
	return b
}

func TestFormatRow_AddToCartFixture(t *testing.T) {
	b := fixtureBundle(t)
	row, ok := b.Row("atc_rate")
	require.True(t, ok)

	got := FormatRow(row)

	assert.Equal(t, Row{
		Metric:    "atc_rate",
		Control:   "23.607%",
		Treatment: "22.535%",
		AbsDiff:   "-1.071%",
		RelDiff:   "-4.54%",
		CILow:     "-3.459%",
		CIHigh:    "1.316%",
		PValue:    "0.3794",
	}, got)
}

func TestFormatRow_NonComputable(t *testing.T) {
	row := analysis.ReadoutRow{
		Metric: "atc_rate", Kind: metrics.KindProportion,
		ControlN: 0, TreatmentN: 12, Treatment: 0.25,
		Status: analysis.NonComputable, Reason: "zero denominator in control",
	}

	got := FormatRow(row)

	assert.Equal(t, NA, got.Control)
	assert.Equal(t, "25.000%", got.Treatment)
	for _, v := range []string{got.AbsDiff, got.RelDiff, got.CILow, got.CIHigh, got.PValue} {
		assert.Equal(t, NA, v)
	}
}

func TestFormatRow_ContinuousAndUndefinedRelative(t *testing.T) {
	row := analysis.ReadoutRow{
		Metric: "revenue_per_session", Kind: metrics.KindContinuous,
		ControlN: 10, TreatmentN: 10, Control: 0, Treatment: 1.23456,
		AbsDiff: 1.23456, CILow: 0.5, CIHigh: 1.96912, PValue: 0.00042,
		Status: analysis.Computable,
	}

	got := FormatRow(row)

	assert.Equal(t, "0.0000", got.Control)
	assert.Equal(t, "1.2346", got.Treatment)
	assert.Equal(t, NA, got.RelDiff)
	assert.Equal(t, "0.0004", got.PValue)
}

func TestFormatRows_SortedByMetric(t *testing.T) {
	rows := FormatRows([]analysis.ReadoutRow{{Metric: "revenue_per_session"}, {Metric: "atc_rate"}, {Metric: "ctr"}})

	assert.Equal(t, "atc_rate", rows[0].Metric)
	assert.Equal(t, "ctr", rows[1].Metric)
	assert.Equal(t, "revenue_per_session", rows[2].Metric)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"csv", FormatCSV},
		{"JSON", FormatJSON},
		{"yml", FormatYAML},
		{"yaml", FormatYAML},
		{"", FormatText},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseFormat("xlsx")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestWriteCSV(t *testing.T) {
	b := fixtureBundle(t)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, b.Rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 6)
	assert.Equal(t, Columns, records[0])
	assert.Equal(t, "atc_rate", records[1][0])
	assert.Equal(t, "purchase_rate_per_session", records[4][0])
	assert.Equal(t, "-4.54%", records[1][4])
}

func TestWriteJSON(t *testing.T) {
	b := fixtureBundle(t)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, b))

	var decoded struct {
		ID       string `json:"id"`
		Decision struct {
			Recommendation string `json:"recommendation"`
		} `json:"decision"`
		Rows []map[string]any `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, b.ID, decoded.ID)
	assert.Equal(t, "Continue", decoded.Decision.Recommendation)
	assert.Len(t, decoded.Rows, 5)
}

func TestWriteYAML(t *testing.T) {
	b := fixtureBundle(t)

	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, b))

	out := buf.String()
	assert.Contains(t, out, "experiment_id: exp_checkout_v1")
	assert.Contains(t, out, "recommendation: Continue")
	assert.Contains(t, out, "rel_diff_defined: true")
	assert.NotContains(t, out, "\ncounts:")
}

func nonComputableRow() analysis.ReadoutRow {
	return analysis.ReadoutRow{
		Metric: "atc_rate", Kind: metrics.KindProportion,
		ControlN: 0, TreatmentN: 20, Treatment: 0.25,
		Status: analysis.NonComputable, Reason: "zero denominator in control",
	}
}

func TestWriteJSON_UndefinedValuesAreNull(t *testing.T) {
	srm := analysis.CheckSRM(analysis.GranularityUser, []string{"control", "treatment"}, []int{0, 0}, []float64{1, 1}, 0.05)
	v := struct {
		Row analysis.ReadoutRow `json:"row"`
		SRM analysis.SRMResult  `json:"srm"`
	}{nonComputableRow(), srm}

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, v))

	var decoded struct {
		Row map[string]any `json:"row"`
		SRM map[string]any `json:"srm"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	for _, key := range []string{"control", "abs_diff", "rel_diff", "ci_low", "ci_high", "p_value"} {
		val, ok := decoded.Row[key]
		require.True(t, ok, "row key %s missing", key)
		assert.Nil(t, val, "row key %s", key)
	}
	assert.Equal(t, 0.25, decoded.Row["treatment"])
	assert.Equal(t, "non_computable", decoded.Row["status"])

	assert.Nil(t, decoded.SRM["chi_square"])
	assert.Nil(t, decoded.SRM["p_value"])
}

func TestWriteJSON_UndefinedRelativeDiff(t *testing.T) {
	row := analysis.ReadoutRow{
		Metric: "ctr", Kind: metrics.KindProportion,
		ControlN: 100, TreatmentN: 100, Treatment: 0.05,
		AbsDiff: 0.05, CILow: 0.007, CIHigh: 0.093, PValue: 0.0237,
		Status: analysis.Computable,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, row))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Nil(t, decoded["rel_diff"])
	assert.Equal(t, 0.0, decoded["control"])
	assert.Equal(t, 0.05, decoded["abs_diff"])
}

func TestWriteYAML_UndefinedValuesAreNull(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, nonComputableRow()))

	out := buf.String()
	for _, key := range []string{"control", "abs_diff", "rel_diff", "ci_low", "ci_high", "p_value"} {
		assert.Contains(t, out, key+": null\n")
	}
	assert.Contains(t, out, "treatment: 0.25\n")
}

func TestWriteJSON_TrendNulls(t *testing.T) {
	rows, err := analysis.BuildTrend([]warehouse.DailyRollup{
		{EventDate: testutil.Start, ExperimentID: expID, Variant: "control", ExperimentPeriod: true, Sessions: 100, Purchases: 2},
	}, metrics.DefaultCatalog(), "control", "treatment")
	require.NoError(t, err)
	tw := analysis.Trailing(rows, metrics.DefaultCatalog(), 7, "control", "treatment")

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, struct {
		Rows     []analysis.TrendRow     `json:"rows"`
		Trailing analysis.TrailingWindow `json:"trailing"`
	}{rows, tw}))

	var decoded struct {
		Rows []struct {
			Values []map[string]any `json:"values"`
		} `json:"rows"`
		Trailing struct {
			Metrics []map[string]any `json:"metrics"`
		} `json:"trailing"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	// No impressions that day: ctr is undefined.
	for _, v := range decoded.Rows[0].Values {
		if v["metric"] == "ctr" {
			assert.Nil(t, v["value"])
		}
		if v["metric"] == "purchase_rate_per_session" {
			assert.Equal(t, 0.02, v["value"])
		}
	}
	for _, m := range decoded.Trailing.Metrics {
		if m["metric"] == "purchase_rate_per_session" {
			assert.Equal(t, 0.02, m["control"])
			assert.Nil(t, m["treatment"])
			assert.Nil(t, m["diff"])
		}
	}
}

func TestWriteText(t *testing.T) {
	b := fixtureBundle(t)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, b, metrics.DefaultCatalog()))

	out := buf.String()
	assert.Contains(t, out, "EXPERIMENT: "+expID)
	assert.Contains(t, out, "abs_diff")
	assert.Contains(t, out, "4,031 / 3,969")
	assert.Contains(t, out, "21,238 / 20,706")
	assert.Contains(t, out, "note: "+analysis.SessionSRMNote)
	assert.Contains(t, out, "TRAILING 7 DAYS (2024-03-08..2024-03-14)")
	assert.Contains(t, out, "DECISION: Continue")
	assert.NotContains(t, out, "DATA QUALITY")
}

func TestWriteTrend(t *testing.T) {
	src := warehouse.NewMemory(testutil.Facts(expID, 3, testutil.InconclusiveArms()...)...)
	r, err := analysis.RunTrend(context.Background(), src, expID, analysis.DefaultConfig())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteTrend(&buf, r, metrics.DefaultCatalog()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.True(t, strings.HasPrefix(lines[2], "DATE"))
	assert.True(t, strings.HasPrefix(lines[3], "2024-03-01  control"))
	assert.Contains(t, buf.String(), "TRAILING 7 DAYS (2024-03-01..2024-03-03)")
}

func TestWriteExperiments(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteExperiments(&buf, []warehouse.ExperimentSummary{
		{ID: expID, Sessions: 41944, Users: 8000, FirstDate: testutil.Start, LastDate: testutil.Start.AddDate(0, 0, 13)},
	}))

	assert.Contains(t, buf.String(), "41,944")
	assert.Contains(t, buf.String(), "2024-03-14")
}
