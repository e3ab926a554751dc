// Package report renders readout bundles for people and for the external
// report and dashboard collaborators.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/Usaidkhxn/LaunchLens/internal/analysis"
	"github.com/Usaidkhxn/LaunchLens/internal/metrics"
)

// NA is printed in place of any value that could not be computed.
const NA = "NA"

// Columns is the readout column order of the output contract.
var Columns = []string{"metric", "control", "treatment", "abs_diff", "rel_diff", "ci_low", "ci_high", "p_value"}

// ErrUnknownFormat is returned by ParseFormat.
var ErrUnknownFormat = eris.New("unknown format")

// Format is an export encoding.
type Format string

const (
	FormatText Format = "text"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts text, csv, json, yaml and yml in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "txt", "":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", eris.Wrapf(ErrUnknownFormat, "%q (want csv, json or yaml)", s)
}

// Row is a readout row with every value already formatted.
type Row struct {
	Metric    string
	Control   string
	Treatment string
	AbsDiff   string
	RelDiff   string
	CILow     string
	CIHigh    string
	PValue    string
}

// Strings returns the row in Columns order.
func (r Row) Strings() []string {
	return []string{r.Metric, r.Control, r.Treatment, r.AbsDiff, r.RelDiff, r.CILow, r.CIHigh, r.PValue}
}

// Value formats a metric value: proportions as percentages with three
// decimals, continuous values with four.
func Value(kind metrics.Kind, v float64) string {
	if kind == metrics.KindProportion {
		return fmt.Sprintf("%.3f%%", v*100)
	}
	return fmt.Sprintf("%.4f", v)
}

// Relative formats a relative difference as a percentage with two decimals.
func Relative(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

// PValue formats a p-value with four decimals.
func PValue(p float64) string {
	return fmt.Sprintf("%.4f", p)
}

// FormatRow formats r. Arm values with no denominator and every comparison
// of a non-computable row print as NA, never as 0.
func FormatRow(r analysis.ReadoutRow) Row {
	out := Row{Metric: r.Metric, Control: NA, Treatment: NA, AbsDiff: NA, RelDiff: NA, CILow: NA, CIHigh: NA, PValue: NA}
	if r.ControlN > 0 {
		out.Control = Value(r.Kind, r.Control)
	}
	if r.TreatmentN > 0 {
		out.Treatment = Value(r.Kind, r.Treatment)
	}
	if !r.Computable() {
		return out
	}
	out.AbsDiff = Value(r.Kind, r.AbsDiff)
	if r.RelDiffDefined {
		out.RelDiff = Relative(r.RelDiff)
	}
	out.CILow = Value(r.Kind, r.CILow)
	out.CIHigh = Value(r.Kind, r.CIHigh)
	out.PValue = PValue(r.PValue)
	return out
}

// FormatRows formats rows ordered by metric name.
func FormatRows(rows []analysis.ReadoutRow) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = FormatRow(r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Metric < out[j].Metric })
	return out
}

func trendValue(kind metrics.Kind, v analysis.TrendValue) string {
	if v.Status == analysis.NonComputable {
		return NA
	}
	return Value(kind, v.Value)
}

func srmStats(r analysis.SRMResult) (chi, p string) {
	if r.Computability == analysis.NonComputable {
		return NA, NA
	}
	return fmt.Sprintf("%.3f", r.ChiSquare), PValue(r.PValue)
}
