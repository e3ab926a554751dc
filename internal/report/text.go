package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Usaidkhxn/LaunchLens/internal/analysis"
	"github.com/Usaidkhxn/LaunchLens/internal/metrics"
	"github.com/Usaidkhxn/LaunchLens/internal/warehouse"
)

// counts prints integers with thousands separators.
var counts = message.NewPrinter(language.English)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// WriteText renders the full readout for a terminal.
func WriteText(w io.Writer, b *analysis.Bundle, catalog metrics.Catalog) error {
	fmt.Fprintf(w, "EXPERIMENT: %s\n", b.ExperimentID)
	fmt.Fprintf(w, "WINDOW:     %s\n", b.Window)
	fmt.Fprintf(w, "ARMS:       %s vs %s (alpha %.2f)\n", b.Control, b.Treatment, b.Alpha)
	fmt.Fprintf(w, "READOUT:    %s\n\n", b.ID)

	if err := WriteRows(w, b.Rows); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "SAMPLE RATIO")
	if err := WriteSRM(w, b.UserSRM, b.SessionSRM); err != nil {
		return err
	}

	if len(b.Guardrails) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "GUARDRAILS")
		tw := newTable(w)
		fmt.Fprintln(tw, "METRIC\tSTATUS\tPOLICY\tREASON")
		for _, g := range b.Guardrails {
			fmt.Fprintf(tw, "%s\t%s\t%s %s %.4g %s\t%s\n",
				g.Metric, g.Status, g.Policy.Direction, g.Policy.Mode, g.Policy.Threshold, g.Policy.Gate, dash(g.Reason))
		}
		if err := tw.Flush(); err != nil {
			return eris.Wrap(err, "report: write guardrails")
		}
	}

	if len(b.Arms) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "ARMS")
		if err := writeArms(w, b.Arms); err != nil {
			return err
		}
	}

	fmt.Fprintln(w)
	if err := writeTrailing(w, b.Trailing, catalog); err != nil {
		return err
	}

	if len(b.DataQuality) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "DATA QUALITY")
		tw := newTable(w)
		fmt.Fprintln(tw, "CHECK\tOBSERVED\tTHRESHOLD\tPASS")
		for _, c := range b.DataQuality {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", c.Name, counts.Sprintf("%d", c.Observed), counts.Sprintf("%d", c.Threshold), c.Pass)
		}
		if err := tw.Flush(); err != nil {
			return eris.Wrap(err, "report: write data quality")
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "DECISION: %s\n", b.Decision.Recommendation)
	fmt.Fprintf(w, "  %s\n", b.Decision.Reason)
	if len(b.Notes) > 0 {
		fmt.Fprintln(w, "NOTES:")
		for _, n := range b.Notes {
			fmt.Fprintf(w, "  - %s\n", n)
		}
	}
	return nil
}

// WriteRows renders readout rows as an aligned table in the contract's column order.
func WriteRows(w io.Writer, rows []analysis.ReadoutRow) error {
	tw := newTable(w)
	fmt.Fprintln(tw, strings.Join(Columns, "\t"))
	for _, r := range FormatRows(rows) {
		fmt.Fprintln(tw, strings.Join(r.Strings(), "\t"))
	}
	return eris.Wrap(tw.Flush(), "report: write readout")
}

// WriteSRM renders the user- and session-level sample ratio checks.
func WriteSRM(w io.Writer, user, session analysis.SRMResult) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "GRANULARITY\tOBSERVED\tCHI_SQUARE\tP_VALUE\tSTATUS")
	for _, r := range []analysis.SRMResult{user, session} {
		observed := make([]string, len(r.Observed))
		for i, o := range r.Observed {
			observed[i] = counts.Sprintf("%d", o)
		}
		chi, p := srmStats(r)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Granularity, strings.Join(observed, " / "), chi, p, r.Status)
	}
	if err := tw.Flush(); err != nil {
		return eris.Wrap(err, "report: write srm")
	}
	if session.Status == analysis.StatusFlag {
		fmt.Fprintf(w, "note: %s\n", session.Note)
	}
	return nil
}

func writeArms(w io.Writer, arms []analysis.ArmSummary) error {
	tw := newTable(w)
	header := []string{"VARIANT", "SESSIONS", "USERS"}
	for _, r := range arms[0].Rates {
		header = append(header, strings.ToUpper(r.Name))
	}
	header = append(header, "REVENUE_PER_SESSION")
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, a := range arms {
		cells := []string{a.Variant, counts.Sprintf("%d", a.Sessions), counts.Sprintf("%d", a.Users)}
		for _, r := range a.Rates {
			if !r.Defined {
				cells = append(cells, NA)
				continue
			}
			cells = append(cells, fmt.Sprintf("%s [%s, %s]",
				Value(metrics.KindProportion, r.Value), Value(metrics.KindProportion, r.Low), Value(metrics.KindProportion, r.High)))
		}
		cells = append(cells, Value(metrics.KindContinuous, a.RevenuePerSession))
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return eris.Wrap(tw.Flush(), "report: write arms")
}

func writeTrailing(w io.Writer, t analysis.TrailingWindow, catalog metrics.Catalog) error {
	if t.Start.IsZero() {
		fmt.Fprintf(w, "TRAILING %d DAYS: no dates\n", t.Days)
		return nil
	}
	fmt.Fprintf(w, "TRAILING %d DAYS (%s..%s)\n", t.Days, t.Start.Format(warehouse.DateLayout), t.End.Format(warehouse.DateLayout))

	tw := newTable(w)
	fmt.Fprintln(tw, "METRIC\tCONTROL\tTREATMENT\tDIFF\tDAYS")
	for _, m := range t.Metrics {
		kind := kindOf(catalog, m.Metric)
		if m.Status == analysis.NonComputable {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\n", m.Metric, NA, NA, NA, m.ControlDays, m.TreatmentDays)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\n", m.Metric,
			Value(kind, m.Control), Value(kind, m.Treatment), Value(kind, m.Diff), m.ControlDays, m.TreatmentDays)
	}
	return eris.Wrap(tw.Flush(), "report: write trailing window")
}

// WriteTrend renders daily trend rows followed by the trailing-window comparison.
func WriteTrend(w io.Writer, r *analysis.TrendReport, catalog metrics.Catalog) error {
	fmt.Fprintf(w, "EXPERIMENT: %s\n\n", r.ExperimentID)

	tw := newTable(w)
	header := []string{"DATE", "VARIANT", "PERIOD", "SESSIONS"}
	for _, d := range catalog {
		header = append(header, strings.ToUpper(d.Name))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, row := range r.Rows {
		period := "pre"
		if row.ExperimentPeriod {
			period = "exp"
		}
		cells := []string{row.Date.Format(warehouse.DateLayout), row.Variant, period, counts.Sprintf("%d", row.Sessions)}
		for _, d := range catalog {
			v, ok := row.Value(d.Name)
			if !ok {
				cells = append(cells, NA)
				continue
			}
			cells = append(cells, trendValue(d.Kind, v))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return eris.Wrap(err, "report: write trend")
	}

	fmt.Fprintln(w)
	return writeTrailing(w, r.Trailing, catalog)
}

// WriteExperiments renders the experiments a warehouse holds.
func WriteExperiments(w io.Writer, exps []warehouse.ExperimentSummary) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "EXPERIMENT\tSESSIONS\tUSERS\tFIRST\tLAST")
	for _, e := range exps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ID,
			counts.Sprintf("%d", e.Sessions), counts.Sprintf("%d", e.Users),
			e.FirstDate.Format(warehouse.DateLayout), e.LastDate.Format(warehouse.DateLayout))
	}
	return eris.Wrap(tw.Flush(), "report: write experiments")
}

func kindOf(catalog metrics.Catalog, name string) metrics.Kind {
	if d, ok := catalog.Lookup(name); ok {
		return d.Kind
	}
	return metrics.KindContinuous
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
