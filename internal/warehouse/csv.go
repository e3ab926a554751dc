package warehouse

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// sessionColumns is the header a fact_sessions CSV export must carry, in any
// order. revenue may be empty for sessions without a purchase.
var sessionColumns = []string{
	"user_id", "session_id", "experiment_id", "variant", "event_date",
	"is_experiment_period", "has_impression", "has_click", "has_add_to_cart",
	"has_purchase", "revenue",
}

// ReadSessionsCSV parses a fact_sessions CSV export. A missing column is
// reported as a *SchemaError against the "csv" relation.
func ReadSessionsCSV(r io.Reader) ([]SessionFact, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, eris.New("csv: empty input")
	}
	if err != nil {
		return nil, eris.Wrap(err, "csv: read header")
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range sessionColumns {
		if _, ok := idx[c]; !ok {
			return nil, &SchemaError{Relation: "csv", Column: c}
		}
	}

	var facts []SessionFact
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "csv: line %d", line)
		}

		f, err := parseSessionRecord(rec, idx)
		if err != nil {
			return nil, eris.Wrapf(err, "csv: line %d", line)
		}
		facts = append(facts, f)
	}
	return facts, nil
}

func parseSessionRecord(rec []string, idx map[string]int) (SessionFact, error) {
	get := func(col string) string {
		return strings.TrimSpace(rec[idx[col]])
	}

	f := SessionFact{
		UserID:       get("user_id"),
		SessionID:    get("session_id"),
		ExperimentID: get("experiment_id"),
		Variant:      get("variant"),
		Revenue:      decimal.Zero,
	}
	if f.ExperimentID == "" || f.Variant == "" {
		return f, eris.New("experiment_id and variant are required")
	}

	var err error
	if f.EventDate, err = ParseDate(get("event_date")); err != nil {
		return f, err
	}

	flags := []struct {
		col string
		dst *bool
	}{
		{"is_experiment_period", &f.ExperimentPeriod},
		{"has_impression", &f.Impression},
		{"has_click", &f.Click},
		{"has_add_to_cart", &f.AddToCart},
		{"has_purchase", &f.Purchase},
	}
	for _, fl := range flags {
		if *fl.dst, err = strconv.ParseBool(get(fl.col)); err != nil {
			return f, eris.Wrapf(err, "%s", fl.col)
		}
	}

	if v := get("revenue"); v != "" {
		if f.Revenue, err = decimal.NewFromString(v); err != nil {
			return f, eris.Wrap(err, "revenue")
		}
	}
	return f, nil
}
