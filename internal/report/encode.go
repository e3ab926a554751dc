package report

import (
	"encoding/csv"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/Usaidkhxn/LaunchLens/internal/analysis"
	"github.com/Usaidkhxn/LaunchLens/internal/metrics"
)

// Write encodes b in format f.
func Write(w io.Writer, b *analysis.Bundle, f Format, catalog metrics.Catalog) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, b.Rows)
	case FormatJSON:
		return WriteJSON(w, b)
	case FormatYAML:
		return WriteYAML(w, b)
	case FormatText:
		return WriteText(w, b, catalog)
	}
	return eris.Wrapf(ErrUnknownFormat, "%q", f)
}

// WriteCSV writes the readout rows with a Columns header.
func WriteCSV(w io.Writer, rows []analysis.ReadoutRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return eris.Wrap(err, "report: write csv header")
	}
	for _, r := range FormatRows(rows) {
		if err := cw.Write(r.Strings()); err != nil {
			return eris.Wrapf(err, "report: write csv row %s", r.Metric)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush csv")
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "report: encode json")
}

// WriteYAML writes v as YAML.
func WriteYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "report: encode yaml")
	}
	return eris.Wrap(enc.Close(), "report: close yaml")
}
