package ingest

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/recycling-monitor/internal/fetcher"
	"github.com/sells-group/recycling-monitor/internal/forms"
	"github.com/sells-group/recycling-monitor/internal/model"
)

// Submissions reads a form export CSV.
func Submissions(ctx context.Context, path string, form *forms.Form, opts fetcher.CSVOptions) ([]model.Submission, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open submissions %s", path)
	}
	defer f.Close() //nolint:errcheck

	header, rows, err := fetcher.ReadCSV(ctx, f, opts)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read submissions %s", path)
	}

	subs, err := ParseSubmissions(header, rows, form)
	if err != nil {
		return nil, err
	}
	zap.L().Info("ingest: submissions loaded",
		zap.String("form", form.Name),
		zap.String("path", path),
		zap.Int("rows", len(subs)),
	)
	return subs, nil
}

// ParseSubmissions maps export rows to submissions using the form's column
// names. Indicator columns missing from the export fall back to their fixed
// position when the form defines one, and are left out otherwise.
func ParseSubmissions(header []string, rows [][]string, form *forms.Form) ([]model.Submission, error) {
	idx := headerIndex(header)
	cols := form.Columns

	required := []string{cols.Municipality, cols.SubmittedAt}
	if form.HasUnit {
		required = append(required, cols.Unit)
	}
	if form.Mode == forms.Monthly {
		required = append(required, cols.ReferenceDate)
	}
	for _, name := range required {
		if column(idx, name) < 0 {
			return nil, eris.Errorf("ingest: export has no %q column for %s", name, form.Name)
		}
	}

	muni := column(idx, cols.Municipality)
	sent := column(idx, cols.SubmittedAt)
	unit, ref, tech := -1, -1, -1
	if cols.Unit != "" {
		unit = column(idx, cols.Unit)
	}
	if cols.ReferenceDate != "" {
		ref = column(idx, cols.ReferenceDate)
	}
	if cols.Technician != "" {
		tech = column(idx, cols.Technician)
	}

	indicators := make(map[string]int, len(form.Indicators))
	for _, ind := range form.Indicators {
		i := column(idx, ind.Column)
		if i < 0 && ind.FallbackIndex >= 0 && ind.FallbackIndex < len(header) {
			i = ind.FallbackIndex
		}
		if i < 0 {
			zap.L().Debug("ingest: indicator column not in export",
				zap.String("indicator", ind.Name),
				zap.String("column", ind.Column),
			)
			continue
		}
		indicators[ind.Name] = i
	}

	subs := make([]model.Submission, 0, len(rows))
	for n, row := range rows {
		if blank(row) {
			continue
		}
		s := model.Submission{
			Row:           n + 2,
			Municipality:  cell(row, muni),
			Unit:          cell(row, unit),
			SubmittedAt:   cell(row, sent),
			ReferenceDate: cell(row, ref),
			Technician:    cell(row, tech),
		}
		if len(indicators) > 0 {
			s.Indicators = make(map[string]string, len(indicators))
			for name, i := range indicators {
				if v := cell(row, i); v != "" {
					s.Indicators[name] = v
				}
			}
		}
		subs = append(subs, s)
	}
	return subs, nil
}
