package ingest

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/recycling-monitor/internal/fetcher"
	"github.com/sells-group/recycling-monitor/internal/forms"
	"github.com/sells-group/recycling-monitor/internal/model"
	"github.com/sells-group/recycling-monitor/internal/normalize"
)

// Averages reads the historical averages table of a form. Columns are
// positional: the form names the letters of the municipality, the unit and
// each indicator's two semester averages.
func Averages(ctx context.Context, path string, form *forms.Form, opts fetcher.CSVOptions) (model.AverageTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open averages %s", path)
	}
	defer f.Close() //nolint:errcheck

	_, rows, err := fetcher.ReadCSV(ctx, f, opts)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read averages %s", path)
	}

	table := ParseAverages(rows, form)
	zap.L().Info("ingest: averages loaded",
		zap.String("form", form.Name),
		zap.String("path", path),
		zap.Int("entities", len(table)),
	)
	return table, nil
}

// ParseAverages builds the table from data rows (header already removed).
// Rows without a municipality or unit are skipped; a later row for the same
// entity replaces an earlier one. Cells that are not numbers become nil.
func ParseAverages(rows [][]string, form *forms.Form) model.AverageTable {
	muni := forms.ColumnIndex(form.AverageMunicipality)
	unit := forms.ColumnIndex(form.AverageUnit)

	table := make(model.AverageTable)
	for _, row := range rows {
		m, u := cell(row, muni), cell(row, unit)
		if m == "" || u == "" {
			continue
		}
		entity, ok := normalize.Key(m, u)
		if !ok {
			continue
		}

		hist := make(model.HistoricalAverage, len(form.Indicators))
		for _, ind := range form.Indicators {
			hist[ind.Name] = model.SemesterAverages{
				H1: number(cell(row, forms.ColumnIndex(ind.AverageH1))),
				H2: number(cell(row, forms.ColumnIndex(ind.AverageH2))),
			}
		}
		table[entity] = hist
	}
	return table
}

func number(s string) *float64 {
	v, ok := normalize.Number(s)
	if !ok {
		return nil
	}
	return &v
}
