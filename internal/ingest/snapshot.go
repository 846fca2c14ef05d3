package ingest

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/recycling-monitor/internal/fetcher"
	"github.com/sells-group/recycling-monitor/internal/forms"
	"github.com/sells-group/recycling-monitor/internal/model"
	"github.com/sells-group/recycling-monitor/internal/normalize"
)

// Snapshot reads the tracking workbook of one division.
func Snapshot(path, division string, form *forms.Form) (*model.Snapshot, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrapf(err, "ingest: snapshot of %s", division)
	}
	wb, err := fetcher.OpenXLSX(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: snapshot of %s", division)
	}

	snap, err := ReadSnapshot(wb, division, form)
	if err != nil {
		return nil, err
	}
	zap.L().Info("ingest: snapshot loaded",
		zap.String("division", division),
		zap.String("path", path),
		zap.Int("tabs", len(snap.Tabs)),
		zap.Int("irregular", len(snap.Irregular)),
		zap.Int("discrepant", len(snap.Discrepant)),
	)
	return snap, nil
}

// ReadSnapshot extracts the tracked tabs and both exception ledgers from an
// opened workbook. Monthly forms track every sheet named MM.YY; single forms
// track the form's own sheet.
func ReadSnapshot(wb *fetcher.Workbook, division string, form *forms.Form) (*model.Snapshot, error) {
	snap := &model.Snapshot{Division: division}

	for _, name := range wb.SheetNames() {
		var period model.Period
		switch form.Mode {
		case forms.Monthly:
			p, ok := model.ParsePeriod(name)
			if !ok {
				continue
			}
			period = p
		default:
			if name != form.Sheet {
				continue
			}
		}

		rows, err := wb.Rows(name)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read tab %s of %s", name, division)
		}
		snap.Tabs = append(snap.Tabs, ParseTab(name, period, rows, form))
	}

	if form.Mode == forms.Single && len(snap.Tabs) == 0 {
		zap.L().Warn("ingest: tracked sheet not found",
			zap.String("division", division),
			zap.String("sheet", form.Sheet),
		)
	}

	if wb.HasSheet(forms.IrregularSheet) {
		rows, err := wb.Rows(forms.IrregularSheet)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read %s of %s", forms.IrregularSheet, division)
		}
		snap.Irregular = ParseIrregular(rows, division)
	}
	if wb.HasSheet(forms.DiscrepantSheet) {
		rows, err := wb.Rows(forms.DiscrepantSheet)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read %s of %s", forms.DiscrepantSheet, division)
		}
		snap.Discrepant = ParseDiscrepant(rows, division, form)
	}

	return snap, nil
}

// ParseTab reads one tracked tab. The first row is the header. Fully blank
// rows are dropped; rows without a municipality are kept unkeyed so they
// survive the run untouched.
func ParseTab(name string, period model.Period, rows [][]string, form *forms.Form) model.Tab {
	tab := model.Tab{Name: name, Period: period}
	if len(rows) == 0 {
		return tab
	}
	tab.Header = trimTrailing(rows[0])

	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		unit := ""
		if form.HasUnit {
			unit = cell(row, forms.ColUnit)
		}
		entity, ok := normalize.Key(cell(row, forms.ColMunicipality), unit)
		if !ok {
			// Kept as raw cells so nothing is lost on the way back out.
			tab.Rows = append(tab.Rows, model.SnapshotRow{Extra: trimTrailing(append([]string(nil), row...))})
			continue
		}

		r := model.SnapshotRow{
			Key:          model.PeriodKey{Entity: entity, Period: period},
			Period:       period,
			Region:       cell(row, forms.ColRegion),
			Municipality: cell(row, forms.ColMunicipality),
			Unit:         cell(row, forms.ColUnit),
			Technician:   cell(row, forms.ColTechnician),
			Status:       model.ParseStatus(cell(row, forms.ColStatus)),
			Dates:        normalize.SplitDates(cell(row, forms.ColDates)),
			Validated:    model.ParseValidation(cell(row, forms.ColValidated)),
			Keyed:        true,
		}
		if len(row) > forms.ColExtra {
			r.Extra = trimTrailing(append([]string(nil), row[forms.ColExtra:]...))
		}
		tab.Rows = append(tab.Rows, r)
	}
	return tab
}

func trimTrailing(row []string) []string {
	n := len(row)
	for n > 0 && row[n-1] == "" {
		n--
	}
	if n == 0 {
		return nil
	}
	return row[:n]
}
