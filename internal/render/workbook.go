package render

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/sells-group/recycling-monitor/internal/forms"
	"github.com/sells-group/recycling-monitor/internal/model"
	"github.com/sells-group/recycling-monitor/internal/normalize"
	"github.com/sells-group/recycling-monitor/internal/reconcile"
)

// notFlagged fills indicator cells of a discrepant record that were not flagged.
const notFlagged = "-"

// Workbook writes one division's reconciled state to path: its tracked tabs
// in snapshot order, then the exception ledgers the form keeps.
func Workbook(path string, form *forms.Form, div reconcile.DivisionResult) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	w := &writer{f: f}
	for _, tab := range div.Tabs {
		if err := w.tab(tab); err != nil {
			return err
		}
	}
	if form.Mode == forms.Monthly || len(div.Irregular) > 0 {
		if err := w.irregular(div.Irregular); err != nil {
			return err
		}
	}
	if form.HasIndicators() || len(div.Discrepant) > 0 {
		if err := w.discrepant(form, div.Discrepant); err != nil {
			return err
		}
	}

	return atomicWrite(path, func(tmp string) error {
		return eris.Wrapf(f.SaveAs(tmp), "render: save workbook of %s", div.Division)
	})
}

type writer struct {
	f      *excelize.File
	sheets int
}

// sheet creates the next sheet. The first one takes over the default sheet
// of a new file.
func (w *writer) sheet(name string) error {
	defer func() { w.sheets++ }()
	if w.sheets == 0 {
		return eris.Wrapf(w.f.SetSheetName(w.f.GetSheetName(0), name), "render: name sheet %s", name)
	}
	_, err := w.f.NewSheet(name)
	return eris.Wrapf(err, "render: create sheet %s", name)
}

func (w *writer) row(sheet string, n int, values []any) error {
	if len(values) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return eris.Wrap(err, "render: cell name")
	}
	return eris.Wrapf(w.f.SetSheetRow(sheet, cell, &values), "render: write %s row %d", sheet, n)
}

// dropdown offers choices on rows 2..last of the given column.
func (w *writer) dropdown(sheet string, col, last int, choices []string) error {
	if last < 2 {
		return nil
	}
	name, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return eris.Wrap(err, "render: column name")
	}
	dv := excelize.NewDataValidation(true)
	dv.Sqref = fmt.Sprintf("%s2:%s%d", name, name, last)
	if err := dv.SetDropList(choices); err != nil {
		return eris.Wrap(err, "render: drop list")
	}
	return eris.Wrapf(w.f.AddDataValidation(sheet, dv), "render: validation on %s", sheet)
}

func cells(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func (w *writer) tab(tab model.Tab) error {
	if err := w.sheet(tab.Name); err != nil {
		return err
	}
	header := tab.Header
	if len(header) == 0 {
		header = forms.TabHeaders
	}
	if err := w.row(tab.Name, 1, cells(header)); err != nil {
		return err
	}

	for i, r := range tab.Rows {
		if err := w.row(tab.Name, i+2, tabRow(r)); err != nil {
			return err
		}
	}

	last := len(tab.Rows) + 1
	if err := w.dropdown(tab.Name, forms.ColStatus+1, last, forms.StatusChoices); err != nil {
		return err
	}
	return w.dropdown(tab.Name, forms.ColValidated+1, last, forms.YesNo)
}

// tabRow lays a snapshot row out in the fixed tab columns. Unkeyed rows are
// written back exactly as they were read.
func tabRow(r model.SnapshotRow) []any {
	if !r.Keyed {
		return cells(r.Extra)
	}
	out := []any{
		r.Region,
		r.Municipality,
		r.Unit,
		r.Technician,
		string(r.Status),
		normalize.JoinDates(r.Dates),
		string(r.Validated),
	}
	return append(out, cells(r.Extra)...)
}

func (w *writer) irregular(records []model.IrregularRecord) error {
	name := forms.IrregularSheet
	if err := w.sheet(name); err != nil {
		return err
	}
	if err := w.row(name, 1, cells(forms.IrregularHeaders)); err != nil {
		return err
	}
	for i, r := range records {
		values := []any{
			r.Region,
			r.Municipality,
			r.Unit,
			r.Technician,
			r.SubmittedAt,
			r.Period,
			string(r.Validated),
			r.Notes,
			r.DeleteFormIDs,
			string(r.ValidatedIT),
			r.ITResponse,
		}
		if err := w.row(name, i+2, values); err != nil {
			return err
		}
	}

	last := len(records) + 1
	if err := w.dropdown(name, 7, last, forms.YesNo); err != nil {
		return err
	}
	return w.dropdown(name, 10, last, forms.YesNo)
}

func (w *writer) discrepant(form *forms.Form, records []model.DiscrepantRecord) error {
	name := forms.DiscrepantSheet
	if err := w.sheet(name); err != nil {
		return err
	}
	header := form.DiscrepantHeaders()
	if err := w.row(name, 1, cells(header)); err != nil {
		return err
	}

	for i, r := range records {
		values := []any{r.Region, r.Municipality, r.Unit, r.Technician, r.Period, r.SubmittedAt}
		for _, ind := range form.IndicatorNames() {
			if v, ok := r.Values[ind]; ok {
				values = append(values, v)
				continue
			}
			values = append(values, notFlagged)
		}
		values = append(values, string(r.Validated), r.Notes)
		if err := w.row(name, i+2, values); err != nil {
			return err
		}
	}

	return w.dropdown(name, len(header)-1, len(records)+1, forms.YesNoCorrected)
}
