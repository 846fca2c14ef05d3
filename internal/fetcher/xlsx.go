package fetcher

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions configures ReadXLSX.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	SkipRows   int    // number of header rows to skip
}

// Workbook is an opened XLSX file.
type Workbook struct {
	f *xlsx.File
}

// OpenXLSX opens an XLSX file for reading.
func OpenXLSX(path string) (*Workbook, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	return &Workbook{f: f}, nil
}

// SheetNames returns the sheet names in workbook order.
func (w *Workbook) SheetNames() []string {
	names := make([]string, len(w.f.Sheets))
	for i, s := range w.f.Sheets {
		names[i] = s.Name
	}
	return names
}

// HasSheet reports whether the workbook has a sheet called name.
func (w *Workbook) HasSheet(name string) bool {
	_, ok := w.f.Sheet[name]
	return ok
}

// Rows returns every row of the named sheet as strings.
func (w *Workbook) Rows(name string) ([][]string, error) {
	sheet, err := getSheet(w.f, XLSXOptions{SheetName: name})
	if err != nil {
		return nil, err
	}
	return sheetRows(sheet, 0), nil
}

// ReadXLSX reads one sheet of an XLSX file and returns its rows as string slices.
func ReadXLSX(path string, opts XLSXOptions) ([][]string, error) {
	w, err := OpenXLSX(path)
	if err != nil {
		return nil, err
	}
	sheet, err := getSheet(w.f, opts)
	if err != nil {
		return nil, err
	}
	return sheetRows(sheet, opts.SkipRows), nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func sheetRows(sheet *xlsx.Sheet, skip int) [][]string {
	var rows [][]string
	for i, row := range sheet.Rows {
		if i < skip {
			continue
		}
		rows = append(rows, rowToStrings(row))
	}
	return rows
}

func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
