package render

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/sells-group/recycling-monitor/internal/report"
)

// Sheet names of the follow-up reports.
const (
	GapsSheet       = "Lacunas Encontradas"
	EngagementSheet = "Engajamento"
)

// Engagement cell labels of a single-period form.
const (
	engagementSent    = "Enviado"
	engagementMissing = "Ausente"
)

// GapsWorkbook writes the gap report to path as a single sheet.
func GapsWorkbook(path string, gaps []report.Gap) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	w := &writer{f: f}
	if err := w.sheet(GapsSheet); err != nil {
		return err
	}
	header := []any{"Divisão", "Regional", "Município", "UVR", "Mês da Lacuna", "Data de Referência"}
	if err := w.row(GapsSheet, 1, header); err != nil {
		return err
	}
	for i, g := range gaps {
		values := []any{g.Division, g.Region, g.Municipality, g.Unit, g.Period.String(), g.ReferenceDate}
		if err := w.row(GapsSheet, i+2, values); err != nil {
			return err
		}
	}

	return atomicWrite(path, func(tmp string) error {
		return eris.Wrap(f.SaveAs(tmp), "render: save gap report")
	})
}

// EngagementWorkbook writes one engagement sheet per division summary. The
// single-period forms and the expected month count head their columns.
func EngagementWorkbook(path string, sums []report.Summary) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	w := &writer{f: f}
	for _, sum := range sums {
		name := EngagementSheet
		if sum.Division != "" {
			name += " " + sum.Division
		}
		if err := w.sheet(name); err != nil {
			return err
		}

		header := []any{"Regional", "Município", "UVR"}
		for _, form := range sum.SingleForms {
			header = append(header, form)
		}
		header = append(header,
			fmt.Sprintf("Mensal (Esperado: %d)", sum.ExpectedMonths),
			"Engajamento (%)",
			"Nível de Engajamento",
		)
		if err := w.row(name, 1, header); err != nil {
			return err
		}

		for i, e := range sum.Rows {
			values := []any{e.Region, e.Municipality, e.Unit}
			for _, form := range sum.SingleForms {
				label := engagementMissing
				if e.Sent[form] {
					label = engagementSent
				}
				values = append(values, label)
			}
			pct, _ := e.Percent.Float64()
			values = append(values, e.Monthly, pct, string(e.Level))
			if err := w.row(name, i+2, values); err != nil {
				return err
			}
		}
	}
	if len(sums) == 0 {
		if err := w.sheet(EngagementSheet); err != nil {
			return err
		}
	}

	return atomicWrite(path, func(tmp string) error {
		return eris.Wrap(f.SaveAs(tmp), "render: save engagement report")
	})
}
