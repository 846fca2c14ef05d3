package ingest

import (
	"go.uber.org/zap"

	"github.com/sells-group/recycling-monitor/internal/forms"
	"github.com/sells-group/recycling-monitor/internal/model"
	"github.com/sells-group/recycling-monitor/internal/normalize"
)

// ParseIrregular reads an Irregulares sheet. Columns are matched by header
// name. A sheet without the columns that identify a submission is ignored
// with a warning; the ledger then starts empty.
func ParseIrregular(rows [][]string, division string) []model.IrregularRecord {
	if len(rows) == 0 {
		return nil
	}
	idx := headerIndex(rows[0])

	muni := column(idx, forms.HeaderMunicipality)
	unit := column(idx, forms.HeaderUnit)
	sent := column(idx, forms.HeaderSubmittedAt)
	period := column(idx, forms.HeaderPeriod, forms.HeaderPeriodAlt)
	if muni < 0 || unit < 0 || sent < 0 || period < 0 {
		zap.L().Warn("ingest: Irregulares sheet lacks expected columns, previous entries ignored",
			zap.String("division", division),
			zap.Strings("header", rows[0]),
		)
		return nil
	}

	region := column(idx, forms.HeaderRegion)
	tech := column(idx, forms.HeaderTechnician, forms.HeaderTechnicianAlt)
	validated := column(idx, forms.HeaderValidated)
	notes := column(idx, forms.HeaderNotes)
	deleteIDs := column(idx, forms.HeaderDeleteIDs)
	validatedIT := column(idx, forms.HeaderValidatedIT)
	itResponse := column(idx, forms.HeaderITResponse)

	var out []model.IrregularRecord
	for _, row := range rows[1:] {
		if cell(row, muni) == "" {
			continue
		}
		out = append(out, model.IrregularRecord{
			Region:        cell(row, region),
			Municipality:  cell(row, muni),
			Unit:          cell(row, unit),
			Technician:    cell(row, tech),
			SubmittedAt:   cell(row, sent),
			Period:        cell(row, period),
			Validated:     model.ParseValidation(cell(row, validated)),
			Notes:         cell(row, notes),
			DeleteFormIDs: cell(row, deleteIDs),
			ValidatedIT:   model.ParseValidation(cell(row, validatedIT)),
			ITResponse:    cell(row, itResponse),
		})
	}
	return out
}

// ParseDiscrepant reads a Discrepantes sheet. Indicator values are read from
// the columns named after the form's indicators; cells that are not numbers
// (the "-" written for indicators that were not flagged) are left out.
func ParseDiscrepant(rows [][]string, division string, form *forms.Form) []model.DiscrepantRecord {
	if len(rows) == 0 {
		return nil
	}
	idx := headerIndex(rows[0])

	muni := column(idx, forms.HeaderMunicipality)
	unit := column(idx, forms.HeaderUnit)
	period := column(idx, forms.HeaderPeriodAlt, forms.HeaderPeriod)
	validated := column(idx, forms.HeaderValidated)
	notes := column(idx, forms.HeaderNotes)
	tech := column(idx, forms.HeaderTechnicianAlt, forms.HeaderTechnician)
	sent := column(idx, forms.HeaderSubmittedAt)
	if muni < 0 || unit < 0 || period < 0 || validated < 0 || notes < 0 || tech < 0 || sent < 0 {
		zap.L().Warn("ingest: Discrepantes sheet lacks expected columns, review decisions will not carry over",
			zap.String("division", division),
			zap.Strings("header", rows[0]),
		)
		return nil
	}
	region := column(idx, forms.HeaderRegion)

	indicators := make(map[string]int, len(form.Indicators))
	for _, name := range form.IndicatorNames() {
		if i := column(idx, name); i >= 0 {
			indicators[name] = i
		}
	}

	var out []model.DiscrepantRecord
	for _, row := range rows[1:] {
		if cell(row, muni) == "" {
			continue
		}
		r := model.DiscrepantRecord{
			Region:       cell(row, region),
			Municipality: cell(row, muni),
			Unit:         cell(row, unit),
			Technician:   cell(row, tech),
			Period:       cell(row, period),
			SubmittedAt:  cell(row, sent),
			Values:       make(map[string]float64),
			Validated:    model.ParseValidation(cell(row, validated)),
			Notes:        cell(row, notes),
		}
		for name, i := range indicators {
			if v, ok := normalize.Number(cell(row, i)); ok {
				r.Values[name] = v
			}
		}
		out = append(out, r)
	}
	return out
}
