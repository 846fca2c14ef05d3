// Package ledger merges the Irregulares and Discrepantes exception ledgers of
// a division across runs, keeping what reviewers already wrote.
//
// The two ledgers treat resolved entries differently. An irregular entry
// whose submission is no longer in the batch is dropped. A discrepant entry
// that no longer reproduces is emitted once more as Corrigido and dropped on
// the run after that.
package ledger

import (
	"sort"
	"strings"

	"github.com/sells-group/recycling-monitor/internal/deviation"
	"github.com/sells-group/recycling-monitor/internal/model"
	"github.com/sells-group/recycling-monitor/internal/normalize"
)

// IrregularKey returns the submission key of an irregular record. ok is false
// when the record has no usable municipality.
func IrregularKey(r model.IrregularRecord) (model.SubmissionKey, bool) {
	entity, ok := normalize.Key(r.Municipality, r.Unit)
	if !ok {
		return model.SubmissionKey{}, false
	}
	return model.SubmissionKey{
		Entity: entity,
		Date:   strings.TrimSpace(r.SubmittedAt),
		Period: strings.TrimSpace(r.Period),
	}, true
}

// IrregularCandidates turns an aggregate for an untracked period into one
// irregular record per submission date.
func IrregularCandidates(agg *model.Aggregate, region string) []model.IrregularRecord {
	out := make([]model.IrregularRecord, 0, len(agg.Dates))
	for _, d := range agg.Dates {
		out = append(out, model.IrregularRecord{
			Region:       region,
			Municipality: agg.Municipality,
			Unit:         agg.Unit,
			Technician:   agg.Technician,
			SubmittedAt:  d,
			Period:       agg.Key.Period.String(),
			Validated:    model.ValidationNo,
			ValidatedIT:  model.ValidationNo,
		})
	}
	return out
}

// MergeIrregular rebuilds the Irregulares ledger. Previous entries are kept
// only while their submission is still in the current batch; their review
// columns collapse to Sim or Não. Candidates not already present are appended
// with both validations set to Não.
func MergeIrregular(prev, candidates []model.IrregularRecord, submitted map[model.SubmissionKey]bool) ([]model.IrregularRecord, model.LedgerCounts) {
	var counts model.LedgerCounts
	seen := make(map[model.SubmissionKey]bool, len(prev)+len(candidates))
	out := make([]model.IrregularRecord, 0, len(prev)+len(candidates))

	for _, r := range prev {
		key, ok := IrregularKey(r)
		if !ok || !submitted[key] || seen[key] {
			counts.Dropped++
			continue
		}
		seen[key] = true
		r.Validated = r.Validated.YesOrNo()
		r.ValidatedIT = r.ValidatedIT.YesOrNo()
		out = append(out, r)
		counts.Migrated++
	}

	for _, r := range candidates {
		key, ok := IrregularKey(r)
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		r.Validated = model.ValidationNo
		r.ValidatedIT = model.ValidationNo
		out = append(out, r)
		counts.New++
	}

	counts.Total = len(out)
	return out, counts
}

// DiscrepantKey returns the (entity, period) key of a discrepant record. ok
// is false when municipality, unit or period is blank.
func DiscrepantKey(r model.DiscrepantRecord) (string, bool) {
	if strings.TrimSpace(r.Unit) == "" || strings.TrimSpace(r.Period) == "" {
		return "", false
	}
	entity, ok := normalize.Key(r.Municipality, r.Unit)
	if !ok {
		return "", false
	}
	return entity + "|" + strings.TrimSpace(r.Period), true
}

// DiscrepantRecordFor builds the ledger record of a flagged aggregate.
func DiscrepantRecordFor(agg *model.Aggregate, region string, findings map[string]model.Finding) model.DiscrepantRecord {
	rec := model.DiscrepantRecord{
		Region:       region,
		Municipality: agg.Municipality,
		Unit:         agg.Unit,
		Technician:   agg.Technician,
		Period:       agg.Key.Period.String(),
		SubmittedAt:  agg.FirstDate(),
		Values:       make(map[string]float64, len(findings)),
		Deviations:   make(map[string]float64, len(findings)),
	}
	for name, f := range findings {
		rec.Values[name] = f.Value
		rec.Deviations[name] = f.Deviation
	}
	return rec
}

// MergeDiscrepant rebuilds the Discrepantes ledger from the records flagged
// in this run and the previous ledger. Current records take over the previous
// review when their flagged values are unchanged. Previous records that no
// longer reproduce are emitted once as Corrigido with their last values. The
// result is sorted by municipality, unit and period.
func MergeDiscrepant(prev, current []model.DiscrepantRecord) ([]model.DiscrepantRecord, model.LedgerCounts) {
	var counts model.LedgerCounts

	prevByKey := make(map[string]*model.DiscrepantRecord, len(prev))
	var prevOrder []string
	for i := range prev {
		key, ok := DiscrepantKey(prev[i])
		if !ok {
			counts.Dropped++
			continue
		}
		if _, dup := prevByKey[key]; !dup {
			prevOrder = append(prevOrder, key)
		}
		prevByKey[key] = &prev[i]
	}

	out := make([]model.DiscrepantRecord, 0, len(current)+len(prev))
	currentKeys := make(map[string]bool, len(current))
	for _, rec := range current {
		key, ok := DiscrepantKey(rec)
		if !ok || currentKeys[key] {
			continue
		}
		currentKeys[key] = true

		old := prevByKey[key]
		merged := deviation.CarryOver(rec, old)
		switch {
		case old == nil:
			counts.New++
		case deviation.SameValues(rec.Values, old.Values) && old.Validated != model.ValidationCorrected:
			counts.Carried++
		default:
			counts.Reset++
		}
		out = append(out, merged)
	}

	for _, key := range prevOrder {
		if currentKeys[key] {
			continue
		}
		old := prevByKey[key]
		if old.Validated == model.ValidationCorrected {
			counts.Dropped++
			continue
		}
		corrected := *old
		corrected.Validated = model.ValidationCorrected
		corrected.Deviations = nil
		out = append(out, corrected)
		counts.Corrected++
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Municipality != b.Municipality {
			return a.Municipality < b.Municipality
		}
		if a.Unit != b.Unit {
			return a.Unit < b.Unit
		}
		return a.Period < b.Period
	})

	counts.Total = len(out)
	return out, counts
}
