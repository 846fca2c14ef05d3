// Package aggregate groups one run's raw submissions into a single record per
// (entity, period), detecting duplicate submissions along the way.
package aggregate

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/recycling-monitor/internal/forms"
	"github.com/sells-group/recycling-monitor/internal/model"
	"github.com/sells-group/recycling-monitor/internal/normalize"
)

// Batch is the aggregated view of a run's submissions. It is read-only once
// built and safe for concurrent readers.
type Batch struct {
	// Total is the number of submissions seen.
	Total int
	// Skipped counts submissions without a usable municipality.
	Skipped int
	// BadReference counts submissions of a monthly form whose reference date
	// could not be parsed. They are kept under the zero period.
	BadReference int

	index map[model.PeriodKey]*model.Aggregate
	order []model.PeriodKey
}

// Aggregate groups subs by entity key, and by reference period when the form
// is monthly. The first submission of a group supplies its display fields and
// indicator values; every later one only appends its date and marks the group
// as a duplicate.
func Aggregate(subs []model.Submission, form *forms.Form) *Batch {
	b := &Batch{index: make(map[model.PeriodKey]*model.Aggregate)}

	for _, s := range subs {
		b.Total++

		unit := ""
		if form.HasUnit {
			unit = s.Unit
		}
		entity, ok := normalize.Key(s.Municipality, unit)
		if !ok {
			b.Skipped++
			zap.L().Debug("aggregate: skipping submission without municipality",
				zap.String("form", form.Name),
				zap.Int("row", s.Row),
			)
			continue
		}

		var (
			period model.Period
			refAt  time.Time
			hasRef bool
		)
		if form.Mode == forms.Monthly {
			refAt, hasRef = normalize.ParseTime(s.ReferenceDate)
			if hasRef {
				period = model.PeriodOf(refAt)
			} else {
				b.BadReference++
				zap.L().Debug("aggregate: unparseable reference date",
					zap.String("form", form.Name),
					zap.Int("row", s.Row),
					zap.String("reference_date", s.ReferenceDate),
				)
			}
		}

		key := model.PeriodKey{Entity: entity, Period: period}
		date := normalize.SubmissionDate(s.SubmittedAt)

		if agg, exists := b.index[key]; exists {
			agg.Dates = append(agg.Dates, date)
			agg.Status = model.StatusDuplicate
			continue
		}

		b.index[key] = &model.Aggregate{
			Key:           key,
			Municipality:  s.Municipality,
			Unit:          unit,
			Technician:    s.Technician,
			Dates:         []string{date},
			Status:        model.StatusSent,
			Indicators:    parseIndicators(s.Indicators),
			ReferenceDate: refAt,
			HasReference:  hasRef,
		}
		b.order = append(b.order, key)
	}

	return b
}

// parseIndicators coerces raw indicator cells. Values that are missing or not
// numeric are left out so they stay distinct from a reported zero.
func parseIndicators(raw map[string]string) map[string]float64 {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for name, cell := range raw {
		if v, ok := normalize.Number(cell); ok {
			out[name] = v
		}
	}
	return out
}

// Get returns the aggregate for key.
func (b *Batch) Get(key model.PeriodKey) (*model.Aggregate, bool) {
	agg, ok := b.index[key]
	return agg, ok
}

// Len returns the number of aggregates.
func (b *Batch) Len() int {
	return len(b.order)
}

// Keys returns the aggregate keys in first-encounter order.
func (b *Batch) Keys() []model.PeriodKey {
	out := make([]model.PeriodKey, len(b.order))
	copy(out, b.order)
	return out
}

// Aggregates returns the aggregates in first-encounter order.
func (b *Batch) Aggregates() []*model.Aggregate {
	out := make([]*model.Aggregate, len(b.order))
	for i, k := range b.order {
		out[i] = b.index[k]
	}
	return out
}

// SubmissionKeys returns one key per dated submission in the batch.
func (b *Batch) SubmissionKeys() map[model.SubmissionKey]bool {
	out := make(map[model.SubmissionKey]bool)
	for _, k := range b.order {
		for _, d := range b.index[k].Dates {
			out[model.SubmissionKey{Entity: k.Entity, Date: d, Period: k.Period.String()}] = true
		}
	}
	return out
}

// Duplicates returns how many aggregates received more than one submission.
func (b *Batch) Duplicates() int {
	n := 0
	for _, agg := range b.index {
		if agg.Status == model.StatusDuplicate {
			n++
		}
	}
	return n
}
