// Package classify computes the new tracked status of an (entity, period)
// from this run's aggregate and the row recorded by the previous run.
package classify

import (
	"slices"
	"time"

	"github.com/sells-group/recycling-monitor/internal/forms"
	"github.com/sells-group/recycling-monitor/internal/model"
)

// Reason explains which rule produced a classification.
type Reason string

const (
	// ReasonSubmitted means a submission arrived and replaced the row's
	// status and dates.
	ReasonSubmitted Reason = "submitted"
	// ReasonManual means the row carries a manual status that is never
	// reclassified automatically.
	ReasonManual Reason = "manual"
	// ReasonRecorded means the row already records a submission from an
	// earlier run.
	ReasonRecorded Reason = "recorded"
	// ReasonLate means the row was marked late.
	ReasonLate Reason = "late"
	// ReasonOpen means nothing was due yet, or nothing applied.
	ReasonOpen Reason = "open"
)

// Transition describes what Classify did to a row.
type Transition struct {
	Reason Reason
	From   model.Status
	To     model.Status
	// ReviewReset is true when the row gained submission dates and its
	// reviewer validation was forced back to Não.
	ReviewReset bool
}

// Changed reports whether the status moved.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Classify returns prev updated for this run. agg is nil when nothing was
// submitted for the row's (entity, period). now fixes the evaluation month and
// mode selects the lateness rule of the form.
func Classify(prev model.SnapshotRow, agg *model.Aggregate, now time.Time, mode forms.Mode) (model.SnapshotRow, Transition) {
	row := prev
	row.Dates = slices.Clone(prev.Dates)
	row.Extra = slices.Clone(prev.Extra)

	tr := Transition{From: prev.Status, To: prev.Status, Reason: ReasonOpen}

	if agg != nil {
		if len(agg.Dates) > len(prev.Dates) {
			row.Validated = model.ValidationNo
			tr.ReviewReset = true
		}
		row.Status = agg.Status
		row.Dates = slices.Clone(agg.Dates)
		tr.To = row.Status
		tr.Reason = ReasonSubmitted
		return row, tr
	}

	switch {
	case prev.Status.Sticky():
		tr.Reason = ReasonManual
		return row, tr
	case len(prev.Dates) > 0:
		tr.Reason = ReasonRecorded
		return row, tr
	}

	if mode == forms.Single {
		if prev.Status == model.StatusNone {
			row.Status = model.StatusLate
			tr.Reason = ReasonLate
		}
		tr.To = row.Status
		return row, tr
	}

	if prev.Period.IsZero() {
		return row, tr
	}
	switch elapsed := prev.Period.MonthsUntil(now); {
	case elapsed == 1:
		row.Status = model.StatusLate
		tr.Reason = ReasonLate
	case elapsed >= 2:
		row.Status = model.StatusLateTwoOrMore
		tr.Reason = ReasonLate
	}
	tr.To = row.Status
	return row, tr
}
