// Package report derives follow-up views from tracking snapshots: the gap
// report of tracked rows that still record no submission, and the per-entity
// engagement summary across forms.
package report

import (
	"github.com/sells-group/recycling-monitor/internal/forms"
	"github.com/sells-group/recycling-monitor/internal/model"
	"github.com/sells-group/recycling-monitor/internal/normalize"
)

// Gap is a tracked row with no recorded submission.
type Gap struct {
	Division     string          `json:"division"`
	Region       string          `json:"region"`
	Municipality string          `json:"municipality"`
	Unit         string          `json:"unit"`
	Period       model.Period    `json:"period"`
	Key          model.PeriodKey `json:"-"`

	// ReferenceDate is the raw reference date of a submission found for the
	// same entity and period, or "" when none was found.
	ReferenceDate string `json:"reference_date,omitempty"`
}

// Found reports whether a submission was matched to the gap.
func (g Gap) Found() bool {
	return g.ReferenceDate != ""
}

// Gaps lists the keyed rows of snap that record no dates and carry no manual
// status. periods restricts the tabs inspected; nil inspects every tab.
func Gaps(snap *model.Snapshot, periods map[model.Period]bool) []Gap {
	var out []Gap
	for _, tab := range snap.Tabs {
		if periods != nil && !periods[tab.Period] {
			continue
		}
		for _, r := range tab.Rows {
			if !r.Keyed || len(r.Dates) > 0 || r.Status.Sticky() {
				continue
			}
			out = append(out, Gap{
				Division:     snap.Division,
				Region:       r.Region,
				Municipality: r.Municipality,
				Unit:         r.Unit,
				Period:       tab.Period,
				Key:          r.Key,
			})
		}
	}
	return out
}

// Match looks every gap up in a submission export by entity and reference
// month and records the first matching reference date. Submissions without a
// parseable reference date are ignored.
func Match(gaps []Gap, subs []model.Submission, form *forms.Form) []Gap {
	refs := make(map[model.PeriodKey]string, len(subs))
	for _, s := range subs {
		unit := ""
		if form.HasUnit {
			unit = s.Unit
		}
		entity, ok := normalize.Key(s.Municipality, unit)
		if !ok {
			continue
		}
		t, ok := normalize.ParseTime(s.ReferenceDate)
		if !ok {
			continue
		}
		key := model.PeriodKey{Entity: entity, Period: model.PeriodOf(t)}
		if _, seen := refs[key]; !seen {
			refs[key] = s.ReferenceDate
		}
	}

	out := make([]Gap, len(gaps))
	for i, g := range gaps {
		g.ReferenceDate = refs[g.Key]
		out[i] = g
	}
	return out
}

// FoundOnly keeps the gaps a submission was matched to.
func FoundOnly(gaps []Gap) []Gap {
	var out []Gap
	for _, g := range gaps {
		if g.Found() {
			out = append(out, g)
		}
	}
	return out
}
