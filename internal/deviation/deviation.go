// Package deviation flags submitted indicators that stray too far from the
// entity's historical semester averages, and carries reviewer decisions over
// between runs while the flagged values stay the same.
package deviation

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sells-group/recycling-monitor/internal/model"
)

// DefaultThreshold is the minimum relative deviation, in percent, that flags
// an indicator.
const DefaultThreshold = 60.0

// Severity band lower bounds, in percent.
const (
	bandLow    = 60.0
	bandMedium = 70.0
	bandHigh   = 80.0
)

// Analyzer compares indicator values against historical averages.
type Analyzer struct {
	Threshold float64
}

// New returns an Analyzer. A non-positive threshold selects DefaultThreshold.
func New(threshold float64) *Analyzer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Analyzer{Threshold: threshold}
}

// InWindow reports whether a period is evaluated when running at now. In the
// first semester that is the current year's first semester plus the previous
// year's second semester; in the second semester, the whole current year.
func InWindow(p model.Period, now time.Time) bool {
	if p.IsZero() {
		return false
	}
	year := now.Year()
	if model.SemesterOf(now) == 1 {
		return (p.Year == year && p.Semester() == 1) || (p.Year == year-1 && p.Semester() == 2)
	}
	return p.Year == year
}

// ComparisonAverage picks which semester average a period is compared with.
// Evaluating in the second semester, a period uses its own semester's
// average. Evaluating in the first semester, the semesters are swapped.
// ok is false when the chosen average is missing or zero.
func ComparisonAverage(avg model.SemesterAverages, p model.Period, now time.Time) (float64, bool) {
	var chosen *float64
	if model.SemesterOf(now) == 2 {
		chosen = avg.H2
		if p.Semester() == 1 {
			chosen = avg.H1
		}
	} else {
		chosen = avg.H1
		if p.Semester() == 1 {
			chosen = avg.H2
		}
	}
	if chosen == nil || *chosen == 0 || math.IsNaN(*chosen) || math.IsInf(*chosen, 0) {
		return 0, false
	}
	return *chosen, true
}

// Percent returns |value-average| / average * 100.
func Percent(value, average float64) float64 {
	return math.Abs((value-average)/average) * 100
}

// SeverityOf maps a deviation percentage to its presentation band.
func SeverityOf(pct float64) model.Severity {
	switch {
	case pct >= bandHigh:
		return model.SeverityHigh
	case pct >= bandMedium:
		return model.SeverityMedium
	case pct >= bandLow:
		return model.SeverityLow
	default:
		return model.SeverityNone
	}
}

// Analyze checks every named indicator of agg against hist. It returns the
// flagged indicators only, or nil when nothing is flagged, the aggregate has
// no valid reference date, or its period is outside the evaluation window.
func (a *Analyzer) Analyze(agg *model.Aggregate, hist model.HistoricalAverage, indicators []string, now time.Time) map[string]model.Finding {
	if agg == nil || !agg.HasReference || hist == nil {
		return nil
	}
	period := agg.Key.Period
	if !InWindow(period, now) {
		return nil
	}

	var out map[string]model.Finding
	for _, name := range indicators {
		value, ok := agg.Indicators[name]
		if !ok || value == 0 {
			continue
		}
		avgs, ok := hist[name]
		if !ok {
			continue
		}
		avg, ok := ComparisonAverage(avgs, period, now)
		if !ok {
			continue
		}
		pct := Percent(value, avg)
		if pct < a.Threshold {
			continue
		}
		if out == nil {
			out = make(map[string]model.Finding)
		}
		out[name] = model.Finding{
			Value:     value,
			Average:   avg,
			Deviation: pct,
			Severity:  SeverityOf(pct),
		}
	}
	return out
}

// Round2 rounds v to two decimal places.
func Round2(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// SameValues reports whether two flagged-value sets hold the same indicators
// with the same values once rounded to two decimals.
func SameValues(a, b map[string]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for name, va := range a {
		vb, ok := b[name]
		if !ok || !Round2(va).Equal(Round2(vb)) {
			return false
		}
	}
	return true
}

// CarryOver applies the previous run's review of the same (entity, period)
// to a freshly flagged record. Notes are always kept. The reviewer's
// validation is kept only while the flagged values are unchanged; otherwise
// the record needs a fresh review and goes back to Não.
func CarryOver(current model.DiscrepantRecord, prev *model.DiscrepantRecord) model.DiscrepantRecord {
	current.Validated = model.ValidationNo
	if prev == nil {
		return current
	}
	current.Notes = prev.Notes
	if SameValues(current.Values, prev.Values) && prev.Validated != model.ValidationCorrected {
		current.Validated = prev.Validated
	}
	return current
}
