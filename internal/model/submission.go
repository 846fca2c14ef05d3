package model

import "time"

// Submission is one raw row of a form export, exactly as read from the source.
// Nothing is normalized yet; the aggregator does that.
type Submission struct {
	Row           int               `json:"row"`
	Municipality  string            `json:"municipality"`
	Unit          string            `json:"unit"`
	SubmittedAt   string            `json:"submitted_at"`
	ReferenceDate string            `json:"reference_date"`
	Technician    string            `json:"technician"`
	Indicators    map[string]string `json:"indicators,omitempty"`
}

// PeriodKey identifies an (entity, period) pair. Period is zero for forms
// without a period dimension.
type PeriodKey struct {
	Entity string `json:"entity"`
	Period Period `json:"period"`
}

// Aggregate is the per-(entity, period) view of the current batch.
type Aggregate struct {
	Key          PeriodKey          `json:"key"`
	Municipality string             `json:"municipality"`
	Unit         string             `json:"unit"`
	Technician   string             `json:"technician"`
	Dates        []string           `json:"dates"`
	Status       Status             `json:"status"`
	Indicators   map[string]float64 `json:"indicators,omitempty"`

	// ReferenceDate is the first record's parsed reference date; HasReference
	// is false when it could not be parsed.
	ReferenceDate time.Time `json:"reference_date"`
	HasReference  bool      `json:"has_reference"`
}

// FirstDate returns the first submission date, or "".
func (a *Aggregate) FirstDate() string {
	if a == nil || len(a.Dates) == 0 {
		return ""
	}
	return a.Dates[0]
}

// SnapshotRow is the previous run's state for one (entity, period) as read
// back from the tracking workbook.
type SnapshotRow struct {
	Key          PeriodKey  `json:"key"`
	Period       Period     `json:"period"`
	Region       string     `json:"region"`
	Municipality string     `json:"municipality"`
	Unit         string     `json:"unit"`
	Technician   string     `json:"technician"`
	Status       Status     `json:"status"`
	Dates        []string   `json:"dates"`
	Validated    Validation `json:"validated"`

	// Extra holds the cells after the validated column, preserved verbatim.
	Extra []string `json:"extra,omitempty"`
	// Keyed is false when the row has no usable municipality; such rows are
	// carried through untouched.
	Keyed bool `json:"keyed"`
}

// Tab is one tracked sheet of a division workbook: a monthly tab or the single
// sheet of a once-off form.
type Tab struct {
	Name   string        `json:"name"`
	Period Period        `json:"period"`
	Header []string      `json:"header"`
	Rows   []SnapshotRow `json:"rows"`
}

// Snapshot is everything the previous run left for one division.
type Snapshot struct {
	Division   string             `json:"division"`
	Tabs       []Tab              `json:"tabs"`
	Irregular  []IrregularRecord  `json:"irregular"`
	Discrepant []DiscrepantRecord `json:"discrepant"`
}

// TrackedPeriods returns the set of periods that have their own tab.
func (s *Snapshot) TrackedPeriods() map[Period]bool {
	out := make(map[Period]bool, len(s.Tabs))
	for _, t := range s.Tabs {
		out[t.Period] = true
	}
	return out
}

// SemesterAverages holds the two historical averages of one indicator.
// A nil pointer means the reference table had no usable value.
type SemesterAverages struct {
	H1 *float64 `json:"h1,omitempty"`
	H2 *float64 `json:"h2,omitempty"`
}

// HistoricalAverage maps indicator name to its semester averages for one entity.
type HistoricalAverage map[string]SemesterAverages

// AverageTable maps entity key to its historical averages.
type AverageTable map[string]HistoricalAverage
