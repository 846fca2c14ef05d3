package model

import "time"

// RunStatus represents the current state of a reconciliation run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one recorded reconciliation of a form.
type Run struct {
	ID        string     `json:"id"`
	Form      string     `json:"form"`
	Divisions []string   `json:"divisions"`
	Status    RunStatus  `json:"status"`
	Summary   *RunCounts `json:"summary,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunCounts is the operator-facing tally of a run.
type RunCounts struct {
	Submissions        int              `json:"submissions"`
	SkippedRows        int              `json:"skipped_rows"`
	BadReferenceDates  int              `json:"bad_reference_dates"`
	Aggregates         int              `json:"aggregates"`
	Statuses           map[Status]int   `json:"statuses"`
	ReviewsInvalidated int              `json:"reviews_invalidated"`
	Severities         map[Severity]int `json:"severities"`
	Irregular          LedgerCounts     `json:"irregular"`
	Discrepant         LedgerCounts     `json:"discrepant"`
	PerDivision        map[string]int   `json:"per_division,omitempty"`
	Indicators         map[string]int   `json:"indicators,omitempty"`
}

// LedgerCounts tallies how an exception ledger changed in a run.
type LedgerCounts struct {
	Total     int `json:"total"`
	New       int `json:"new"`
	Migrated  int `json:"migrated"`
	Carried   int `json:"carried"`
	Reset     int `json:"reset"`
	Corrected int `json:"corrected"`
	Dropped   int `json:"dropped"`
}

// NewRunCounts returns counts with initialized maps.
func NewRunCounts() *RunCounts {
	return &RunCounts{
		Statuses:    make(map[Status]int),
		Severities:  make(map[Severity]int),
		PerDivision: make(map[string]int),
		Indicators:  make(map[string]int),
	}
}

// Add folds other into c.
func (c *RunCounts) Add(other *RunCounts) {
	if other == nil {
		return
	}
	c.Submissions += other.Submissions
	c.SkippedRows += other.SkippedRows
	c.BadReferenceDates += other.BadReferenceDates
	c.Aggregates += other.Aggregates
	c.ReviewsInvalidated += other.ReviewsInvalidated
	for k, v := range other.Statuses {
		c.Statuses[k] += v
	}
	for k, v := range other.Severities {
		c.Severities[k] += v
	}
	for k, v := range other.PerDivision {
		c.PerDivision[k] += v
	}
	for k, v := range other.Indicators {
		c.Indicators[k] += v
	}
	c.Irregular.add(other.Irregular)
	c.Discrepant.add(other.Discrepant)
}

func (l *LedgerCounts) add(o LedgerCounts) {
	l.Total += o.Total
	l.New += o.New
	l.Migrated += o.Migrated
	l.Carried += o.Carried
	l.Reset += o.Reset
	l.Corrected += o.Corrected
	l.Dropped += o.Dropped
}

// FindingRecord is one flagged indicator of a run, as kept in run history.
type FindingRecord struct {
	Division     string     `json:"division"`
	Municipality string     `json:"municipality"`
	Unit         string     `json:"unit"`
	Period       string     `json:"period"`
	Indicator    string     `json:"indicator"`
	Value        float64    `json:"value"`
	Deviation    float64    `json:"deviation"`
	Severity     Severity   `json:"severity"`
	Validated    Validation `json:"validated"`
}
