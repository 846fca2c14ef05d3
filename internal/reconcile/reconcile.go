// Package reconcile runs one form's batch of submissions against the
// previous snapshot of every division. Each stage takes its inputs as
// arguments and returns its outputs; nothing is shared between divisions.
package reconcile

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/recycling-monitor/internal/aggregate"
	"github.com/sells-group/recycling-monitor/internal/classify"
	"github.com/sells-group/recycling-monitor/internal/deviation"
	"github.com/sells-group/recycling-monitor/internal/forms"
	"github.com/sells-group/recycling-monitor/internal/ledger"
	"github.com/sells-group/recycling-monitor/internal/model"
	"github.com/sells-group/recycling-monitor/internal/regions"
)

// Input is everything one run needs.
type Input struct {
	Form        *forms.Form
	Submissions []model.Submission
	Snapshots   []*model.Snapshot
	Averages    model.AverageTable
	Regions     *regions.Table
	Now         time.Time
}

// DivisionResult is the reconciled state of one division.
type DivisionResult struct {
	Division   string                   `json:"division"`
	Tabs       []model.Tab              `json:"tabs"`
	Irregular  []model.IrregularRecord  `json:"irregular"`
	Discrepant []model.DiscrepantRecord `json:"discrepant"`
	Counts     *model.RunCounts         `json:"counts"`
}

// Result is the outcome of a run. Divisions keep the order of Input.Snapshots.
type Result struct {
	Form      string           `json:"form"`
	Now       time.Time        `json:"now"`
	Divisions []DivisionResult `json:"divisions"`
	Summary   *model.RunCounts `json:"summary"`
}

// Reconciler runs reconciliations.
type Reconciler struct {
	analyzer    *deviation.Analyzer
	concurrency int
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithThreshold sets the deviation threshold in percent.
func WithThreshold(pct float64) Option {
	return func(r *Reconciler) { r.analyzer = deviation.New(pct) }
}

// WithConcurrency bounds how many divisions are processed at once.
func WithConcurrency(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// New returns a Reconciler with the default threshold, processing up to four
// divisions at a time.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{analyzer: deviation.New(deviation.DefaultThreshold), concurrency: 4}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run aggregates the submissions once and reconciles every division against
// the batch. The result is deterministic for a given input.
func (r *Reconciler) Run(ctx context.Context, in Input) (*Result, error) {
	if in.Form == nil {
		return nil, eris.New("reconcile: form is required")
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	batch := aggregate.Aggregate(in.Submissions, in.Form)
	zap.L().Info("reconcile: submissions aggregated",
		zap.String("form", in.Form.Name),
		zap.Int("submissions", batch.Total),
		zap.Int("aggregates", batch.Len()),
		zap.Int("duplicates", batch.Duplicates()),
		zap.Int("skipped", batch.Skipped),
		zap.Int("bad_reference", batch.BadReference),
	)
	if batch.Skipped > 0 {
		zap.L().Warn("reconcile: submissions without municipality were skipped",
			zap.Int("count", batch.Skipped),
		)
	}

	submitted := batch.SubmissionKeys()
	results := make([]DivisionResult, len(in.Snapshots))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, snap := range in.Snapshots {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return eris.Wrap(err, "reconcile: cancelled")
			}
			results[i] = r.division(snap, batch, submitted, in, now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := model.NewRunCounts()
	summary.Submissions = batch.Total
	summary.SkippedRows = batch.Skipped
	summary.BadReferenceDates = batch.BadReference
	summary.Aggregates = batch.Len()
	for _, res := range results {
		summary.Add(res.Counts)
	}

	return &Result{
		Form:      in.Form.Name,
		Now:       now,
		Divisions: results,
		Summary:   summary,
	}, nil
}

func (r *Reconciler) division(snap *model.Snapshot, batch *aggregate.Batch, submitted map[model.SubmissionKey]bool, in Input, now time.Time) DivisionResult {
	form := in.Form
	counts := model.NewRunCounts()
	res := DivisionResult{
		Division: snap.Division,
		Counts:   counts,
	}

	// Entities the division tracks, with the region its snapshot gives them.
	members := make(map[string]string)
	tabs := make([]model.Tab, len(snap.Tabs))
	for i, tab := range snap.Tabs {
		out := tab
		out.Rows = make([]model.SnapshotRow, len(tab.Rows))
		for j, row := range tab.Rows {
			if !row.Keyed {
				out.Rows[j] = row
				continue
			}
			if row.Region == "" {
				row.Region = in.Regions.Region(snap.Division, row.Municipality)
			}
			if region, ok := members[row.Key.Entity]; !ok || region == "" {
				members[row.Key.Entity] = row.Region
			}

			agg, _ := batch.Get(row.Key)
			updated, tr := classify.Classify(row, agg, now, form.Mode)
			out.Rows[j] = updated

			counts.PerDivision[snap.Division]++
			if updated.Status != model.StatusNone {
				counts.Statuses[updated.Status]++
			}
			if tr.ReviewReset {
				counts.ReviewsInvalidated++
			}
		}
		tabs[i] = out
	}
	res.Tabs = tabs

	regionOf := func(agg *model.Aggregate) string {
		if region := members[agg.Key.Entity]; region != "" {
			return region
		}
		return in.Regions.Region(snap.Division, agg.Municipality)
	}

	tracked := snap.TrackedPeriods()

	if form.Mode == forms.Monthly {
		var candidates []model.IrregularRecord
		for _, agg := range batch.Aggregates() {
			if tracked[agg.Key.Period] {
				continue
			}
			if _, ok := members[agg.Key.Entity]; !ok {
				continue
			}
			candidates = append(candidates, ledger.IrregularCandidates(agg, regionOf(agg))...)
		}
		res.Irregular, counts.Irregular = ledger.MergeIrregular(snap.Irregular, candidates, submitted)
	} else {
		res.Irregular = snap.Irregular
		counts.Irregular.Total = len(snap.Irregular)
	}

	if form.HasIndicators() {
		names := form.IndicatorNames()
		var current []model.DiscrepantRecord
		for _, agg := range batch.Aggregates() {
			if !tracked[agg.Key.Period] {
				continue
			}
			if _, ok := members[agg.Key.Entity]; !ok {
				continue
			}
			findings := r.analyzer.Analyze(agg, in.Averages[agg.Key.Entity], names, now)
			if len(findings) == 0 {
				continue
			}
			for name, f := range findings {
				counts.Severities[f.Severity]++
				counts.Indicators[name]++
			}
			current = append(current, ledger.DiscrepantRecordFor(agg, regionOf(agg), findings))
		}
		res.Discrepant, counts.Discrepant = ledger.MergeDiscrepant(snap.Discrepant, current)
	} else {
		res.Discrepant = snap.Discrepant
		counts.Discrepant.Total = len(snap.Discrepant)
	}

	zap.L().Info("reconcile: division complete",
		zap.String("division", snap.Division),
		zap.Int("rows", counts.PerDivision[snap.Division]),
		zap.Int("reviews_invalidated", counts.ReviewsInvalidated),
		zap.Int("irregular", counts.Irregular.Total),
		zap.Int("irregular_new", counts.Irregular.New),
		zap.Int("discrepant", counts.Discrepant.Total),
		zap.Int("discrepant_corrected", counts.Discrepant.Corrected),
	)

	return res
}

// Findings flattens the discrepant records flagged in this run, one record
// per indicator. Entries carried only to be marked Corrigido are left out.
func (r *Result) Findings() []model.FindingRecord {
	var out []model.FindingRecord
	for _, div := range r.Divisions {
		for _, rec := range div.Discrepant {
			names := make([]string, 0, len(rec.Deviations))
			for name := range rec.Deviations {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				dev := rec.Deviations[name]
				out = append(out, model.FindingRecord{
					Division:     div.Division,
					Municipality: rec.Municipality,
					Unit:         rec.Unit,
					Period:       rec.Period,
					Indicator:    name,
					Value:        rec.Values[name],
					Deviation:    dev,
					Severity:     deviation.SeverityOf(dev),
					Validated:    rec.Validated,
				})
			}
		}
	}
	return out
}
