package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/recycling-monitor/internal/config"
	"github.com/sells-group/recycling-monitor/internal/fetcher"
	"github.com/sells-group/recycling-monitor/internal/forms"
	"github.com/sells-group/recycling-monitor/internal/ingest"
	"github.com/sells-group/recycling-monitor/internal/lock"
	"github.com/sells-group/recycling-monitor/internal/model"
	"github.com/sells-group/recycling-monitor/internal/reconcile"
	"github.com/sells-group/recycling-monitor/internal/regions"
	"github.com/sells-group/recycling-monitor/internal/render"
	"github.com/sells-group/recycling-monitor/internal/store"
)

var (
	reconcileForm        string
	reconcileSubmissions string
	reconcileAverages    string
	reconcileDivisions   []string
	reconcileDryRun      bool
	reconcileFormat      string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile a form's submissions against every division",
	Long: `Reads the exported submissions of one form, reconciles them against the
tracking workbook of each configured division and writes the updated
workbooks (or JSON) under outputs.dir.

Examples:
  # Monthly production form, all divisions
  recycling-monitor reconcile --form form4 --submissions form4.csv --averages medias.csv

  # One division, print the summary without writing or recording anything
  recycling-monitor reconcile --form form1 --division grs --dry-run`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate(); err != nil {
			return err
		}
		form, err := forms.Lookup(reconcileForm)
		if err != nil {
			return err
		}
		formatName := reconcileFormat
		if formatName == "" {
			formatName = cfg.Outputs.Format
		}
		format, err := render.ParseFormat(formatName)
		if err != nil {
			return err
		}
		divisions, err := selectDivisions(cfg, reconcileDivisions)
		if err != nil {
			return err
		}

		job := reconcileJob{
			cfg:         cfg,
			form:        form,
			divisions:   divisions,
			submissions: reconcileSubmissions,
			averages:    reconcileAverages,
		}

		release, err := job.lock()
		if err != nil {
			return err
		}
		defer release()

		if reconcileDryRun {
			res, err := job.execute(ctx)
			if err != nil {
				return err
			}
			formatSummary(os.Stdout, res)
			return nil
		}

		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return runAndRecord(ctx, st, job, format, os.Stdout)
	},
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileForm, "form", "", "form to reconcile ("+strings.Join(forms.Names(), ", ")+")")
	reconcileCmd.Flags().StringVar(&reconcileSubmissions, "submissions", "", "CSV export of the form's submissions (default <inputs.dir>/<form>.csv)")
	reconcileCmd.Flags().StringVar(&reconcileAverages, "averages", "", "CSV of semester averages (default <inputs.dir>/medias_<form>.csv)")
	reconcileCmd.Flags().StringSliceVar(&reconcileDivisions, "division", nil, "division to reconcile (repeatable; default all configured)")
	reconcileCmd.Flags().BoolVar(&reconcileDryRun, "dry-run", false, "reconcile and print the summary without writing outputs or recording the run")
	reconcileCmd.Flags().StringVar(&reconcileFormat, "format", "", "output format: xlsx or json (default outputs.format)")
	_ = reconcileCmd.MarkFlagRequired("form")
	rootCmd.AddCommand(reconcileCmd)
}

// reconcileJob holds the resolved inputs of one reconcile invocation.
type reconcileJob struct {
	cfg         *config.Config
	form        *forms.Form
	divisions   []config.DivisionConfig
	submissions string
	averages    string
}

func (j reconcileJob) submissionsPath() string {
	if j.submissions != "" {
		return j.submissions
	}
	return filepath.Join(j.cfg.Inputs.Dir, j.form.Name+".csv")
}

func (j reconcileJob) averagesPath() string {
	if j.averages != "" {
		return j.averages
	}
	return filepath.Join(j.cfg.Inputs.Dir, "medias_"+j.form.Name+".csv")
}

func (j reconcileJob) snapshotPath(d config.DivisionConfig) string {
	return j.cfg.SnapshotPath(d, j.form.Workbook)
}

func (j reconcileJob) divisionNames() []string {
	names := make([]string, len(j.divisions))
	for i, d := range j.divisions {
		names[i] = d.Name
	}
	return names
}

// lock takes the lock of every division snapshot. On failure the locks
// already taken are released.
func (j reconcileJob) lock() (func(), error) {
	var held []*lock.Lock
	release := func() {
		for _, l := range held {
			if err := l.Release(); err != nil {
				zap.L().Warn("reconcile: release lock", zap.Error(err))
			}
		}
	}
	for _, d := range j.divisions {
		l, err := lock.Acquire(j.snapshotPath(d))
		if err != nil {
			release()
			return nil, eris.Wrapf(err, "reconcile: division %s", d.Name)
		}
		held = append(held, l)
	}
	return release, nil
}

// execute loads every input and reconciles. Missing input files fail the
// job before anything is written.
func (j reconcileJob) execute(ctx context.Context) (*reconcile.Result, error) {
	csvOpts := fetcher.CSVOptions{Charset: j.cfg.Inputs.Charset, LazyQuotes: true}

	subs, err := ingest.Submissions(ctx, j.submissionsPath(), j.form, csvOpts)
	if err != nil {
		return nil, err
	}

	var averages model.AverageTable
	if j.form.HasIndicators() {
		averages, err = ingest.Averages(ctx, j.averagesPath(), j.form, csvOpts)
		if err != nil {
			return nil, err
		}
	}

	var tbl *regions.Table
	if j.cfg.Inputs.RegionsFile != "" {
		tbl, err = regions.Load(j.cfg.Inputs.RegionsFile)
		if err != nil {
			return nil, err
		}
	}

	snapshots := make([]*model.Snapshot, len(j.divisions))
	for i, d := range j.divisions {
		snap, err := ingest.Snapshot(j.snapshotPath(d), d.Name, j.form)
		if err != nil {
			return nil, err
		}
		snapshots[i] = snap
	}

	now, err := j.cfg.Reconcile.Clock()
	if err != nil {
		return nil, err
	}

	r := reconcile.New(
		reconcile.WithThreshold(j.cfg.Reconcile.DeviationThreshold),
		reconcile.WithConcurrency(j.cfg.Reconcile.Concurrency),
	)
	return r.Run(ctx, reconcile.Input{
		Form:        j.form,
		Submissions: subs,
		Snapshots:   snapshots,
		Averages:    averages,
		Regions:     tbl,
		Now:         now,
	})
}

// writeOutputs writes the reconciled state and returns the files written.
func (j reconcileJob) writeOutputs(res *reconcile.Result, format render.Format) ([]string, error) {
	if format == render.FormatJSON {
		path := filepath.Join(j.cfg.Outputs.Dir, j.form.Name+".json")
		if err := render.JSONFile(path, res); err != nil {
			return nil, err
		}
		return []string{path}, nil
	}

	var paths []string
	for _, div := range res.Divisions {
		path := filepath.Join(j.cfg.Outputs.Dir, div.Division, j.form.Name+".xlsx")
		if err := render.Workbook(path, j.form, div); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// runAndRecord executes the job, writes its outputs and records the run and
// its findings in st.
func runAndRecord(ctx context.Context, st store.Store, job reconcileJob, format render.Format, out io.Writer) error {
	run, err := st.CreateRun(ctx, job.form.Name, job.divisionNames())
	if err != nil {
		return err
	}
	log := zap.L().With(zap.String("run_id", run.ID), zap.String("form", job.form.Name))

	fail := func(err error) error {
		if ferr := st.FailRun(ctx, run.ID, err); ferr != nil {
			log.Error("reconcile: record failure", zap.Error(ferr))
		}
		return err
	}

	res, err := job.execute(ctx)
	if err != nil {
		return fail(err)
	}
	paths, err := job.writeOutputs(res, format)
	if err != nil {
		return fail(err)
	}
	for _, p := range paths {
		log.Info("reconcile: output written", zap.String("path", p))
	}

	if err := st.SaveFindings(ctx, run.ID, res.Findings()); err != nil {
		return fail(err)
	}
	if err := st.CompleteRun(ctx, run.ID, res.Summary); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "Run %s complete.\n", truncateID(run.ID))
	formatSummary(out, res)
	return nil
}

// selectDivisions returns the configured divisions named in names, in the
// order given. No names selects every configured division.
func selectDivisions(c *config.Config, names []string) ([]config.DivisionConfig, error) {
	if len(names) == 0 {
		return c.Divisions, nil
	}
	var out []config.DivisionConfig
	seen := make(map[string]bool)
	for _, n := range names {
		n = strings.TrimSpace(n)
		if seen[n] {
			continue
		}
		d, ok := c.Division(n)
		if !ok {
			return nil, eris.Errorf("reconcile: division %q is not configured", n)
		}
		seen[n] = true
		out = append(out, d)
	}
	return out, nil
}

// formatSummary writes the per-division, per-status, per-severity and
// per-ledger counts of a run to w.
func formatSummary(out io.Writer, res *reconcile.Result) {
	s := res.Summary
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "Form:\t%s\n", res.Form)
	_, _ = fmt.Fprintf(w, "Evaluated on:\t%s\n", res.Now.Format("2006-01-02"))
	_, _ = fmt.Fprintf(w, "Submissions:\t%d\n", s.Submissions)
	_, _ = fmt.Fprintf(w, "  Skipped (no municipality):\t%d\n", s.SkippedRows)
	_, _ = fmt.Fprintf(w, "  Bad reference date:\t%d\n", s.BadReferenceDates)
	_, _ = fmt.Fprintf(w, "Entity periods:\t%d\n", s.Aggregates)
	_, _ = fmt.Fprintf(w, "Reviews invalidated:\t%d\n", s.ReviewsInvalidated)

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "DIVISION\tROWS\tIRREGULAR\tDISCREPANT")
	for _, div := range res.Divisions {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\n",
			div.Division,
			div.Counts.PerDivision[div.Division],
			div.Counts.Irregular.Total,
			div.Counts.Discrepant.Total,
		)
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "STATUS\tCOUNT")
	for _, st := range model.AllStatuses {
		if n := s.Statuses[st]; n > 0 {
			_, _ = fmt.Fprintf(w, "%s\t%d\n", st, n)
		}
	}

	if len(s.Severities) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "SEVERITY\tCOUNT")
		for _, sev := range []model.Severity{model.SeverityHigh, model.SeverityMedium, model.SeverityLow} {
			if n := s.Severities[sev]; n > 0 {
				_, _ = fmt.Fprintf(w, "%s\t%d\n", sev, n)
			}
		}
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "LEDGER\tTOTAL\tNEW\tMIGRATED\tCARRIED\tRESET\tCORRECTED\tDROPPED")
	for _, l := range []struct {
		name string
		c    model.LedgerCounts
	}{
		{forms.IrregularSheet, s.Irregular},
		{forms.DiscrepantSheet, s.Discrepant},
	} {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			l.name, l.c.Total, l.c.New, l.c.Migrated, l.c.Carried, l.c.Reset, l.c.Corrected, l.c.Dropped)
	}
	_ = w.Flush()
}
