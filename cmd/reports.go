package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/recycling-monitor/internal/config"
	"github.com/sells-group/recycling-monitor/internal/fetcher"
	"github.com/sells-group/recycling-monitor/internal/forms"
	"github.com/sells-group/recycling-monitor/internal/ingest"
	"github.com/sells-group/recycling-monitor/internal/model"
	"github.com/sells-group/recycling-monitor/internal/render"
	"github.com/sells-group/recycling-monitor/internal/report"
)

// -- gaps --

var (
	gapsForm        string
	gapsSubmissions string
	gapsDivisions   []string
	gapsPeriods     []string
	gapsAll         bool
	gapsOutput      string
)

var gapsCmd = &cobra.Command{
	Use:     "gaps",
	Aliases: []string{"lacunas"},
	Short:   "Find tracked months that record no submission but appear in the export",
	Long: `Lists the rows of each division's tracking workbook that record no
submission date and carry no manual status, then looks each one up in the
form's export by entity and reference month. By default only the gaps the
export can fill are shown.

Examples:
  recycling-monitor gaps --submissions lacunas.csv --period 03.25 --period 04.25
  recycling-monitor gaps --division grs --all --output out/lacunas.xlsx`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		form, err := forms.Lookup(gapsForm)
		if err != nil {
			return err
		}
		divisions, err := selectDivisions(cfg, gapsDivisions)
		if err != nil {
			return err
		}
		periods, err := parsePeriods(gapsPeriods)
		if err != nil {
			return err
		}

		job := gapsJob{
			cfg:         cfg,
			form:        form,
			divisions:   divisions,
			submissions: gapsSubmissions,
			periods:     periods,
			all:         gapsAll,
		}
		gaps, err := job.run(cmd.Context())
		if err != nil {
			return err
		}

		if gapsOutput != "" {
			if err := render.GapsWorkbook(gapsOutput, gaps); err != nil {
				return err
			}
			zap.L().Info("gaps: report written", zap.String("path", gapsOutput), zap.Int("gaps", len(gaps)))
		}
		if len(gaps) == 0 {
			fmt.Fprintln(os.Stderr, "No gaps found.")
			return nil
		}
		formatGaps(os.Stdout, gaps)
		return nil
	},
}

type gapsJob struct {
	cfg         *config.Config
	form        *forms.Form
	divisions   []config.DivisionConfig
	submissions string
	periods     map[model.Period]bool
	all         bool
}

func (j gapsJob) run(ctx context.Context) ([]report.Gap, error) {
	var gaps []report.Gap
	for _, d := range j.divisions {
		snap, err := ingest.Snapshot(j.cfg.SnapshotPath(d, j.form.Workbook), d.Name, j.form)
		if err != nil {
			return nil, err
		}
		gaps = append(gaps, report.Gaps(snap, j.periods)...)
	}

	path := reconcileJob{cfg: j.cfg, form: j.form, submissions: j.submissions}.submissionsPath()
	subs, err := ingest.Submissions(ctx, path, j.form, fetcher.CSVOptions{Charset: j.cfg.Inputs.Charset, LazyQuotes: true})
	if err != nil {
		return nil, err
	}
	gaps = report.Match(gaps, subs, j.form)

	found := report.FoundOnly(gaps)
	zap.L().Info("gaps: matched against export",
		zap.String("form", j.form.Name),
		zap.Int("gaps", len(gaps)),
		zap.Int("found", len(found)),
	)
	if j.all {
		return gaps, nil
	}
	return found, nil
}

func parsePeriods(labels []string) (map[model.Period]bool, error) {
	if len(labels) == 0 {
		return nil, nil
	}
	out := make(map[model.Period]bool, len(labels))
	for _, l := range labels {
		p, ok := model.ParsePeriod(l)
		if !ok {
			return nil, eris.Errorf("gaps: period %q is not MM.YY", l)
		}
		out[p] = true
	}
	return out, nil
}

func formatGaps(out io.Writer, gaps []report.Gap) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DIVISION\tREGION\tMUNICIPALITY\tUNIT\tMONTH\tREFERENCE DATE")
	for _, g := range gaps {
		ref := g.ReferenceDate
		if ref == "" {
			ref = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			g.Division, g.Region, g.Municipality, g.Unit, g.Period, ref)
	}
	_ = w.Flush()
}

// -- engagement --

var (
	engagementDivisions []string
	engagementSince     string
	engagementOutput    string
)

// Forms scored by the engagement summary.
const engagementMonthly = "form4"

var engagementSingles = []string{"form1", "form3"}

var engagementCmd = &cobra.Command{
	Use:     "engagement",
	Aliases: []string{"engajamento"},
	Short:   "Score how consistently each recycling unit submits its forms",
	Long: `Counts, for every entity tracked on the monthly form, the single-period
forms it submitted and the months since --since it submitted on time or in
duplicate, and bands the share of what was expected as Alto (above 90%),
Médio (60% to 90%) or Baixo.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		divisions, err := selectDivisions(cfg, engagementDivisions)
		if err != nil {
			return err
		}
		rc := cfg.Reports
		if engagementSince != "" {
			rc.EngagementSince = engagementSince
		}
		since, err := rc.Since()
		if err != nil {
			return err
		}
		now, err := cfg.Reconcile.Clock()
		if err != nil {
			return err
		}
		if now.IsZero() {
			now = time.Now()
		}

		sums, err := engagementJob{cfg: cfg, divisions: divisions}.run(since, now)
		if err != nil {
			return err
		}

		if engagementOutput != "" {
			if err := render.EngagementWorkbook(engagementOutput, sums); err != nil {
				return err
			}
			zap.L().Info("engagement: report written", zap.String("path", engagementOutput))
		}
		formatEngagement(os.Stdout, sums)
		return nil
	},
}

type engagementJob struct {
	cfg       *config.Config
	divisions []config.DivisionConfig
}

func (j engagementJob) run(since model.Period, now time.Time) ([]report.Summary, error) {
	monthlyForm, err := forms.Lookup(engagementMonthly)
	if err != nil {
		return nil, err
	}

	var sums []report.Summary
	for _, d := range j.divisions {
		monthly, err := j.source(d, monthlyForm)
		if err != nil {
			return nil, err
		}
		var singles []report.Source
		for _, name := range engagementSingles {
			f, err := forms.Lookup(name)
			if err != nil {
				return nil, err
			}
			s, err := j.source(d, f)
			if err != nil {
				return nil, err
			}
			singles = append(singles, s)
		}
		sums = append(sums, report.Engage(monthly, singles, since, now))
	}
	return sums, nil
}

func (j engagementJob) source(d config.DivisionConfig, f *forms.Form) (report.Source, error) {
	snap, err := ingest.Snapshot(j.cfg.SnapshotPath(d, f.Workbook), d.Name, f)
	if err != nil {
		return report.Source{}, err
	}
	return report.Source{Form: f, Snapshot: snap}, nil
}

func formatEngagement(out io.Writer, sums []report.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for i, sum := range sums {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		_, _ = fmt.Fprintf(w, "Division:\t%s\n", sum.Division)
		_, _ = fmt.Fprintf(w, "Months expected since %s:\t%d\n", sum.Since, sum.ExpectedMonths)
		_, _ = fmt.Fprintln(w, "REGION\tMUNICIPALITY\tUNIT\tSUBMITTED\tEXPECTED\tPERCENT\tLEVEL")
		for _, e := range sum.Rows {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s%%\t%s\n",
				e.Region, e.Municipality, e.Unit, e.Total, e.Expected, e.Percent.StringFixed(1), e.Level)
		}
	}
	_ = w.Flush()
}

func init() {
	gapsCmd.Flags().StringVar(&gapsForm, "form", engagementMonthly, "form whose tracking workbook is inspected")
	gapsCmd.Flags().StringVar(&gapsSubmissions, "submissions", "", "form export to match against (default <inputs.dir>/<form>.csv)")
	gapsCmd.Flags().StringSliceVar(&gapsDivisions, "division", nil, "division to inspect (repeatable; default all configured)")
	gapsCmd.Flags().StringSliceVar(&gapsPeriods, "period", nil, "MM.YY tab to inspect (repeatable; default every tab)")
	gapsCmd.Flags().BoolVar(&gapsAll, "all", false, "also list gaps the export does not fill")
	gapsCmd.Flags().StringVar(&gapsOutput, "output", "", "write the report to this xlsx file")
	rootCmd.AddCommand(gapsCmd)

	engagementCmd.Flags().StringSliceVar(&engagementDivisions, "division", nil, "division to score (repeatable; default all configured)")
	engagementCmd.Flags().StringVar(&engagementSince, "since", "", "first MM.YY month expected (default reports.engagement_since)")
	engagementCmd.Flags().StringVar(&engagementOutput, "output", "", "write the report to this xlsx file")
	rootCmd.AddCommand(engagementCmd)
}
