package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/recycling-monitor/internal/config"
	"github.com/sells-group/recycling-monitor/internal/forms"
	"github.com/sells-group/recycling-monitor/internal/model"
	"github.com/sells-group/recycling-monitor/internal/report"
)

// saveSheets writes a workbook with the given sheets of string rows.
func saveSheets(t *testing.T, path string, sheets map[string][][]string, order ...string) {
	t.Helper()
	wb := xlsx.NewFile()
	for _, name := range order {
		sh, err := wb.AddSheet(name)
		require.NoError(t, err)
		for _, data := range sheets[name] {
			row := sh.AddRow()
			for _, v := range data {
				row.AddCell().SetString(v)
			}
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, wb.Save(path))
}

// newReportsConfig lays out the grs division's form 1/3 and form 4 workbooks
// under a temp dir.
func newReportsConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	form4, err := forms.Lookup("form4")
	require.NoError(t, err)
	saveSheets(t, filepath.Join(dir, "grs", form4.Workbook), map[string][][]string{
		"01.25": {
			forms.TabHeaders,
			{"Oeste", "Toledo", "1", "", "Enviado", "10/02/2025", "Sim"},
			{"Oeste", "Cafelândia", "2", "", "Atrasado", "", ""},
		},
		"02.25": {
			forms.TabHeaders,
			{"Oeste", "Toledo", "1", "", "Atrasado", "", ""},
			{"Oeste", "Cafelândia", "2", "", "Sem Técnico", "", ""},
		},
	}, "01.25", "02.25")

	form1, err := forms.Lookup("form1")
	require.NoError(t, err)
	form3, err := forms.Lookup("form3")
	require.NoError(t, err)
	saveSheets(t, filepath.Join(dir, "grs", form1.Workbook), map[string][][]string{
		form1.Sheet: {
			forms.TabHeaders,
			{"Oeste", "Toledo", "", "", "Enviado", "01/01/2025", "Sim"},
		},
		form3.Sheet: {
			forms.TabHeaders,
			{"Oeste", "Toledo", "1", "", "Duplicado", "01/01/2025, 02/01/2025", "Sim"},
			{"Oeste", "Cafelândia", "2", "", "Enviado", "03/01/2025", "Sim"},
		},
	}, form1.Sheet, form3.Sheet)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "form4.csv"), []byte(
		"gm_nome,guvr_numero,data_de_envio,data_de_referencia,nome_tc_uvr\n"+
			"TOLEDO,01,2025-03-02 10:00:00,2025-02-01,Ana\n"+
			"Cafelandia,2,2025-02-15 10:00:00,2025-01-01,Rui\n",
	), 0o644))

	return &config.Config{
		Inputs:    config.InputsConfig{Dir: dir},
		Reconcile: config.ReconcileConfig{Concurrency: 1, DeviationThreshold: 60},
		Reports:   config.ReportsConfig{EngagementSince: "01.25"},
		Divisions: []config.DivisionConfig{{Name: "grs"}},
	}
}

func TestGapsJob(t *testing.T) {
	c := newReportsConfig(t)
	form, err := forms.Lookup("form4")
	require.NoError(t, err)

	job := gapsJob{cfg: c, form: form, divisions: c.Divisions}
	found, err := job.run(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 2)

	byEntity := map[string]report.Gap{}
	for _, g := range found {
		byEntity[g.Key.Entity+"@"+g.Period.String()] = g
	}
	assert.Equal(t, "2025-02-01", byEntity["toledo_1@02.25"].ReferenceDate)
	assert.Equal(t, "2025-01-01", byEntity["cafelandia_2@01.25"].ReferenceDate)

	job.periods = map[model.Period]bool{{Year: 2025, Month: 2}: true}
	found, err = job.run(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Toledo", found[0].Municipality)

	var buf bytes.Buffer
	formatGaps(&buf, found)
	assert.Contains(t, buf.String(), "REFERENCE DATE")
	assert.Contains(t, buf.String(), "02.25")
}

func TestGapsJob_MissingExport(t *testing.T) {
	c := newReportsConfig(t)
	form, err := forms.Lookup("form4")
	require.NoError(t, err)

	job := gapsJob{cfg: c, form: form, divisions: c.Divisions, submissions: filepath.Join(t.TempDir(), "none.csv")}
	_, err = job.run(context.Background())
	require.Error(t, err)
}

func TestParsePeriods(t *testing.T) {
	got, err := parsePeriods(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parsePeriods([]string{"03.25", "04.25"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.True(t, got[model.Period{Year: 2025, Month: 3}])

	_, err = parsePeriods([]string{"2025-03"})
	assert.Error(t, err)
}

func TestEngagementJob(t *testing.T) {
	c := newReportsConfig(t)
	since, err := c.Reports.Since()
	require.NoError(t, err)
	now := time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)

	sums, err := engagementJob{cfg: c, divisions: c.Divisions}.run(since, now)
	require.NoError(t, err)
	require.Len(t, sums, 1)

	sum := sums[0]
	assert.Equal(t, "grs", sum.Division)
	assert.Equal(t, 2, sum.ExpectedMonths)
	require.Len(t, sum.Rows, 2)

	// Toledo: form1, form3 and January out of 4.
	assert.Equal(t, "toledo_1", sum.Rows[0].Entity)
	assert.Equal(t, 3, sum.Rows[0].Total)
	assert.Equal(t, "75", sum.Rows[0].Percent.String())
	assert.Equal(t, report.LevelMedium, sum.Rows[0].Level)

	// Cafelândia: form3 only.
	assert.Equal(t, 1, sum.Rows[1].Total)
	assert.Equal(t, report.LevelLow, sum.Rows[1].Level)

	var buf bytes.Buffer
	formatEngagement(&buf, sums)
	assert.Contains(t, buf.String(), "Months expected since 01.25:")
	assert.Contains(t, buf.String(), "75.0%")
}

func TestEngagementJob_MissingWorkbook(t *testing.T) {
	c := newReportsConfig(t)
	c.Divisions = []config.DivisionConfig{{Name: "belem"}}

	_, err := engagementJob{cfg: c, divisions: c.Divisions}.run(model.Period{Year: 2025, Month: 1}, time.Now())
	require.Error(t, err)
}
