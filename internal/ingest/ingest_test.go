package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/recycling-monitor/internal/fetcher"
	"github.com/sells-group/recycling-monitor/internal/forms"
	"github.com/sells-group/recycling-monitor/internal/model"
)

type sheet struct {
	name string
	rows [][]string
}

func writeWorkbook(t *testing.T, sheets ...sheet) string {
	t.Helper()
	f := xlsx.NewFile()
	for _, s := range sheets {
		sh, err := f.AddSheet(s.name)
		require.NoError(t, err)
		for _, data := range s.rows {
			row := sh.AddRow()
			for _, v := range data {
				row.AddCell().SetString(v)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "snapshot.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func lookup(t *testing.T, name string) *forms.Form {
	t.Helper()
	f, err := forms.Lookup(name)
	require.NoError(t, err)
	return f
}

var mar25 = model.Period{Year: 2025, Month: 3}

func TestParseSubmissions_Form4(t *testing.T) {
	t.Parallel()

	header := []string{"id", "gm_nome", "guvr_numero", "data_de_envio", "data_de_referencia", "nome_tc_uvr", "vendas_total", "despesas"}
	rows := [][]string{
		{"1", " Cafelândia ", "01", "2025-03-10", "2025-03-01", "Ana", "1500,50", "1000"},
		{"", "", "", "", "", "", "", ""},
		{"3", "Toledo", "1", "2025-03-11", "2025-03-01", "Bruno", "", "abc"},
	}

	subs, err := ParseSubmissions(header, rows, lookup(t, "form4"))
	require.NoError(t, err)
	require.Len(t, subs, 2)

	assert.Equal(t, model.Submission{
		Row:           2,
		Municipality:  "Cafelândia",
		Unit:          "01",
		SubmittedAt:   "2025-03-10",
		ReferenceDate: "2025-03-01",
		Technician:    "Ana",
		Indicators: map[string]string{
			"Receita Vendas (R$)": "1500,50",
			"Despesas (R$)":       "1000",
		},
	}, subs[0])

	assert.Equal(t, 4, subs[1].Row)
	assert.Equal(t, map[string]string{"Despesas (R$)": "abc"}, subs[1].Indicators)
}

func TestParseSubmissions_MissingColumn(t *testing.T) {
	t.Parallel()

	_, err := ParseSubmissions([]string{"gm_nome", "data_de_envio"}, nil, lookup(t, "form4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "guvr_numero")

	subs, err := ParseSubmissions([]string{"municipio", "data_envio"}, [][]string{{"Toledo", "2025-01-02"}}, lookup(t, "form1"))
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Empty(t, subs[0].Unit)
	assert.Nil(t, subs[0].Indicators)
}

func TestSubmissions_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "form1.csv")
	require.NoError(t, os.WriteFile(path, []byte("\ufeffmunicipio,data_envio\nToledo,2025-01-02 10:00:00\n"), 0o644))

	subs, err := Submissions(context.Background(), path, lookup(t, "form1"), fetcher.CSVOptions{})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "Toledo", subs[0].Municipality)

	_, err = Submissions(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), lookup(t, "form1"), fetcher.CSVOptions{})
	require.Error(t, err)
}

func TestReadSnapshot_Monthly(t *testing.T) {
	t.Parallel()

	path := writeWorkbook(t,
		sheet{"Resumo", [][]string{{"ignored"}}},
		sheet{"03.25", [][]string{
			forms.TabHeaders,
			{"Valquiria", "Cafelândia", "1", "Ana", "Enviado", "10/03/2025, 15/03/2025", "Sim", "obs"},
			{"", "", "", "", "", "", ""},
			{"Gabriel", "Toledo", "01", "", "UVR Sem Técnico", "", ""},
			{"", "", "", "", "", "", "", "nota solta"},
		}},
		sheet{"Irregulares", [][]string{
			forms.IrregularHeaders,
			{"Gabriel", "Toledo", "1", "Bruno", "05/01/2025", "12.24", "Sim", "ok", "", "Em Análise", ""},
			{"", "", "", "", "", "", "", "", "", "", ""},
		}},
		sheet{"Discrepantes", [][]string{
			lookup(t, "form4").DiscrepantHeaders(),
			{"Valquiria", "Cafelândia", "1", "Ana", "03.25", "10/03/2025", "-", "-", "1000", "-", "-", "-", "-", "-", "Sim", "conferido"},
		}},
	)

	wb, err := fetcher.OpenXLSX(path)
	require.NoError(t, err)
	snap, err := ReadSnapshot(wb, "grs", lookup(t, "form4"))
	require.NoError(t, err)

	require.Len(t, snap.Tabs, 1)
	tab := snap.Tabs[0]
	assert.Equal(t, mar25, tab.Period)
	assert.Equal(t, forms.TabHeaders, tab.Header)
	require.Len(t, tab.Rows, 3)

	caf := tab.Rows[0]
	assert.True(t, caf.Keyed)
	assert.Equal(t, model.PeriodKey{Entity: "cafelandia_1", Period: mar25}, caf.Key)
	assert.Equal(t, []string{"10/03/2025", "15/03/2025"}, caf.Dates)
	assert.Equal(t, model.StatusSent, caf.Status)
	assert.Equal(t, model.ValidationYes, caf.Validated)
	assert.Equal(t, []string{"obs"}, caf.Extra)

	tol := tab.Rows[1]
	assert.Equal(t, "toledo_1", tol.Key.Entity)
	assert.Equal(t, model.StatusNoTechnician, tol.Status)
	assert.Nil(t, tol.Dates)

	loose := tab.Rows[2]
	assert.False(t, loose.Keyed)
	assert.Equal(t, []string{"", "", "", "", "", "", "", "nota solta"}, loose.Extra)

	require.Len(t, snap.Irregular, 1)
	irr := snap.Irregular[0]
	assert.Equal(t, "12.24", irr.Period)
	assert.Equal(t, model.ValidationYes, irr.Validated)
	assert.Equal(t, model.Validation("Em Análise"), irr.ValidatedIT)

	require.Len(t, snap.Discrepant, 1)
	disc := snap.Discrepant[0]
	assert.Equal(t, map[string]float64{"Despesas (R$)": 1000}, disc.Values)
	assert.Equal(t, model.ValidationYes, disc.Validated)
	assert.Equal(t, "conferido", disc.Notes)
	assert.Equal(t, "03.25", disc.Period)
}

func TestReadSnapshot_SingleForm(t *testing.T) {
	t.Parallel()

	f := lookup(t, "form1")
	path := writeWorkbook(t,
		sheet{"Form 3 - Empreendimento", [][]string{forms.TabHeaders, {"R", "Toledo", "1"}}},
		sheet{f.Sheet, [][]string{forms.TabHeaders, {"R", "Toledo", "9", "", "", "", ""}}},
	)

	snap, err := Snapshot(path, "grs", f)
	require.NoError(t, err)
	require.Len(t, snap.Tabs, 1)
	assert.True(t, snap.Tabs[0].Period.IsZero())
	row := snap.Tabs[0].Rows[0]
	assert.Equal(t, "toledo_", row.Key.Entity)
	assert.Equal(t, "9", row.Unit)
	assert.Nil(t, snap.Irregular)
}

func TestSnapshot_Missing(t *testing.T) {
	t.Parallel()

	_, err := Snapshot(filepath.Join(t.TempDir(), "none.xlsx"), "grs", lookup(t, "form4"))
	require.Error(t, err)
}

func TestParseLedgers_LegacyHeaders(t *testing.T) {
	t.Parallel()

	irr := ParseIrregular([][]string{{"Município", "Data"}, {"Toledo", "01/01/2025"}}, "grs")
	assert.Nil(t, irr)

	disc := ParseDiscrepant([][]string{{"Município", "UVR", "Mês Referência"}, {"Toledo", "1", "03.25"}}, "grs", lookup(t, "form4"))
	assert.Nil(t, disc)

	assert.Nil(t, ParseIrregular(nil, "grs"))
	assert.Nil(t, ParseDiscrepant(nil, "grs", lookup(t, "form4")))
}

func TestParseAverages(t *testing.T) {
	t.Parallel()

	row := make([]string, 20)
	row[0] = "Cafelândia"
	row[2] = "01"
	row[6] = "400"   // Despesas H1 (G)
	row[14] = "5000" // Despesas H2 (O)
	row[4] = "abc"   // Receita Vendas H1 (E)

	table := ParseAverages([][]string{row, {"", "", "1"}, {"Toledo"}}, lookup(t, "form4"))
	require.Len(t, table, 1)

	hist := table["cafelandia_1"]
	require.NotNil(t, hist)
	d := hist["Despesas (R$)"]
	require.NotNil(t, d.H1)
	require.NotNil(t, d.H2)
	assert.InDelta(t, 400.0, *d.H1, 1e-9)
	assert.InDelta(t, 5000.0, *d.H2, 1e-9)
	assert.Nil(t, hist["Receita Vendas (R$)"].H1)
	assert.Nil(t, hist["Renda Média (R$)"].H2)
}

func TestAverages_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "medias.csv")
	content := "municipio,x,uvr,y,e,f,g\nToledo,,1,,10,20,30\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, err := Averages(context.Background(), path, lookup(t, "form4"), fetcher.CSVOptions{})
	require.NoError(t, err)
	require.Contains(t, table, "toledo_1")
	require.NotNil(t, table["toledo_1"]["Despesas (R$)"].H1)
	assert.InDelta(t, 30.0, *table["toledo_1"]["Despesas (R$)"].H1, 1e-9)
	assert.Nil(t, table["toledo_1"]["Despesas (R$)"].H2)

	_, err = Averages(context.Background(), filepath.Join(t.TempDir(), "none.csv"), lookup(t, "form4"), fetcher.CSVOptions{})
	require.Error(t, err)
}
