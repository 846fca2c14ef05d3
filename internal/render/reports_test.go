package render

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/recycling-monitor/internal/fetcher"
	"github.com/sells-group/recycling-monitor/internal/report"
)

func TestGapsWorkbook(t *testing.T) {
	t.Parallel()

	gaps := []report.Gap{
		{Division: "grs", Region: "Oeste", Municipality: "Toledo", Unit: "1", Period: mar25, ReferenceDate: "2025-03-01"},
		{Division: "grs", Region: "Oeste", Municipality: "Cafelândia", Unit: "2", Period: mar25},
	}
	path := filepath.Join(t.TempDir(), "reports", "lacunas.xlsx")
	require.NoError(t, GapsWorkbook(path, gaps))

	wb, err := fetcher.OpenXLSX(path)
	require.NoError(t, err)
	rows, err := wb.Rows(GapsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Mês da Lacuna", rows[0][4])
	assert.Equal(t, []string{"grs", "Oeste", "Toledo", "1", "03.25", "2025-03-01"}, rows[1])
	assert.Equal(t, "Cafelândia", rows[2][2])
}

func TestEngagementWorkbook(t *testing.T) {
	t.Parallel()

	sums := []report.Summary{{
		Division:       "grs",
		ExpectedMonths: 3,
		SingleForms:    []string{"form1", "form3"},
		Rows: []report.Engagement{{
			Region:       "Oeste",
			Municipality: "Toledo",
			Unit:         "1",
			Sent:         map[string]bool{"form1": true},
			Monthly:      2,
			Percent:      decimal.NewFromInt(60),
			Level:        report.LevelMedium,
		}},
	}}
	path := filepath.Join(t.TempDir(), "engajamento.xlsx")
	require.NoError(t, EngagementWorkbook(path, sums))

	wb, err := fetcher.OpenXLSX(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Engajamento grs"}, wb.SheetNames())

	rows, err := wb.Rows("Engajamento grs")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Mensal (Esperado: 3)", rows[0][5])
	assert.Equal(t, []string{"Oeste", "Toledo", "1", "Enviado", "Ausente"}, rows[1][:5])
	assert.Equal(t, "Médio", rows[1][len(rows[1])-1])
}

func TestEngagementWorkbook_Empty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "engajamento.xlsx")
	require.NoError(t, EngagementWorkbook(path, nil))

	wb, err := fetcher.OpenXLSX(path)
	require.NoError(t, err)
	assert.True(t, wb.HasSheet(EngagementSheet))
}
