package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/recycling-monitor/internal/forms"
	"github.com/sells-group/recycling-monitor/internal/model"
)

var (
	nov24 = model.Period{Year: 2024, Month: 11}
	dec24 = model.Period{Year: 2024, Month: 12}
	jan25 = model.Period{Year: 2025, Month: 1}
	feb25 = model.Period{Year: 2025, Month: 2}
)

func lookup(t *testing.T, name string) *forms.Form {
	t.Helper()
	f, err := forms.Lookup(name)
	require.NoError(t, err)
	return f
}

func row(entity string, period model.Period, municipality, unit string, status model.Status, dates ...string) model.SnapshotRow {
	return model.SnapshotRow{
		Key:          model.PeriodKey{Entity: entity, Period: period},
		Period:       period,
		Region:       "Oeste",
		Municipality: municipality,
		Unit:         unit,
		Status:       status,
		Dates:        dates,
		Keyed:        true,
	}
}

func tab(period model.Period, rows ...model.SnapshotRow) model.Tab {
	return model.Tab{Name: period.String(), Period: period, Rows: rows}
}

func form4Snapshot() *model.Snapshot {
	return &model.Snapshot{
		Division: "grs",
		Tabs: []model.Tab{
			tab(jan25,
				row("toledo_1", jan25, "Toledo", "1", model.StatusLate),
				row("cafelandia_1", jan25, "Cafelândia", "1", model.StatusSent, "10/02/2025"),
				row("assis chateaubriand_2", jan25, "Assis Chateaubriand", "2", model.StatusNoTechnician),
				model.SnapshotRow{Extra: []string{"", "Total"}},
			),
			tab(feb25,
				row("toledo_1", feb25, "Toledo", "1", model.StatusLateTwoOrMore),
				row("cafelandia_1", feb25, "Cafelândia", "1", model.StatusNone),
				row("assis chateaubriand_2", feb25, "Assis Chateaubriand", "2", model.StatusOtherOccurrence),
			),
		},
	}
}

func TestGaps(t *testing.T) {
	t.Parallel()

	gaps := Gaps(form4Snapshot(), nil)
	require.Len(t, gaps, 3)

	got := make([]string, len(gaps))
	for i, g := range gaps {
		got[i] = g.Key.Entity + "@" + g.Period.String()
		assert.Equal(t, "grs", g.Division)
		assert.False(t, g.Found())
	}
	assert.Equal(t, []string{"toledo_1@01.25", "toledo_1@02.25", "cafelandia_1@02.25"}, got)
}

func TestGaps_RestrictedPeriods(t *testing.T) {
	t.Parallel()

	gaps := Gaps(form4Snapshot(), map[model.Period]bool{feb25: true})
	require.Len(t, gaps, 2)
	for _, g := range gaps {
		assert.Equal(t, feb25, g.Period)
	}

	assert.Empty(t, Gaps(form4Snapshot(), map[model.Period]bool{nov24: true}))
}

func TestMatch(t *testing.T) {
	t.Parallel()

	subs := []model.Submission{
		{Municipality: "TOLEDO", Unit: "01", ReferenceDate: "2025-02-01"},
		{Municipality: "Toledo", Unit: "1", ReferenceDate: "2025-02-20"},
		{Municipality: "Cafelandia", Unit: "1", ReferenceDate: "2025-03-01"},
		{Municipality: "Toledo", Unit: "1", ReferenceDate: "not a date"},
		{Municipality: "", Unit: "1", ReferenceDate: "2025-01-01"},
	}

	gaps := Match(Gaps(form4Snapshot(), nil), subs, lookup(t, "form4"))
	require.Len(t, gaps, 3)
	assert.False(t, gaps[0].Found(), "january has no submission")
	assert.Equal(t, "2025-02-01", gaps[1].ReferenceDate, "first match wins")
	assert.False(t, gaps[2].Found(), "a march reference does not fill february")

	found := FoundOnly(gaps)
	require.Len(t, found, 1)
	assert.Equal(t, "toledo_1", found[0].Key.Entity)
}

func TestLevelOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pct  string
		want Level
	}{
		{"100", LevelHigh},
		{"90.1", LevelHigh},
		{"90", LevelMedium},
		{"60", LevelMedium},
		{"59.9", LevelLow},
		{"0", LevelLow},
	}

	for _, tt := range tests {
		t.Run(tt.pct, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, LevelOf(decimal.RequireFromString(tt.pct)))
		})
	}
}

func TestExpectedMonths(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 4, ExpectedMonths(nov24, now))
	assert.Equal(t, 0, ExpectedMonths(model.Period{Year: 2025, Month: 3}, now))
	assert.Equal(t, 0, ExpectedMonths(model.Period{Year: 2025, Month: 6}, now))
	assert.Equal(t, 0, ExpectedMonths(model.Period{}, now))
}

func TestEngage(t *testing.T) {
	t.Parallel()

	monthly := &model.Snapshot{
		Division: "grs",
		Tabs: []model.Tab{
			tab(nov24,
				row("toledo_1", nov24, "Toledo", "1", model.StatusSent, "05/12/2024"),
				row("cafelandia_1", nov24, "Cafelândia", "1", model.StatusLate),
			),
			tab(dec24,
				row("toledo_1", dec24, "Toledo", "1", model.StatusDuplicate, "03/01/2025", "04/01/2025"),
				row("cafelandia_1", dec24, "Cafelândia", "1", model.StatusSent, "10/01/2025"),
			),
			tab(jan25,
				row("toledo_1", jan25, "Toledo", "1", model.StatusSent, "02/02/2025"),
				row("cafelandia_1", jan25, "Cafelândia", "1", model.StatusLate),
			),
			// The running month is not expected yet.
			tab(feb25,
				row("toledo_1", feb25, "Toledo", "1", model.StatusSent, "20/02/2025"),
			),
		},
	}
	form1 := &model.Snapshot{Tabs: []model.Tab{{
		Name: "Form 1 - Município",
		Rows: []model.SnapshotRow{
			row("toledo_", model.Period{}, "Toledo", "", model.StatusSent, "01/01/2025"),
			row("cafelandia_", model.Period{}, "Cafelândia", "", model.StatusLate),
		},
	}}}
	form3 := &model.Snapshot{Tabs: []model.Tab{{
		Name: "Form 3 - Empreendimento",
		Rows: []model.SnapshotRow{
			row("toledo_1", model.Period{}, "Toledo", "1", model.StatusDuplicate, "01/01/2025", "02/01/2025"),
			row("cafelandia_1", model.Period{}, "Cafelândia", "1", model.StatusSent, "01/01/2025"),
		},
	}}}

	now := time.Date(2025, time.February, 25, 0, 0, 0, 0, time.UTC)
	sum := Engage(
		Source{Form: lookup(t, "form4"), Snapshot: monthly},
		[]Source{{Form: lookup(t, "form1"), Snapshot: form1}, {Form: lookup(t, "form3"), Snapshot: form3}},
		nov24, now,
	)

	assert.Equal(t, "grs", sum.Division)
	assert.Equal(t, 3, sum.ExpectedMonths)
	assert.Equal(t, []string{"form1", "form3"}, sum.SingleForms)
	require.Len(t, sum.Rows, 2)

	toledo := sum.Rows[0]
	assert.Equal(t, "toledo_1", toledo.Entity)
	assert.Equal(t, 3, toledo.Monthly)
	assert.Equal(t, map[string]bool{"form1": true, "form3": true}, toledo.Sent)
	assert.Equal(t, 5, toledo.Total)
	assert.Equal(t, 5, toledo.Expected)
	assert.Equal(t, "100", toledo.Percent.String())
	assert.Equal(t, LevelHigh, toledo.Level)

	cafelandia := sum.Rows[1]
	assert.Equal(t, 1, cafelandia.Monthly)
	assert.Equal(t, map[string]bool{"form1": false, "form3": true}, cafelandia.Sent)
	assert.Equal(t, 2, cafelandia.Total)
	assert.Equal(t, "40", cafelandia.Percent.String())
	assert.Equal(t, LevelLow, cafelandia.Level)
}

func TestEngage_NothingExpected(t *testing.T) {
	t.Parallel()

	monthly := &model.Snapshot{Tabs: []model.Tab{
		tab(jan25, row("toledo_1", jan25, "Toledo", "1", model.StatusSent, "02/02/2025")),
	}}
	sum := Engage(Source{Form: lookup(t, "form4"), Snapshot: monthly}, nil, jan25, time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC))

	require.Len(t, sum.Rows, 1)
	assert.Equal(t, 0, sum.Rows[0].Expected)
	assert.True(t, sum.Rows[0].Percent.IsZero())
	assert.Equal(t, LevelLow, sum.Rows[0].Level)
}
