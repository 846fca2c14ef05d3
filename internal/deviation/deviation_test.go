package deviation

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/recycling-monitor/internal/model"
)

const despesas = "Despesas (R$)"

func ptr(v float64) *float64 { return &v }

func at(year int, month time.Month) time.Time {
	return time.Date(year, month, 10, 0, 0, 0, 0, time.UTC)
}

func agg(period model.Period, values map[string]float64) *model.Aggregate {
	return &model.Aggregate{
		Key:          model.PeriodKey{Entity: "toledo_1", Period: period},
		Indicators:   values,
		HasReference: true,
	}
}

func TestInWindow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		period model.Period
		now    time.Time
		want   bool
	}{
		{"H1 now, H1 this year", model.Period{Year: 2025, Month: 3}, at(2025, time.May), true},
		{"H1 now, H2 last year", model.Period{Year: 2024, Month: 11}, at(2025, time.May), true},
		{"H1 now, H1 last year", model.Period{Year: 2024, Month: 3}, at(2025, time.May), false},
		{"H1 now, H2 this year", model.Period{Year: 2025, Month: 8}, at(2025, time.May), false},
		{"H2 now, H1 this year", model.Period{Year: 2025, Month: 3}, at(2025, time.September), true},
		{"H2 now, H2 this year", model.Period{Year: 2025, Month: 7}, at(2025, time.September), true},
		{"H2 now, H2 last year", model.Period{Year: 2024, Month: 12}, at(2025, time.September), false},
		{"zero period", model.Period{}, at(2025, time.September), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, InWindow(tt.period, tt.now))
		})
	}
}

func TestComparisonAverage(t *testing.T) {
	t.Parallel()

	avg := model.SemesterAverages{H1: ptr(100), H2: ptr(200)}
	h1 := model.Period{Year: 2025, Month: 2}
	h2 := model.Period{Year: 2024, Month: 10}

	tests := []struct {
		name   string
		period model.Period
		now    time.Time
		want   float64
	}{
		{"H2 evaluation, H1 period", h1, at(2025, time.August), 100},
		{"H2 evaluation, H2 period", model.Period{Year: 2025, Month: 7}, at(2025, time.August), 200},
		{"H1 evaluation, H1 period", h1, at(2025, time.March), 200},
		{"H1 evaluation, H2 period", h2, at(2025, time.March), 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ComparisonAverage(avg, tt.period, tt.now)
			require.True(t, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestComparisonAverage_Unusable(t *testing.T) {
	t.Parallel()

	p := model.Period{Year: 2025, Month: 2}
	now := at(2025, time.August)

	for _, avg := range []model.SemesterAverages{
		{},
		{H1: ptr(0), H2: ptr(50)},
		{H1: ptr(math.NaN()), H2: ptr(50)},
	} {
		_, ok := ComparisonAverage(avg, p, now)
		assert.False(t, ok)
	}
}

func TestSeverityOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, model.SeverityNone, SeverityOf(59.99))
	assert.Equal(t, model.SeverityLow, SeverityOf(60))
	assert.Equal(t, model.SeverityLow, SeverityOf(69.99))
	assert.Equal(t, model.SeverityMedium, SeverityOf(70))
	assert.Equal(t, model.SeverityHigh, SeverityOf(80))
	assert.Equal(t, model.SeverityHigh, SeverityOf(150))
}

func TestAnalyze_HighDeviation(t *testing.T) {
	t.Parallel()

	a := New(0)
	hist := model.HistoricalAverage{despesas: {H1: ptr(400), H2: ptr(900)}}
	got := a.Analyze(agg(model.Period{Year: 2025, Month: 3}, map[string]float64{despesas: 1000}), hist, []string{despesas}, at(2025, time.August))

	require.Contains(t, got, despesas)
	f := got[despesas]
	assert.InDelta(t, 150.0, f.Deviation, 1e-9)
	assert.InDelta(t, 400.0, f.Average, 1e-9)
	assert.InDelta(t, 1000.0, f.Value, 1e-9)
	assert.Equal(t, model.SeverityHigh, f.Severity)
}

func TestAnalyze_Threshold(t *testing.T) {
	t.Parallel()

	a := New(DefaultThreshold)
	hist := model.HistoricalAverage{
		"a": {H1: ptr(100)},
		"b": {H1: ptr(100)},
		"c": {H1: ptr(100)},
	}
	values := map[string]float64{"a": 160, "b": 159.99, "c": 40}
	got := a.Analyze(agg(model.Period{Year: 2025, Month: 3}, values), hist, []string{"a", "b", "c"}, at(2025, time.August))

	assert.Contains(t, got, "a")
	assert.NotContains(t, got, "b")
	assert.Contains(t, got, "c")
	assert.Equal(t, model.SeverityLow, got["c"].Severity)
}

func TestAnalyze_NoFalsePositives(t *testing.T) {
	t.Parallel()

	a := New(0)
	p := model.Period{Year: 2025, Month: 3}
	now := at(2025, time.August)
	names := []string{despesas}

	tests := []struct {
		name   string
		values map[string]float64
		hist   model.HistoricalAverage
	}{
		{"zero value", map[string]float64{despesas: 0}, model.HistoricalAverage{despesas: {H1: ptr(400)}}},
		{"absent value", map[string]float64{}, model.HistoricalAverage{despesas: {H1: ptr(400)}}},
		{"zero average", map[string]float64{despesas: 1000}, model.HistoricalAverage{despesas: {H1: ptr(0)}}},
		{"missing average", map[string]float64{despesas: 1000}, model.HistoricalAverage{despesas: {H2: ptr(400)}}},
		{"no indicator average", map[string]float64{despesas: 1000}, model.HistoricalAverage{}},
		{"no entity average", map[string]float64{despesas: 1000}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Nil(t, a.Analyze(agg(p, tt.values), tt.hist, names, now))
		})
	}
}

func TestAnalyze_SkipsOutsideWindowOrWithoutReference(t *testing.T) {
	t.Parallel()

	a := New(0)
	hist := model.HistoricalAverage{despesas: {H1: ptr(400), H2: ptr(400)}}
	values := map[string]float64{despesas: 1000}

	old := agg(model.Period{Year: 2023, Month: 3}, values)
	assert.Nil(t, a.Analyze(old, hist, []string{despesas}, at(2025, time.August)))

	noRef := agg(model.Period{Year: 2025, Month: 3}, values)
	noRef.HasReference = false
	assert.Nil(t, a.Analyze(noRef, hist, []string{despesas}, at(2025, time.August)))

	assert.Nil(t, a.Analyze(nil, hist, []string{despesas}, at(2025, time.August)))
}

func TestSameValues(t *testing.T) {
	t.Parallel()

	assert.True(t, SameValues(map[string]float64{"a": 1000.001}, map[string]float64{"a": 1000}))
	assert.True(t, SameValues(nil, map[string]float64{}))
	assert.False(t, SameValues(map[string]float64{"a": 1000.01}, map[string]float64{"a": 1000}))
	assert.False(t, SameValues(map[string]float64{"a": 1}, map[string]float64{"b": 1}))
	assert.False(t, SameValues(map[string]float64{"a": 1}, map[string]float64{"a": 1, "b": 2}))
}

func TestCarryOver(t *testing.T) {
	t.Parallel()

	current := model.DiscrepantRecord{Municipality: "Toledo", Unit: "1", Period: "03.25", Values: map[string]float64{despesas: 1000}}

	t.Run("new record", func(t *testing.T) {
		t.Parallel()
		got := CarryOver(current, nil)
		assert.Equal(t, model.ValidationNo, got.Validated)
		assert.Empty(t, got.Notes)
	})

	t.Run("unchanged values keep review", func(t *testing.T) {
		t.Parallel()
		prev := &model.DiscrepantRecord{Values: map[string]float64{despesas: 1000.004}, Validated: model.ValidationYes, Notes: "conferido"}
		got := CarryOver(current, prev)
		assert.Equal(t, model.ValidationYes, got.Validated)
		assert.Equal(t, "conferido", got.Notes)
	})

	t.Run("changed values reset review", func(t *testing.T) {
		t.Parallel()
		prev := &model.DiscrepantRecord{Values: map[string]float64{despesas: 900}, Validated: model.ValidationYes, Notes: "conferido"}
		got := CarryOver(current, prev)
		assert.Equal(t, model.ValidationNo, got.Validated)
		assert.Equal(t, "conferido", got.Notes)
	})

	t.Run("reappearing after correction needs review", func(t *testing.T) {
		t.Parallel()
		prev := &model.DiscrepantRecord{Values: map[string]float64{despesas: 1000}, Validated: model.ValidationCorrected}
		got := CarryOver(current, prev)
		assert.Equal(t, model.ValidationNo, got.Validated)
	})

	t.Run("blank review is carried", func(t *testing.T) {
		t.Parallel()
		prev := &model.DiscrepantRecord{Values: map[string]float64{despesas: 1000}}
		got := CarryOver(current, prev)
		assert.Equal(t, model.ValidationBlank, got.Validated)
	})
}
