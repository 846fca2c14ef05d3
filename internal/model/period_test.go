package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Period
		ok   bool
	}{
		{"03.25", Period{Year: 2025, Month: 3}, true},
		{" 12.24 ", Period{Year: 2024, Month: 12}, true},
		{"1.25", Period{Year: 2025, Month: 1}, true},
		{"13.25", Period{}, false},
		{"00.25", Period{}, false},
		{"03.2025.1", Period{}, false},
		{"Irregulares", Period{}, false},
		{"", Period{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := ParsePeriod(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPeriod_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "03.25", Period{Year: 2025, Month: 3}.String())
	assert.Equal(t, "12.24", Period{Year: 2024, Month: 12}.String())
	assert.Empty(t, Period{}.String())
	assert.True(t, Period{}.IsZero())

	p, ok := ParsePeriod(Period{Year: 2025, Month: 7}.String())
	require.True(t, ok)
	assert.Equal(t, Period{Year: 2025, Month: 7}, p)
}

func TestPeriod_MonthsUntil(t *testing.T) {
	t.Parallel()

	feb := Period{Year: 2025, Month: 2}
	assert.Equal(t, 1, feb.MonthsUntil(time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2, feb.MonthsUntil(time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0, feb.MonthsUntil(time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2, Period{Year: 2024, Month: 12}.MonthsUntil(time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)))
}

func TestPeriod_SemesterAndOrder(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, Period{Year: 2025, Month: 6}.Semester())
	assert.Equal(t, 2, Period{Year: 2025, Month: 7}.Semester())
	assert.Equal(t, 2, SemesterOf(time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC)))

	assert.True(t, Period{Year: 2024, Month: 12}.Before(Period{Year: 2025, Month: 1}))
	assert.True(t, Period{Year: 2025, Month: 1}.Before(Period{Year: 2025, Month: 2}))
	assert.False(t, Period{Year: 2025, Month: 2}.Before(Period{Year: 2025, Month: 2}))
	assert.Equal(t, Period{Year: 2025, Month: 3}, PeriodOf(time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)))
}
