package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period is the reference month a submission describes. The zero value means
// "no period" and is used by forms that are submitted once per entity.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

// ParsePeriod parses a tab label in the MM.YY form ("03.25"). Two-digit years
// are read as 20YY.
func ParsePeriod(s string) (Period, bool) {
	s = strings.TrimSpace(s)
	mm, yy, ok := strings.Cut(s, ".")
	if !ok || mm == "" || yy == "" || strings.Contains(yy, ".") {
		return Period{}, false
	}
	month, err := strconv.Atoi(mm)
	if err != nil || month < 1 || month > 12 {
		return Period{}, false
	}
	year, err := strconv.Atoi(yy)
	if err != nil || year < 0 {
		return Period{}, false
	}
	if year < 100 {
		year += 2000
	}
	return Period{Year: year, Month: month}, true
}

// IsZero reports whether p is the "no period" value.
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// String renders the period as MM.YY, or "" for the zero period.
func (p Period) String() string {
	if p.IsZero() {
		return ""
	}
	return fmt.Sprintf("%02d.%02d", p.Month, p.Year%100)
}

// Semester returns 1 for January–June and 2 for July–December.
func (p Period) Semester() int {
	if p.Month >= 1 && p.Month <= 6 {
		return 1
	}
	return 2
}

// MonthsUntil returns how many whole months separate p from the month of now.
// A period in the current month yields 0; last month yields 1.
func (p Period) MonthsUntil(now time.Time) int {
	return (now.Year()*12 + int(now.Month())) - (p.Year*12 + p.Month)
}

// Before reports whether p sorts before q.
func (p Period) Before(q Period) bool {
	if p.Year != q.Year {
		return p.Year < q.Year
	}
	return p.Month < q.Month
}

// SemesterOf returns the calendar semester of t.
func SemesterOf(t time.Time) int {
	return PeriodOf(t).Semester()
}
