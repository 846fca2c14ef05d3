package normalize

import (
	"strings"
	"time"
)

// DisplayLayout is how submission dates are written to the tracking workbooks.
const DisplayLayout = "02/01/2006"

// UnknownDate stands in for a submission whose timestamp could not be parsed.
// It is written to the workbook like any date so the recorded count of
// submissions survives the round trip.
const UnknownDate = "-"

var dateLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
	DisplayLayout,
}

// ParseTime parses a timestamp in any of the layouts seen in form exports.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	// Postgres exports may carry a zone suffix such as "+00".
	if i := strings.LastIndexAny(s, "+-"); i > len("2006-01-02") {
		if t, err := time.Parse("2006-01-02 15:04:05.999999999", strings.TrimSpace(s[:i])); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Date formats a raw submission timestamp as dd/mm/yyyy. Unparseable input
// becomes "" so one bad row never aborts a batch; see SubmissionDate.
func Date(s string) string {
	t, ok := ParseTime(s)
	if !ok {
		return ""
	}
	return DateValue(t)
}

// SubmissionDate is Date with UnknownDate in place of "".
func SubmissionDate(s string) string {
	if d := Date(s); d != "" {
		return d
	}
	return UnknownDate
}

// DateValue formats t as dd/mm/yyyy.
func DateValue(t time.Time) string {
	return t.Format(DisplayLayout)
}

// SplitDates parses the comma-delimited date list stored in a snapshot cell.
// A blank cell has no dates. Blank entries inside a non-blank list are kept:
// they stand for submissions whose timestamp could not be parsed, and
// dropping them would make the next run see the list grow.
func SplitDates(cell string) []string {
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	parts := strings.Split(cell, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.TrimSpace(part))
	}
	return out
}

// JoinDates renders a date list the way it is stored in a snapshot cell.
// Blank entries are written as UnknownDate so that a list of one blank entry
// does not become an empty cell.
func JoinDates(dates []string) string {
	out := make([]string, len(dates))
	for i, d := range dates {
		if strings.TrimSpace(d) == "" {
			d = UnknownDate
		}
		out[i] = d
	}
	return strings.Join(out, ", ")
}
