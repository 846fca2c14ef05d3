// Package ingest turns the raw inputs of a run into domain values: the form
// export into submissions, division workbooks into snapshots and the
// historical averages table into an AverageTable.
//
// Malformed rows never fail a read. Missing files and missing required
// columns do.
package ingest

import (
	"strings"

	"github.com/sells-group/recycling-monitor/internal/normalize"
)

// headerIndex maps each normalized header name to its first column.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := normalize.Text(h)
		if key == "" {
			continue
		}
		if _, ok := idx[key]; !ok {
			idx[key] = i
		}
	}
	return idx
}

// column returns the index of the first of names present in idx, or -1.
func column(idx map[string]int, names ...string) int {
	for _, n := range names {
		if i, ok := idx[normalize.Text(n)]; ok {
			return i
		}
	}
	return -1
}

// cell returns row[i] trimmed, or "" when i is out of range.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
