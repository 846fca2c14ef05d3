// Package regions maps municipalities to the regional office that reviews
// them. The table is informational: it fills the Regional column and never
// affects reconciliation results.
package regions

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/recycling-monitor/internal/normalize"
)

type file struct {
	Divisions map[string]map[string]string `yaml:"divisions"`
}

// Table is a loaded region lookup. The zero value and nil are empty tables.
type Table struct {
	byDivision map[string]map[string]string
}

// Load reads a region table from a YAML file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "regions: read %s", path)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, eris.Wrapf(err, "regions: load %s", path)
	}
	return t, nil
}

// Parse decodes a region table of the form
//
//	divisions:
//	  grs:
//	    Cafelândia: Valquiria
func Parse(data []byte) (*Table, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "regions: parse yaml")
	}
	t := &Table{byDivision: make(map[string]map[string]string, len(f.Divisions))}
	for division, entries := range f.Divisions {
		m := make(map[string]string, len(entries))
		for municipality, region := range entries {
			key := normalize.Text(municipality)
			if key == "" {
				continue
			}
			m[key] = region
		}
		t.byDivision[normalize.Text(division)] = m
	}
	return t, nil
}

// Region returns the region of municipality. The division's own table is
// consulted first, then every other division in name order. It returns ""
// when the municipality is unknown.
func (t *Table) Region(division, municipality string) string {
	if t == nil {
		return ""
	}
	key := normalize.Text(municipality)
	if key == "" {
		return ""
	}
	if r, ok := t.byDivision[normalize.Text(division)][key]; ok {
		return r
	}
	for _, d := range t.Divisions() {
		if r, ok := t.byDivision[d][key]; ok {
			return r
		}
	}
	return ""
}

// Divisions returns the division names in the table, sorted.
func (t *Table) Divisions() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.byDivision))
	for d := range t.byDivision {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of municipalities across all divisions.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	n := 0
	for _, m := range t.byDivision {
		n += len(m)
	}
	return n
}
