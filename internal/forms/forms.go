// Package forms describes the monitoring forms the reconciler understands:
// which export columns identify an entity, whether the form is tracked per
// month, and which numeric indicators are checked against historical averages.
package forms

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Mode tells whether a form is submitted once per entity or once per month.
type Mode int

const (
	// Single forms have one tracked sheet and no period dimension.
	Single Mode = iota
	// Monthly forms have one tab per reference month named MM.YY.
	Monthly
)

func (m Mode) String() string {
	if m == Monthly {
		return "monthly"
	}
	return "single"
}

// Columns names the export columns read for each submission.
type Columns struct {
	Municipality  string
	Unit          string
	SubmittedAt   string
	ReferenceDate string
	Technician    string
}

// Indicator is a numeric field checked by the deviation analyzer.
type Indicator struct {
	Name string
	// Column is the export column holding the value. When the export has no
	// such column, FallbackIndex (if >= 0) selects it by position.
	Column        string
	FallbackIndex int
	// AverageH1 and AverageH2 are the column letters of the first- and
	// second-semester averages in the reference table.
	AverageH1 string
	AverageH2 string
}

// Form is one monitoring form definition.
type Form struct {
	Name    string
	Title   string
	Mode    Mode
	HasUnit bool
	// Sheet is the tracked sheet of a Single form.
	Sheet string
	// Workbook is the canonical tracking workbook file name inside a
	// division folder.
	Workbook   string
	Columns    Columns
	Indicators []Indicator
	// AverageMunicipality and AverageUnit are the column letters keying the
	// historical averages table.
	AverageMunicipality string
	AverageUnit         string
}

// IndicatorNames returns the indicator names in definition order.
func (f *Form) IndicatorNames() []string {
	names := make([]string, len(f.Indicators))
	for i, ind := range f.Indicators {
		names[i] = ind.Name
	}
	return names
}

// HasIndicators reports whether the form is checked for discrepancies.
func (f *Form) HasIndicators() bool {
	return len(f.Indicators) > 0
}

var registry = map[string]*Form{
	"form1": {
		Name:     "form1",
		Title:    "Form 1 - Município",
		Mode:     Single,
		Sheet:    "Form 1 - Município",
		Workbook: "0 - Monitoramento Form 1, 2 e 3.xlsx",
		Columns: Columns{
			Municipality: "municipio",
			SubmittedAt:  "data_envio",
		},
	},
	"form3": {
		Name:     "form3",
		Title:    "Form 3 - Empreendimento",
		Mode:     Single,
		HasUnit:  true,
		Sheet:    "Form 3 - Empreendimento",
		Workbook: "0 - Monitoramento Form 1, 2 e 3.xlsx",
		Columns: Columns{
			Municipality: "municipio",
			Unit:         "uvr_numero",
			SubmittedAt:  "data_envio",
		},
	},
	"form4": {
		Name:     "form4",
		Title:    "Form 4 - Produção",
		Mode:     Monthly,
		HasUnit:  true,
		Workbook: "0 - Monitoramento Form 4.xlsx",
		Columns: Columns{
			Municipality:  "gm_nome",
			Unit:          "guvr_numero",
			SubmittedAt:   "data_de_envio",
			ReferenceDate: "data_de_referencia",
			Technician:    "nome_tc_uvr",
		},
		Indicators: []Indicator{
			{Name: "Receita Vendas (R$)", Column: "receita_vendas", FallbackIndex: 6, AverageH1: "E", AverageH2: "M"},
			{Name: "Receita Serviços (R$)", Column: "receita_servicos", FallbackIndex: -1, AverageH1: "F", AverageH2: "N"},
			{Name: "Despesas (R$)", Column: "despesas", FallbackIndex: -1, AverageH1: "G", AverageH2: "O"},
			{Name: "Material Reciclado (T)", Column: "material_reciclado", FallbackIndex: -1, AverageH1: "H", AverageH2: "P"},
			{Name: "Rejeito (T)", Column: "rejeito", FallbackIndex: -1, AverageH1: "I", AverageH2: "Q"},
			{Name: "Total Material Processado (T)", Column: "total_material_processado", FallbackIndex: -1, AverageH1: "J", AverageH2: "R"},
			{Name: "Postos de Trabalho (U)", Column: "postos_de_trabalho", FallbackIndex: -1, AverageH1: "K", AverageH2: "S"},
			{Name: "Renda Média (R$)", Column: "renda_media", FallbackIndex: -1, AverageH1: "L", AverageH2: "T"},
		},
		AverageMunicipality: "A",
		AverageUnit:         "C",
	},
}

// Lookup returns the form registered under name.
func Lookup(name string) (*Form, error) {
	f, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, eris.Errorf("forms: unknown form %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return f, nil
}

// Names lists the registered form names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ColumnIndex converts a spreadsheet column letter ("A", "AB") to a
// zero-based index. It returns -1 for invalid input.
func ColumnIndex(letter string) int {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if letter == "" {
		return -1
	}
	idx := 0
	for _, r := range letter {
		if r < 'A' || r > 'Z' {
			return -1
		}
		idx = idx*26 + int(r-'A'+1)
	}
	return idx - 1
}
