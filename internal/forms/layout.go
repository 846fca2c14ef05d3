package forms

// Sheet names of the exception ledgers in a division workbook.
const (
	IrregularSheet  = "Irregulares"
	DiscrepantSheet = "Discrepantes"
)

// Ledger column headers. Legacy sheets are matched by these names, so they
// must not change.
const (
	HeaderRegion        = "Regional"
	HeaderMunicipality  = "Município"
	HeaderUnit          = "UVR"
	HeaderTechnician    = "Técnico de UVR"
	HeaderTechnicianAlt = "Técnico UVR"
	HeaderSubmittedAt   = "Data de Envio"
	HeaderPeriod        = "Mês de referência"
	HeaderPeriodAlt     = "Mês Referência"
	HeaderValidated     = "Validado pelo Regional"
	HeaderNotes         = "Observações"
	HeaderDeleteIDs     = "Formulários para Deletar (ID)"
	HeaderValidatedIT   = "Validado Equipe de TI"
	HeaderITResponse    = "Resposta Equipe de TI"
)

// IrregularHeaders is the column layout of the Irregulares sheet.
var IrregularHeaders = []string{
	HeaderRegion,
	HeaderMunicipality,
	HeaderUnit,
	HeaderTechnician,
	HeaderSubmittedAt,
	HeaderPeriod,
	HeaderValidated,
	HeaderNotes,
	HeaderDeleteIDs,
	HeaderValidatedIT,
	HeaderITResponse,
}

// DiscrepantHeaders returns the column layout of the Discrepantes sheet: the
// common columns, one column per indicator, then the review columns.
func (f *Form) DiscrepantHeaders() []string {
	h := []string{
		HeaderRegion,
		HeaderMunicipality,
		HeaderUnit,
		HeaderTechnicianAlt,
		HeaderPeriodAlt,
		HeaderSubmittedAt,
	}
	h = append(h, f.IndicatorNames()...)
	return append(h, HeaderValidated, HeaderNotes)
}

// TabHeaders is written to a tracked tab that has no header row of its own.
var TabHeaders = []string{
	"Regional",
	"Município",
	"UVR",
	"Técnico de UVR",
	"Situação",
	"Data de Envio",
	"Validado pelo Regional",
}

// Positions of the fixed columns of a tracked tab.
const (
	ColRegion = iota
	ColMunicipality
	ColUnit
	ColTechnician
	ColStatus
	ColDates
	ColValidated
	// ColExtra is the first column preserved verbatim.
	ColExtra
)

// Dropdown lists offered on the review columns.
var (
	YesNo            = []string{"Sim", "Não"}
	YesNoCorrected   = []string{"Sim", "Não", "Corrigido"}
	YesNoUnderReview = []string{"Sim", "Não", "Em Análise"}
	StatusChoices    = []string{"Enviado", "Atrasado", "Atrasado >= 2", "Outras Ocorrências", "Sem Técnico", "Duplicado"}
)
