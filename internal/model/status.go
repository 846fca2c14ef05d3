package model

import "strings"

// Status is the tracked submission state of an entity for a period. Values are
// the labels used in the tracking workbooks so snapshots round-trip unchanged.
type Status string

const (
	StatusNone            Status = ""
	StatusSent            Status = "Enviado"
	StatusLate            Status = "Atrasado"
	StatusLateTwoOrMore   Status = "Atrasado >= 2"
	StatusDuplicate       Status = "Duplicado"
	StatusNoTechnician    Status = "Sem Técnico"
	StatusOtherOccurrence Status = "Outras Ocorrências"
)

// AllStatuses lists every status in display order.
var AllStatuses = []Status{
	StatusSent,
	StatusDuplicate,
	StatusLate,
	StatusLateTwoOrMore,
	StatusNoTechnician,
	StatusOtherOccurrence,
}

// ParseStatus maps a workbook cell to a Status. Unknown labels are kept
// verbatim so a human-entered value is never lost.
func ParseStatus(s string) Status {
	s = strings.TrimSpace(s)
	switch s {
	case "UVR Sem Técnico":
		return StatusNoTechnician
	case "Atrasado>=2", "Atrasado >=2":
		return StatusLateTwoOrMore
	}
	return Status(s)
}

// Sticky reports whether the status is a manual override that is never
// reclassified automatically.
func (s Status) Sticky() bool {
	return s == StatusNoTechnician || s == StatusOtherOccurrence
}

// Validation is a reviewer's annotation on a tracked row or exception record.
type Validation string

const (
	ValidationBlank     Validation = ""
	ValidationYes       Validation = "Sim"
	ValidationNo        Validation = "Não"
	ValidationCorrected Validation = "Corrigido"
)

// ParseValidation maps a workbook cell to a Validation. Unknown values are
// kept verbatim.
func ParseValidation(s string) Validation {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "sim":
		return ValidationYes
	case "não", "nao":
		return ValidationNo
	case "corrigido":
		return ValidationCorrected
	}
	return Validation(s)
}

// YesOrNo collapses any value other than Sim to Não.
func (v Validation) YesOrNo() Validation {
	if v == ValidationYes {
		return ValidationYes
	}
	return ValidationNo
}

// Severity classifies how far a flagged indicator deviates from its average.
type Severity string

const (
	SeverityNone   Severity = ""
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)
