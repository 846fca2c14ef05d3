package model

// IrregularRecord is a submission for a period the division does not track.
type IrregularRecord struct {
	Region        string     `json:"region"`
	Municipality  string     `json:"municipality"`
	Unit          string     `json:"unit"`
	Technician    string     `json:"technician"`
	SubmittedAt   string     `json:"submitted_at"`
	Period        string     `json:"period"`
	Validated     Validation `json:"validated"`
	Notes         string     `json:"notes"`
	DeleteFormIDs string     `json:"delete_form_ids"`
	ValidatedIT   Validation `json:"validated_it"`
	ITResponse    string     `json:"it_response"`
}

// DiscrepantRecord is an (entity, period) with at least one indicator far from
// its historical average.
type DiscrepantRecord struct {
	Region       string             `json:"region"`
	Municipality string             `json:"municipality"`
	Unit         string             `json:"unit"`
	Technician   string             `json:"technician"`
	Period       string             `json:"period"`
	SubmittedAt  string             `json:"submitted_at"`
	Values       map[string]float64 `json:"values"`
	Deviations   map[string]float64 `json:"deviations,omitempty"`
	Validated    Validation         `json:"validated"`
	Notes        string             `json:"notes"`
}

// Finding is one flagged indicator.
type Finding struct {
	Value     float64  `json:"value"`
	Average   float64  `json:"average"`
	Deviation float64  `json:"deviation"`
	Severity  Severity `json:"severity"`
}

// SubmissionKey identifies one dated submission of an entity for a period.
// Irregular records are matched against the current batch by this key.
type SubmissionKey struct {
	Entity string `json:"entity"`
	Date   string `json:"date"`
	Period string `json:"period"`
}
