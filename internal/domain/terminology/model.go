package terminology

import "fmt"

// Canonical URIs for the three code systems bridged by this service.
const (
	SystemNamaste = "https://ayush.gov.in/fhir/CodeSystem/namaste"
	SystemTM2     = "http://id.who.int/icd/release/11/mms/tm2"
	SystemICD11   = "http://id.who.int/icd/release/11/mms"
)

// Traditional medicine systems covered by NAMASTE.
const (
	TradAyurveda   = "Ayurveda"
	TradSiddha     = "Siddha"
	TradUnani      = "Unani"
	TradHomeopathy = "Homeopathy"
	TradMixed      = "Mixed"
)

// Source modules a raw mapping row can come from.
const (
	ModuleTM2 = "TM2"
	ModuleMMS = "MMS"
)

// NamasteConcept is a single NAMASTE code. Immutable after load.
type NamasteConcept struct {
	Code     string   `json:"code"`
	Display  string   `json:"display"`
	System   string   `json:"system"` // Ayurveda|Siddha|Unani|Homeopathy
	Synonyms []string `json:"synonyms,omitempty"`
}

// TM2Concept is an ICD-11 Traditional Medicine Module 2 concept. Parent is a
// back-reference into the TM2 hierarchy; a dangling parent is tolerated.
type TM2Concept struct {
	TM2Code           string   `json:"tm2_code"`
	TM2Title          string   `json:"tm2_title"`
	ClassKind         string   `json:"class_kind"` // category|block|disorder
	Parent            string   `json:"parent,omitempty"`
	TraditionalSystem string   `json:"traditional_system"`
	TherapeuticArea   string   `json:"therapeutic_area,omitempty"`
	PatternType       string   `json:"pattern_type,omitempty"` // Patterns|Disorders|Root|Symptoms
	Synonyms          []string `json:"synonyms,omitempty"`
	Keywords          []string `json:"keywords,omitempty"`
}

// ThreeLayerMapping links a NAMASTE code through TM2 to ICD-11 MMS with
// per-layer and combined confidence.
type ThreeLayerMapping struct {
	NamasteCode       string  `json:"namaste_code"`
	NamasteDisplay    string  `json:"namaste_display"`
	TM2Code           string  `json:"tm2_code"`
	TM2Title          string  `json:"tm2_title"`
	TM2Confidence     float64 `json:"tm2_confidence"`
	ICDCode           string  `json:"icd_code"`
	ICDTitle          string  `json:"icd_title"`
	ICDConfidence     float64 `json:"icd_confidence"`
	OverallConfidence float64 `json:"overall_confidence"`
	TraditionalSystem string  `json:"traditional_system"`
	Module            string  `json:"module,omitempty"`
	CuratorApproved   bool    `json:"curator_approved"`

	// Set by the confidence enhancement pass.
	EnhancementApplied   bool `json:"enhancement_applied,omitempty"`
	DistributionAdjusted bool `json:"distribution_adjusted,omitempty"`
}

// baseConfidence is the raw combined confidence before any enhancement. The
// layer confidences never change after bridge-building, so this is a stable
// starting point for repeated enhancement passes.
func (m *ThreeLayerMapping) baseConfidence() float64 {
	return round2(m.TM2Confidence * m.ICDConfidence)
}

// FHIR ConceptMap equivalence levels derived from confidence.
const (
	EquivalenceEquivalent = "equivalent"
	EquivalenceWider      = "wider"
	EquivalenceNarrower   = "narrower"
	EquivalenceUnmatched  = "unmatched"
)

// EquivalenceFromConfidence is the single governing rule for all ConceptMap
// equivalence annotations, forward and reverse.
func EquivalenceFromConfidence(confidence float64) string {
	switch {
	case confidence >= 0.8:
		return EquivalenceEquivalent
	case confidence >= 0.6:
		return EquivalenceWider
	case confidence >= 0.4:
		return EquivalenceNarrower
	default:
		return EquivalenceUnmatched
	}
}

// IngestionError reports a malformed source row. The batch continues; the
// row is skipped and counted.
type IngestionError struct {
	Source string // namaste|tm2|mapping
	Line   int
	Column string
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("%s row %d: missing required column %q", e.Source, e.Line, e.Column)
}

// NotFoundError indicates a code absent from both the NAMASTE and TM2 stores.
type NotFoundError struct {
	Code string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("code %q not found", e.Code)
}

// SearchFilters narrow a terminology search.
type SearchFilters struct {
	System            string // NAMASTE traditional system
	TraditionalSystem string // TM2 traditional system
	TherapeuticArea   string
	PatternType       string
}

// SearchResult is a single hit from Search.
type SearchResult struct {
	Code      string `json:"code"`
	Display   string `json:"display"`
	SystemURI string `json:"system"`
	// MatchedOn names the field the query matched: display, code or synonym.
	MatchedOn string `json:"matched_on,omitempty"`
}

// ConceptDetail is the response to a code lookup.
type ConceptDetail struct {
	Code       string   `json:"code"`
	Display    string   `json:"display"`
	SystemURI  string   `json:"system"`
	Definition string   `json:"definition,omitempty"`
	Synonyms   []string `json:"synonyms,omitempty"`
}

// TranslateResult is the outcome of a NAMASTE -> TM2 -> ICD-11 translation.
type TranslateResult struct {
	Matched     bool    `json:"matched"`
	SourceCode  string  `json:"source_code"`
	TM2Code     string  `json:"tm2_code,omitempty"`
	TM2Title    string  `json:"tm2_title,omitempty"`
	TargetCode  string  `json:"target_code,omitempty"`
	TargetTitle string  `json:"target_title,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	Equivalence string  `json:"equivalence,omitempty"`
}

// CodeValidity is one entry of a bulk validation report.
type CodeValidity struct {
	Code  string `json:"code"`
	Valid bool   `json:"valid"`
}

// BulkValidationReport aggregates per-code validity.
type BulkValidationReport struct {
	Results []CodeValidity `json:"results"`
	Valid   int            `json:"valid"`
	Invalid int            `json:"invalid"`
}

// ConfidenceStats summarizes the mapping confidence distribution.
type ConfidenceStats struct {
	Total           int     `json:"total"`
	High            int     `json:"high"`
	Moderate        int     `json:"moderate"`
	Low             int     `json:"low"`
	HighPercent     float64 `json:"high_percent"`
	ModeratePercent float64 `json:"moderate_percent"`
	LowPercent      float64 `json:"low_percent"`
	Mean            float64 `json:"mean"`
}
