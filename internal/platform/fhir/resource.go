package fhir

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// Parameter is a name/value entry in a FHIR Parameters resource. Only the
// value types the terminology operations emit are modelled.
type Parameter struct {
	Name         string       `json:"name"`
	ValueString  string       `json:"valueString,omitempty"`
	ValueCode    string       `json:"valueCode,omitempty"`
	ValueBoolean *bool        `json:"valueBoolean,omitempty"`
	ValueDecimal *float64     `json:"valueDecimal,omitempty"`
	ValueCoding  *Coding      `json:"valueCoding,omitempty"`
	Part         []Parameter  `json:"part,omitempty"`
}

// Parameters is a FHIR Parameters resource.
type Parameters struct {
	ResourceType string      `json:"resourceType"`
	Parameter    []Parameter `json:"parameter"`
}

// NewParameters creates a Parameters resource from the given entries.
func NewParameters(params ...Parameter) *Parameters {
	return &Parameters{ResourceType: "Parameters", Parameter: params}
}

// BoolPtr is a helper for optional boolean parameter values.
func BoolPtr(b bool) *bool { return &b }
