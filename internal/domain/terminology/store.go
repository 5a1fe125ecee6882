package terminology

import (
	"strings"

	"github.com/rs/zerolog"
)

// Row is one tabular source row, keyed by column name. Unknown columns are
// ignored; missing required columns skip the row.
type Row map[string]string

// MappingRow is a validated raw NAMASTE mapping row before bridge-building.
// Depending on Module it targets either TM2 or ICD-11 MMS directly.
type MappingRow struct {
	NamasteCode    string
	NamasteDisplay string
	TargetCode     string
	TargetTitle    string
	Confidence     float64
	Module         string
}

// IngestReport counts what Load accepted and skipped.
type IngestReport struct {
	NamasteLoaded  int `json:"namaste_loaded"`
	TM2Loaded      int `json:"tm2_loaded"`
	MappingsLoaded int `json:"mappings_loaded"`
	RowsSkipped    int `json:"rows_skipped"`

	// Errors holds one IngestionError per skipped row.
	Errors []*IngestionError `json:"errors,omitempty"`
}

// Dataset holds the loaded terminology tables keyed for O(1) lookup. It is
// built once at startup and never mutated afterwards, so concurrent reads
// need no locking. Construct a fresh Dataset per test.
type Dataset struct {
	namasteByCode     map[string]*NamasteConcept
	tm2ByCode         map[string]*TM2Concept
	mappingsByNamaste map[string][]*ThreeLayerMapping

	// Insertion-ordered views for iteration and FHIR generation.
	namasteOrder []*NamasteConcept
	tm2Order     []*TM2Concept
	mappings     []*ThreeLayerMapping
}

var (
	namasteRequired = []string{"code", "display", "system"}
	tm2Required     = []string{"tm2_code", "tm2_title"}
	mappingRequired = []string{"namaste_code"}
)

// Load builds a Dataset from the three source tables. Malformed rows are
// skipped and reported, never fatal to the batch. Dangling TM2 parent
// references are tolerated and logged.
func Load(namasteRows, tm2Rows, mappingRows []Row, logger zerolog.Logger) (*Dataset, *IngestReport) {
	ds := &Dataset{
		namasteByCode:     make(map[string]*NamasteConcept, len(namasteRows)),
		tm2ByCode:         make(map[string]*TM2Concept, len(tm2Rows)),
		mappingsByNamaste: make(map[string][]*ThreeLayerMapping),
	}
	report := &IngestReport{}

	for i, row := range namasteRows {
		if col, ok := missingColumn(row, namasteRequired); !ok {
			report.skip(&IngestionError{Source: "namaste", Line: i + 1, Column: col})
			continue
		}
		c := &NamasteConcept{
			Code:     row["code"],
			Display:  row["display"],
			System:   row["system"],
			Synonyms: splitList(row["synonyms"]),
		}
		ds.namasteByCode[c.Code] = c
		ds.namasteOrder = append(ds.namasteOrder, c)
		report.NamasteLoaded++
	}

	for i, row := range tm2Rows {
		if col, ok := missingColumn(row, tm2Required); !ok {
			report.skip(&IngestionError{Source: "tm2", Line: i + 1, Column: col})
			continue
		}
		c := &TM2Concept{
			TM2Code:           row["tm2_code"],
			TM2Title:          row["tm2_title"],
			ClassKind:         row["class_kind"],
			Parent:            row["parent"],
			TraditionalSystem: defaultString(row["traditional_system"], TradMixed),
			TherapeuticArea:   row["therapeutic_area"],
			PatternType:       row["pattern_type"],
			Synonyms:          splitList(row["synonyms"]),
			Keywords:          splitList(row["keywords"]),
		}
		ds.tm2ByCode[c.TM2Code] = c
		ds.tm2Order = append(ds.tm2Order, c)
		report.TM2Loaded++
	}

	// Validate parent references now that the full TM2 table is loaded.
	for _, c := range ds.tm2Order {
		if c.Parent != "" {
			if _, ok := ds.tm2ByCode[c.Parent]; !ok {
				logger.Warn().
					Str("tm2_code", c.TM2Code).
					Str("parent", c.Parent).
					Msg("dangling TM2 parent reference")
			}
		}
	}

	raw := make([]MappingRow, 0, len(mappingRows))
	for i, row := range mappingRows {
		if col, ok := missingColumn(row, mappingRequired); !ok {
			report.skip(&IngestionError{Source: "mapping", Line: i + 1, Column: col})
			continue
		}
		mr, err := parseMappingRow(row, i+1)
		if err != nil {
			report.skip(err)
			continue
		}
		raw = append(raw, mr)
	}

	mappings := BuildThreeLayer(raw, logger)
	for _, m := range mappings {
		ds.mappings = append(ds.mappings, m)
		ds.mappingsByNamaste[m.NamasteCode] = append(ds.mappingsByNamaste[m.NamasteCode], m)
	}
	report.MappingsLoaded = len(mappings)

	return ds, report
}

// GetNamaste looks up a NAMASTE concept by code.
func (ds *Dataset) GetNamaste(code string) (*NamasteConcept, bool) {
	c, ok := ds.namasteByCode[code]
	return c, ok
}

// GetTM2 looks up a TM2 concept by code.
func (ds *Dataset) GetTM2(code string) (*TM2Concept, bool) {
	c, ok := ds.tm2ByCode[code]
	return c, ok
}

// GetMappingsFor returns the mappings for a NAMASTE code in insertion order.
func (ds *Dataset) GetMappingsFor(namasteCode string) []*ThreeLayerMapping {
	return ds.mappingsByNamaste[namasteCode]
}

// Mappings returns all three-layer mappings in insertion order.
func (ds *Dataset) Mappings() []*ThreeLayerMapping {
	return ds.mappings
}

// NamasteConcepts returns all NAMASTE concepts in insertion order.
func (ds *Dataset) NamasteConcepts() []*NamasteConcept {
	return ds.namasteOrder
}

// TM2Concepts returns all TM2 concepts in insertion order.
func (ds *Dataset) TM2Concepts() []*TM2Concept {
	return ds.tm2Order
}

func (r *IngestReport) skip(err *IngestionError) {
	r.RowsSkipped++
	r.Errors = append(r.Errors, err)
}

// missingColumn returns the first required column absent or empty in the row.
func missingColumn(row Row, required []string) (string, bool) {
	for _, col := range required {
		if strings.TrimSpace(row[col]) == "" {
			return col, false
		}
	}
	return "", true
}

func parseMappingRow(row Row, line int) (MappingRow, *IngestionError) {
	mr := MappingRow{
		NamasteCode:    row["namaste_code"],
		NamasteDisplay: row["namaste_display"],
		TargetCode:     row["icd_code"],
		TargetTitle:    row["icd_title"],
		Module:         defaultString(row["module"], ModuleMMS),
		Confidence:     parseConfidence(row["confidence"]),
	}
	if mr.NamasteDisplay == "" {
		return mr, &IngestionError{Source: "mapping", Line: line, Column: "namaste_display"}
	}
	return mr, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func defaultString(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
