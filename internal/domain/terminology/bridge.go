package terminology

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/rs/zerolog"
)

// placeholderICD maps display-text keywords to stand-in ICD-11 codes for
// rows that only supply a NAMASTE->TM2 mapping. This reproduces the fixed
// source table; it is a stand-in, not a coverage-complete lookup.
var placeholderICD = []struct {
	keywords []string
	code     string
	title    string
}{
	{[]string{"diabetes", "prameha", "madhumeha"}, "5A11", "Type 2 diabetes mellitus"},
	{[]string{"fever", "jwara"}, "MG50", "Fever of other or unknown origin"},
	{[]string{"arthritis", "sandhivata"}, "FA20", "Osteoarthritis of knee"},
	{[]string{"cough", "peenisam"}, "MD10", "Cough"},
}

const (
	placeholderICDDefault      = "MG50.Z"
	placeholderICDDefaultTitle = "General symptoms, signs or clinical findings, unspecified"
)

// BuildThreeLayer guarantees every raw mapping row yields a full
// NAMASTE -> TM2 -> ICD-11 chain, synthesizing whichever layer the source
// did not supply. Rows missing both a NAMASTE code and a target code are
// dropped with a warning.
func BuildThreeLayer(rows []MappingRow, logger zerolog.Logger) []*ThreeLayerMapping {
	mappings := make([]*ThreeLayerMapping, 0, len(rows))
	for _, row := range rows {
		if row.NamasteCode == "" || row.TargetCode == "" {
			logger.Warn().
				Str("namaste_code", row.NamasteCode).
				Str("target_code", row.TargetCode).
				Msg("dropping mapping row without both source and target codes")
			continue
		}

		var m *ThreeLayerMapping
		if isTM2Row(row) {
			m = bridgeFromTM2(row)
		} else {
			m = bridgeFromICD(row)
		}
		m.OverallConfidence = round2(m.TM2Confidence * m.ICDConfidence)
		m.TraditionalSystem = classifyTraditionalSystem(row.NamasteDisplay)
		mappings = append(mappings, m)
	}
	return mappings
}

// isTM2Row detects rows whose target is the TM2 layer rather than ICD-11 MMS.
func isTM2Row(row MappingRow) bool {
	return row.Module == ModuleTM2 || strings.HasPrefix(row.TargetCode, "TM2-")
}

// bridgeFromTM2 handles rows that supply NAMASTE->TM2: the ICD-11 layer is
// synthesized from the placeholder keyword table.
func bridgeFromTM2(row MappingRow) *ThreeLayerMapping {
	icdCode, icdTitle := placeholderICDFor(row.TargetTitle)
	return &ThreeLayerMapping{
		NamasteCode:    row.NamasteCode,
		NamasteDisplay: row.NamasteDisplay,
		TM2Code:        row.TargetCode,
		TM2Title:       row.TargetTitle,
		TM2Confidence:  row.Confidence,
		ICDCode:        icdCode,
		ICDTitle:       icdTitle,
		ICDConfidence:  maxFloat(0.3, row.Confidence-0.2),
		Module:         ModuleTM2,
	}
}

// bridgeFromICD handles rows that supply NAMASTE->ICD11 directly: an
// intermediate TM2 code is synthesized deterministically from the NAMASTE
// display string so identical displays always produce the same bridge code.
func bridgeFromICD(row MappingRow) *ThreeLayerMapping {
	return &ThreeLayerMapping{
		NamasteCode:    row.NamasteCode,
		NamasteDisplay: row.NamasteDisplay,
		TM2Code:        BridgeTM2Code(row.NamasteDisplay),
		TM2Title:       row.NamasteDisplay + " (traditional medicine pattern)",
		TM2Confidence:  minFloat(0.9, row.Confidence+0.1),
		ICDCode:        row.TargetCode,
		ICDTitle:       row.TargetTitle,
		ICDConfidence:  row.Confidence,
		Module:         ModuleMMS,
	}
}

// BridgeTM2Code derives a synthetic TM2 bridge code from a display string.
// FNV-1a over the lower-cased text, reduced to three digits. FNV is used
// instead of a language string hash so regenerated codes are stable across
// implementations.
func BridgeTM2Code(display string) string {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(display)))
	return fmt.Sprintf("TM2-%03d", h.Sum32()%1000)
}

// placeholderICDFor scans lower-cased title text against the keyword table.
func placeholderICDFor(title string) (string, string) {
	lower := strings.ToLower(title)
	for _, entry := range placeholderICD {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.code, entry.title
			}
		}
	}
	return placeholderICDDefault, placeholderICDDefaultTitle
}

// classifyTraditionalSystem derives the AYUSH system from display text.
// Explicit "(Ayurveda)"-style tags take precedence; otherwise Mixed.
func classifyTraditionalSystem(display string) string {
	lower := strings.ToLower(display)
	switch {
	case strings.Contains(lower, "(ayurveda)"):
		return TradAyurveda
	case strings.Contains(lower, "(siddha)"):
		return TradSiddha
	case strings.Contains(lower, "(unani)"):
		return TradUnani
	case strings.Contains(lower, "(homeopathy)"):
		return TradHomeopathy
	default:
		return TradMixed
	}
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
