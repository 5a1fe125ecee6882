package terminology

import (
	"math"
	"regexp"
	"testing"

	"github.com/rs/zerolog"
)

func closeTo(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}

func TestBridgeTM2CodeDeterministic(t *testing.T) {
	a := BridgeTM2Code("Madhumeha (Ayurveda)")
	b := BridgeTM2Code("Madhumeha (Ayurveda)")
	if a != b {
		t.Errorf("same display must yield same bridge code: %s vs %s", a, b)
	}
	if c := BridgeTM2Code("madhumeha (ayurveda)"); c != a {
		t.Errorf("bridge code must be case-insensitive: %s vs %s", c, a)
	}

	format := regexp.MustCompile(`^TM2-\d{3}$`)
	for _, display := range []string{"Madhumeha", "Jwara", "Sandhivata", ""} {
		if code := BridgeTM2Code(display); !format.MatchString(code) {
			t.Errorf("bridge code %q for %q does not match TM2-NNN", code, display)
		}
	}
}

func TestBuildThreeLayerFromTM2Row(t *testing.T) {
	rows := []MappingRow{{
		NamasteCode:    "NAM001",
		NamasteDisplay: "Jwara (Ayurveda)",
		TargetCode:     "TM2-100",
		TargetTitle:    "Fever pattern disorder",
		Confidence:     0.7,
		Module:         ModuleTM2,
	}}
	mappings := BuildThreeLayer(rows, zerolog.Nop())
	if len(mappings) != 1 {
		t.Fatalf("expected 1 mapping, got %d", len(mappings))
	}
	m := mappings[0]

	if m.TM2Code != "TM2-100" || m.TM2Confidence != 0.7 {
		t.Errorf("TM2 layer must carry the source row: %+v", m)
	}
	if m.ICDCode != "MG50" {
		t.Errorf("fever title must bridge to MG50, got %s", m.ICDCode)
	}
	if !closeTo(m.ICDConfidence, 0.5) {
		t.Errorf("icd confidence must be source-0.2, got %v", m.ICDConfidence)
	}
	if m.OverallConfidence != 0.35 {
		t.Errorf("overall must be tm2*icd rounded to 2dp, got %v", m.OverallConfidence)
	}
	if m.TraditionalSystem != TradAyurveda {
		t.Errorf("display tag must classify as Ayurveda, got %s", m.TraditionalSystem)
	}
}

func TestBuildThreeLayerFromTM2RowFloorsICDConfidence(t *testing.T) {
	rows := []MappingRow{{
		NamasteCode:    "NAM002",
		NamasteDisplay: "Obscure pattern",
		TargetCode:     "TM2-200",
		TargetTitle:    "Obscure pattern",
		Confidence:     0.4,
		Module:         ModuleTM2,
	}}
	m := BuildThreeLayer(rows, zerolog.Nop())[0]
	if m.ICDConfidence != 0.3 {
		t.Errorf("icd confidence floor is 0.3, got %v", m.ICDConfidence)
	}
	if m.ICDCode != placeholderICDDefault {
		t.Errorf("unmatched title must fall back to %s, got %s", placeholderICDDefault, m.ICDCode)
	}
}

func TestBuildThreeLayerFromICDRow(t *testing.T) {
	rows := []MappingRow{{
		NamasteCode:    "NAM003",
		NamasteDisplay: "Madhumeha (Ayurveda)",
		TargetCode:     "5A11",
		TargetTitle:    "Type 2 diabetes mellitus",
		Confidence:     0.85,
		Module:         ModuleMMS,
	}}
	m := BuildThreeLayer(rows, zerolog.Nop())[0]

	if m.ICDCode != "5A11" || m.ICDConfidence != 0.85 {
		t.Errorf("ICD layer must carry the source row: %+v", m)
	}
	if m.TM2Code != BridgeTM2Code("Madhumeha (Ayurveda)") {
		t.Errorf("bridged TM2 code must be derived from the display, got %s", m.TM2Code)
	}
	if m.TM2Confidence != 0.9 {
		t.Errorf("tm2 confidence must cap at 0.9, got %v", m.TM2Confidence)
	}
	if m.OverallConfidence != 0.77 {
		t.Errorf("overall must be round2(0.9*0.85), got %v", m.OverallConfidence)
	}
}

func TestBuildThreeLayerTM2PrefixDetection(t *testing.T) {
	// Module column absent defaults to MMS, but a TM2- target code still
	// routes through the TM2 bridge.
	rows := []MappingRow{{
		NamasteCode:    "NAM004",
		NamasteDisplay: "Sandhivata",
		TargetCode:     "TM2-300",
		TargetTitle:    "Joint pattern with arthritis",
		Confidence:     0.6,
		Module:         ModuleMMS,
	}}
	m := BuildThreeLayer(rows, zerolog.Nop())[0]
	if m.Module != ModuleTM2 {
		t.Errorf("TM2- prefixed targets must be treated as TM2 rows, got module %s", m.Module)
	}
	if m.ICDCode != "FA20" {
		t.Errorf("arthritis keyword must bridge to FA20, got %s", m.ICDCode)
	}
}

func TestBuildThreeLayerDropsIncompleteRows(t *testing.T) {
	rows := []MappingRow{
		{NamasteCode: "", NamasteDisplay: "x", TargetCode: "5A11", Confidence: 0.5},
		{NamasteCode: "NAM005", NamasteDisplay: "y", TargetCode: "", Confidence: 0.5},
	}
	if got := BuildThreeLayer(rows, zerolog.Nop()); len(got) != 0 {
		t.Errorf("rows without both codes must be dropped, got %d mappings", len(got))
	}
}

func TestPlaceholderICDKeywords(t *testing.T) {
	cases := []struct {
		title string
		code  string
	}{
		{"Prameha with sweet urine", "5A11"},
		{"Diabetes pattern", "5A11"},
		{"Jwara acute", "MG50"},
		{"Chronic cough (Peenisam)", "MD10"},
		{"Sandhivata of the knee", "FA20"},
		{"Completely novel disorder", placeholderICDDefault},
	}
	for _, tc := range cases {
		if code, _ := placeholderICDFor(tc.title); code != tc.code {
			t.Errorf("placeholderICDFor(%q) = %s, want %s", tc.title, code, tc.code)
		}
	}
}

func TestClassifyTraditionalSystem(t *testing.T) {
	cases := map[string]string{
		"Madhumeha (Ayurveda)":   TradAyurveda,
		"Peenisam (Siddha)":      TradSiddha,
		"Ziabetus (Unani)":       TradUnani,
		"Remedy X (Homeopathy)":  TradHomeopathy,
		"Unannotated condition":  TradMixed,
	}
	for display, want := range cases {
		if got := classifyTraditionalSystem(display); got != want {
			t.Errorf("classifyTraditionalSystem(%q) = %s, want %s", display, got, want)
		}
	}
}
