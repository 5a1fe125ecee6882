package terminology

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ayushbridge/emr/internal/platform/who"
)

func newReadyService(t *testing.T) *Service {
	t.Helper()
	svc := NewService(zerolog.Nop())
	svc.Initialize(namasteFixture(), tm2Fixture(), mappingFixture())
	return svc
}

func TestQueriesBeforeInitialize(t *testing.T) {
	svc := NewService(zerolog.Nop())

	var notReady *NotReadyError
	if _, err := svc.Search("diabetes", SearchFilters{}, 10); !errors.As(err, &notReady) {
		t.Errorf("Search before init: expected NotReadyError, got %v", err)
	}
	if _, err := svc.Lookup("NAM001"); !errors.As(err, &notReady) {
		t.Errorf("Lookup before init: expected NotReadyError, got %v", err)
	}
	if _, err := svc.Translate("NAM001"); !errors.As(err, &notReady) {
		t.Errorf("Translate before init: expected NotReadyError, got %v", err)
	}
	if _, err := svc.ValidateCode("NAM001"); !errors.As(err, &notReady) {
		t.Errorf("ValidateCode before init: expected NotReadyError, got %v", err)
	}
	if _, err := svc.CodeSystem("namaste"); !errors.As(err, &notReady) {
		t.Errorf("CodeSystem before init: expected NotReadyError, got %v", err)
	}
}

func TestSearchMatchesCodeDisplayAndSynonym(t *testing.T) {
	svc := newReadyService(t)

	cases := []struct {
		query     string
		wantCode  string
		matchedOn string
	}{
		{"NAM001", "NAM001", "code"},
		{"Madhumeha (Ayurveda)", "NAM001", "display"},
		{"diabetes", "NAM001", "synonym"},
		{"prameha", "NAM001", "synonym"},
	}
	for _, tc := range cases {
		results, err := svc.Search(tc.query, SearchFilters{}, 10)
		if err != nil {
			t.Fatalf("Search(%q): %v", tc.query, err)
		}
		found := false
		for _, r := range results {
			if r.Code == tc.wantCode {
				found = true
				if r.MatchedOn != tc.matchedOn {
					t.Errorf("Search(%q) matched on %q, want %q", tc.query, r.MatchedOn, tc.matchedOn)
				}
			}
		}
		if !found {
			t.Errorf("Search(%q) did not return %s", tc.query, tc.wantCode)
		}
	}
}

func TestSearchRanksExactBeforeSubstring(t *testing.T) {
	svc := newReadyService(t)

	results, err := svc.Search("Jwara (Ayurveda)", SearchFilters{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 || results[0].Code != "NAM002" {
		t.Errorf("exact display match must rank first: %+v", results)
	}
}

func TestSearchFilters(t *testing.T) {
	svc := newReadyService(t)

	results, err := svc.Search("pattern", SearchFilters{TraditionalSystem: TradSiddha}, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.SystemURI == SystemTM2 {
			t.Errorf("siddha filter must exclude ayurveda TM2 hits: %+v", r)
		}
	}

	results, err = svc.Search("NAM", SearchFilters{System: TradSiddha}, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.Code != "NAM003" {
			t.Errorf("system filter must keep only siddha concepts: %+v", r)
		}
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	svc := newReadyService(t)
	results, err := svc.Search("   ", SearchFilters{}, 10)
	if err != nil || results != nil {
		t.Errorf("blank query must return empty without error, got %v %v", results, err)
	}
}

func TestLookup(t *testing.T) {
	svc := newReadyService(t)

	detail, err := svc.Lookup("NAM001")
	if err != nil {
		t.Fatal(err)
	}
	if detail.SystemURI != SystemNamaste || detail.Display != "Madhumeha (Ayurveda)" {
		t.Errorf("unexpected detail: %+v", detail)
	}

	detail, err = svc.Lookup("TM2-100")
	if err != nil {
		t.Fatal(err)
	}
	if detail.SystemURI != SystemTM2 {
		t.Errorf("TM2 lookup must report the TM2 system URI: %+v", detail)
	}

	var notFound *NotFoundError
	if _, err := svc.Lookup("UNKNOWN_CODE"); !errors.As(err, &notFound) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestValidateCode(t *testing.T) {
	svc := newReadyService(t)

	for code, want := range map[string]bool{
		"NAM001":       true,
		"TM2-101":      true,
		"UNKNOWN_CODE": false,
	} {
		valid, err := svc.ValidateCode(code)
		if err != nil {
			t.Fatalf("ValidateCode(%q): %v", code, err)
		}
		if valid != want {
			t.Errorf("ValidateCode(%q) = %v, want %v", code, valid, want)
		}
	}
}

func TestTranslate(t *testing.T) {
	svc := newReadyService(t)

	result, err := svc.Translate("NAM001")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Matched {
		t.Fatal("NAM001 must translate")
	}
	if result.TargetCode != "5A11" {
		t.Errorf("target = %s, want 5A11", result.TargetCode)
	}
	if result.TM2Code == "" {
		t.Error("translation must surface the TM2 bridge layer")
	}
	if result.Confidence < confidenceFloor || result.Confidence > confidenceCeiling {
		t.Errorf("confidence %v outside enhancement bounds", result.Confidence)
	}
	if result.Equivalence != EquivalenceFromConfidence(result.Confidence) {
		t.Errorf("equivalence %s inconsistent with confidence %v", result.Equivalence, result.Confidence)
	}
	// Well-documented diabetes mapping lands in the high band after
	// enhancement, so the annotation is equivalent.
	if result.Equivalence != EquivalenceEquivalent {
		t.Errorf("equivalence = %s, want %s", result.Equivalence, EquivalenceEquivalent)
	}
}

func TestTranslateUnknownCodeIsUnmatchedNotError(t *testing.T) {
	svc := newReadyService(t)
	result, err := svc.Translate("UNKNOWN_CODE")
	if err != nil {
		t.Fatalf("unknown code must not error: %v", err)
	}
	if result.Matched {
		t.Error("unknown code must yield Matched=false")
	}
	if result.SourceCode != "UNKNOWN_CODE" {
		t.Errorf("source code must echo the input, got %s", result.SourceCode)
	}
}

func TestTranslatePicksHighestConfidenceMapping(t *testing.T) {
	svc := NewService(zerolog.Nop())
	mappings := append(mappingFixture(),
		Row{"namaste_code": "NAM001", "namaste_display": "Madhumeha (Ayurveda)",
			"icd_code": "5A10", "icd_title": "Type 1 diabetes mellitus",
			"confidence": "0.2", "module": ModuleMMS})
	svc.Initialize(namasteFixture(), tm2Fixture(), mappings)

	result, err := svc.Translate("NAM001")
	if err != nil {
		t.Fatal(err)
	}
	best := 0.0
	for _, m := range svc.ds.GetMappingsFor("NAM001") {
		if m.OverallConfidence > best {
			best = m.OverallConfidence
		}
	}
	if result.Confidence != best {
		t.Errorf("translate must pick the highest-confidence mapping: got %v, best %v",
			result.Confidence, best)
	}
}

func TestEquivalenceFromConfidence(t *testing.T) {
	cases := map[float64]string{
		0.95: EquivalenceEquivalent,
		0.80: EquivalenceEquivalent,
		0.75: EquivalenceWider,
		0.60: EquivalenceWider,
		0.45: EquivalenceNarrower,
		0.10: EquivalenceUnmatched,
	}
	for confidence, want := range cases {
		if got := EquivalenceFromConfidence(confidence); got != want {
			t.Errorf("EquivalenceFromConfidence(%v) = %s, want %s", confidence, got, want)
		}
	}
}

func TestBulkValidate(t *testing.T) {
	svc := newReadyService(t)

	report, err := svc.BulkValidate([]string{"NAM001", "UNKNOWN_CODE", "TM2-100"})
	if err != nil {
		t.Fatal(err)
	}
	if report.Valid != 2 || report.Invalid != 1 {
		t.Errorf("bulk report = %d valid / %d invalid, want 2/1", report.Valid, report.Invalid)
	}
	if len(report.Results) != 3 {
		t.Errorf("expected 3 per-code results, got %d", len(report.Results))
	}
}

func TestCodeSystemAndConceptMaps(t *testing.T) {
	svc := newReadyService(t)

	cs, err := svc.CodeSystem("namaste")
	if err != nil {
		t.Fatal(err)
	}
	if cs["resourceType"] != "CodeSystem" {
		t.Errorf("unexpected resourceType: %v", cs["resourceType"])
	}

	var notFound *NotFoundError
	if _, err := svc.CodeSystem("bogus"); !errors.As(err, &notFound) {
		t.Errorf("expected NotFoundError for unknown CodeSystem id, got %v", err)
	}

	fm, err := svc.ForwardConceptMap(TradAyurveda)
	if err != nil {
		t.Fatal(err)
	}
	if fm["resourceType"] != "ConceptMap" {
		t.Errorf("unexpected resourceType: %v", fm["resourceType"])
	}

	rm, err := svc.ReverseConceptMap()
	if err != nil {
		t.Fatal(err)
	}
	if rm["resourceType"] != "ConceptMap" {
		t.Errorf("unexpected resourceType: %v", rm["resourceType"])
	}

	all, err := svc.ForwardConceptMaps()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) == 0 {
		t.Fatal("forward map listing is empty")
	}
	cm, ok := all[TradAyurveda]
	if !ok {
		t.Fatalf("forward map listing missing %s", TradAyurveda)
	}
	if cm["resourceType"] != "ConceptMap" {
		t.Errorf("unexpected resourceType: %v", cm["resourceType"])
	}
}

type stubVerifier struct {
	got who.Verification
}

func (s stubVerifier) VerifyCode(_ context.Context, code, title string) who.Verification {
	return s.got
}

func TestVerifyTranslation(t *testing.T) {
	svc := newReadyService(t)

	// No verifier configured: translation still succeeds, unvalidated.
	result, v, err := svc.VerifyTranslation(context.Background(), "NAM001")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Matched || v.Status != "unvalidated" {
		t.Errorf("expected matched unvalidated result, got %+v %+v", result, v)
	}

	svc.SetVerifier(stubVerifier{got: who.Verification{Code: "5A11", Status: "validated"}})
	_, v, err = svc.VerifyTranslation(context.Background(), "NAM001")
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != "validated" {
		t.Errorf("verifier result must pass through, got %+v", v)
	}
}

func TestStats(t *testing.T) {
	svc := newReadyService(t)

	stats, err := svc.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats["namaste_concepts"] != 3 || stats["tm2_concepts"] != 2 || stats["mappings"] != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
