package terminology

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/ayushbridge/emr/internal/platform/who"
)

// ICDVerifier is the optional WHO enrichment hook. Verification failures
// must degrade, never block or fail a translate/validate call.
type ICDVerifier interface {
	VerifyCode(ctx context.Context, code, title string) who.Verification
}

// Service is the terminology query engine. The dataset and the cached FHIR
// resources are built once by Initialize and are immutable afterwards, so
// all query methods are safe for concurrent use without locking.
type Service struct {
	logger   zerolog.Logger
	enhancer *Enhancer
	verifier ICDVerifier

	ds     *Dataset
	report *IngestReport

	codeSystems map[string]map[string]interface{} // by CodeSystem id
	forwardMaps map[string]map[string]interface{} // by AYUSH system
	reverseMap  map[string]interface{}

	ready atomic.Bool
}

// NewService creates an uninitialized terminology service. Queries return
// ErrNotReady until Initialize completes.
func NewService(logger zerolog.Logger) *Service {
	return &Service{
		logger:   logger,
		enhancer: NewEnhancer(),
	}
}

// SetVerifier attaches the optional WHO ICD-11 verifier.
func (s *Service) SetVerifier(v ICDVerifier) { s.verifier = v }

// NotReadyError is returned while initialization has not finished.
type NotReadyError struct{}

func (*NotReadyError) Error() string { return "terminology service not yet initialized" }

// Ready reports whether initialization has completed.
func (s *Service) Ready() bool { return s.ready.Load() }

// Initialize loads the three source tables, runs the confidence enhancement
// pass to completion, bridges every mapping to three layers and caches the
// FHIR resources. It is synchronous-to-completion: the service answers
// queries only after it returns.
func (s *Service) Initialize(namasteRows, tm2Rows, mappingRows []Row) *IngestReport {
	ds, report := Load(namasteRows, tm2Rows, mappingRows, s.logger)
	s.enhancer.EnhanceAll(ds)

	s.ds = ds
	s.report = report
	s.codeSystems = map[string]map[string]interface{}{
		"namaste": BuildNamasteCodeSystem(ds),
		"tm2":     BuildTM2CodeSystem(ds),
	}
	s.forwardMaps = BuildForwardConceptMaps(ds)
	s.reverseMap = BuildReverseConceptMap(ds)

	s.ready.Store(true)
	s.logger.Info().
		Int("namaste", report.NamasteLoaded).
		Int("tm2", report.TM2Loaded).
		Int("mappings", report.MappingsLoaded).
		Int("skipped", report.RowsSkipped).
		Msg("terminology dataset initialized")
	return report
}

// searchHit pairs a result with its ranking tier for sorting.
type searchHit struct {
	result SearchResult
	tier   int // 0 exact, 1 prefix, 2 substring
}

// Search performs a case-insensitive match over display names, codes and
// synonyms of both the NAMASTE and TM2 stores. Exact and prefix matches sort
// before substring matches, then alphabetical by display.
func (s *Service) Search(term string, filters SearchFilters, limit int) ([]SearchResult, error) {
	if !s.Ready() {
		return nil, &NotReadyError{}
	}
	if limit <= 0 {
		limit = 20
	}
	q := strings.ToLower(strings.TrimSpace(term))
	if q == "" {
		return nil, nil
	}

	var hits []searchHit
	for _, c := range s.ds.NamasteConcepts() {
		if filters.System != "" && !strings.EqualFold(filters.System, c.System) {
			continue
		}
		if tier, matched, ok := matchConcept(q, c.Code, c.Display, c.Synonyms); ok {
			hits = append(hits, searchHit{
				result: SearchResult{Code: c.Code, Display: c.Display, SystemURI: SystemNamaste, MatchedOn: matched},
				tier:   tier,
			})
		}
	}
	for _, c := range s.ds.TM2Concepts() {
		if filters.TraditionalSystem != "" && !strings.EqualFold(filters.TraditionalSystem, c.TraditionalSystem) {
			continue
		}
		if filters.TherapeuticArea != "" && !strings.EqualFold(filters.TherapeuticArea, c.TherapeuticArea) {
			continue
		}
		if filters.PatternType != "" && !strings.EqualFold(filters.PatternType, c.PatternType) {
			continue
		}
		searchable := append(append([]string{}, c.Synonyms...), c.Keywords...)
		if tier, matched, ok := matchConcept(q, c.TM2Code, c.TM2Title, searchable); ok {
			hits = append(hits, searchHit{
				result: SearchResult{Code: c.TM2Code, Display: c.TM2Title, SystemURI: SystemTM2, MatchedOn: matched},
				tier:   tier,
			})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].tier != hits[j].tier {
			return hits[i].tier < hits[j].tier
		}
		return hits[i].result.Display < hits[j].result.Display
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	results := make([]SearchResult, len(hits))
	for i, h := range hits {
		results[i] = h.result
	}
	return results, nil
}

// matchConcept ranks a query against a concept's code, display and synonym
// list. Returns the ranking tier and which field matched.
func matchConcept(q, code, display string, synonyms []string) (int, string, bool) {
	lcCode := strings.ToLower(code)
	lcDisplay := strings.ToLower(display)

	switch {
	case lcDisplay == q || lcCode == q:
		return 0, matchedField(lcCode == q), true
	case strings.HasPrefix(lcDisplay, q) || strings.HasPrefix(lcCode, q):
		return 1, matchedField(strings.HasPrefix(lcCode, q)), true
	case strings.Contains(lcDisplay, q) || strings.Contains(lcCode, q):
		return 2, matchedField(strings.Contains(lcCode, q)), true
	}

	for _, syn := range synonyms {
		lcSyn := strings.ToLower(syn)
		switch {
		case lcSyn == q:
			return 0, "synonym", true
		case strings.HasPrefix(lcSyn, q):
			return 1, "synonym", true
		case strings.Contains(lcSyn, q):
			return 2, "synonym", true
		}
	}
	return 0, "", false
}

func matchedField(isCode bool) string {
	if isCode {
		return "code"
	}
	return "display"
}

// Lookup returns concept detail for a code from either store. Fails with
// NotFoundError when the code is absent from both.
func (s *Service) Lookup(code string) (*ConceptDetail, error) {
	if !s.Ready() {
		return nil, &NotReadyError{}
	}
	if c, ok := s.ds.GetNamaste(code); ok {
		return &ConceptDetail{
			Code:      c.Code,
			Display:   c.Display,
			SystemURI: SystemNamaste,
			Synonyms:  c.Synonyms,
		}, nil
	}
	if c, ok := s.ds.GetTM2(code); ok {
		return &ConceptDetail{
			Code:       c.TM2Code,
			Display:    c.TM2Title,
			SystemURI:  SystemTM2,
			Definition: c.TherapeuticArea,
			Synonyms:   c.Synonyms,
		}, nil
	}
	return nil, &NotFoundError{Code: code}
}

// ValidateCode reports whether a code exists in the NAMASTE or TM2 store.
// It never returns an error for unknown codes.
func (s *Service) ValidateCode(code string) (bool, error) {
	if !s.Ready() {
		return false, &NotReadyError{}
	}
	if _, ok := s.ds.GetNamaste(code); ok {
		return true, nil
	}
	_, ok := s.ds.GetTM2(code)
	return ok, nil
}

// Translate resolves a NAMASTE code through its three-layer mapping to the
// ICD-11 target. An absent mapping yields Matched=false, not an error. When
// a code has several mappings the highest-confidence one wins.
func (s *Service) Translate(code string) (*TranslateResult, error) {
	if !s.Ready() {
		return nil, &NotReadyError{}
	}
	mappings := s.ds.GetMappingsFor(code)
	if len(mappings) == 0 {
		return &TranslateResult{Matched: false, SourceCode: code}, nil
	}

	best := mappings[0]
	for _, m := range mappings[1:] {
		if m.OverallConfidence > best.OverallConfidence {
			best = m
		}
	}

	return &TranslateResult{
		Matched:     true,
		SourceCode:  code,
		TM2Code:     best.TM2Code,
		TM2Title:    best.TM2Title,
		TargetCode:  best.ICDCode,
		TargetTitle: best.ICDTitle,
		Confidence:  best.OverallConfidence,
		Equivalence: EquivalenceFromConfidence(best.OverallConfidence),
	}, nil
}

// VerifyTranslation runs Translate and then, when a WHO verifier is
// configured, checks the target code against the WHO API. WHO failures
// degrade to status "unvalidated".
func (s *Service) VerifyTranslation(ctx context.Context, code string) (*TranslateResult, who.Verification, error) {
	result, err := s.Translate(code)
	if err != nil || !result.Matched {
		return result, who.Verification{Status: "unvalidated"}, err
	}
	if s.verifier == nil {
		return result, who.Verification{Code: result.TargetCode, Status: "unvalidated"}, nil
	}
	return result, s.verifier.VerifyCode(ctx, result.TargetCode, result.TargetTitle), nil
}

// BulkValidate validates each code and aggregates valid/invalid counts.
func (s *Service) BulkValidate(codes []string) (*BulkValidationReport, error) {
	if !s.Ready() {
		return nil, &NotReadyError{}
	}
	report := &BulkValidationReport{Results: make([]CodeValidity, 0, len(codes))}
	for _, code := range codes {
		valid, _ := s.ValidateCode(code)
		report.Results = append(report.Results, CodeValidity{Code: code, Valid: valid})
		if valid {
			report.Valid++
		} else {
			report.Invalid++
		}
	}
	return report, nil
}

// CodeSystem returns a cached FHIR CodeSystem resource ("namaste" or "tm2").
func (s *Service) CodeSystem(id string) (map[string]interface{}, error) {
	if !s.Ready() {
		return nil, &NotReadyError{}
	}
	cs, ok := s.codeSystems[id]
	if !ok {
		return nil, &NotFoundError{Code: id}
	}
	return cs, nil
}

// ForwardConceptMap returns the cached NAMASTE->ICD11 ConceptMap for one
// AYUSH system (Ayurveda, Siddha, Unani, Homeopathy or Mixed).
func (s *Service) ForwardConceptMap(system string) (map[string]interface{}, error) {
	if !s.Ready() {
		return nil, &NotReadyError{}
	}
	cm, ok := s.forwardMaps[system]
	if !ok {
		return nil, &NotFoundError{Code: system}
	}
	return cm, nil
}

// ForwardConceptMaps returns all cached forward maps keyed by AYUSH system.
func (s *Service) ForwardConceptMaps() (map[string]map[string]interface{}, error) {
	if !s.Ready() {
		return nil, &NotReadyError{}
	}
	return s.forwardMaps, nil
}

// ReverseConceptMap returns the cached ICD11->NAMASTE ConceptMap.
func (s *Service) ReverseConceptMap() (map[string]interface{}, error) {
	if !s.Ready() {
		return nil, &NotReadyError{}
	}
	return s.reverseMap, nil
}

// Stats aggregates dataset counts and the confidence distribution on demand.
func (s *Service) Stats() (map[string]interface{}, error) {
	if !s.Ready() {
		return nil, &NotReadyError{}
	}
	confidence := GetConfidenceStats(s.ds.Mappings())
	return map[string]interface{}{
		"namaste_concepts": len(s.ds.NamasteConcepts()),
		"tm2_concepts":     len(s.ds.TM2Concepts()),
		"mappings":         len(s.ds.Mappings()),
		"rows_skipped":     s.report.RowsSkipped,
		"confidence":       confidence,
	}, nil
}
