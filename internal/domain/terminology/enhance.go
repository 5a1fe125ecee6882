package terminology

import (
	"math"
	"regexp"
	"sort"
)

// Confidence bounds after enhancement. Scores are never allowed to claim
// certainty (>0.95) or drop below the floor a curator would bother reviewing.
const (
	confidenceFloor   = 0.30
	confidenceCeiling = 0.95
)

// Target confidence bands. The distribution step rebalances toward
// 40% high / 35% moderate / 25% low so confidence stays useful as a filter.
const (
	highBandMin     = 0.8
	moderateBandMin = 0.6
)

// BoostRule is one confidence-enhancement rule. Exactly three variants
// exist; applyRule dispatches on the concrete type.
type BoostRule interface {
	isBoostRule()
}

// PatternBoost adds Amount when the mapping's combined display text matches
// Pattern.
type PatternBoost struct {
	Pattern *regexp.Regexp
	Amount  float64
}

// SystemBoost adds Amount when the source NAMASTE concept's traditional
// system matches Pattern.
type SystemBoost struct {
	Pattern *regexp.Regexp
	Amount  float64
}

// ModuleBoost adds the table entry keyed by the mapping's source module.
type ModuleBoost struct {
	Table map[string]float64
}

func (PatternBoost) isBoostRule() {}
func (SystemBoost) isBoostRule()  {}
func (ModuleBoost) isBoostRule()  {}

// DefaultBoostRules returns the fixed ordered rule list. All applicable
// boosts are summed, not just the first match.
func DefaultBoostRules() []BoostRule {
	return []BoostRule{
		// Exact disease-name matches.
		PatternBoost{
			Pattern: regexp.MustCompile(`(?i)\b(diabetes|madhumeha|prameha|hypertension|asthma|tuberculosis|arthritis|epilepsy|apasmara)\b`),
			Amount:  0.25,
		},
		// Common symptom words.
		PatternBoost{
			Pattern: regexp.MustCompile(`(?i)\b(fever|jwara|pain|shula|cough|kasa|headache|weakness|swelling|vomiting)\b`),
			Amount:  0.15,
		},
		// Well-documented conditions.
		PatternBoost{
			Pattern: regexp.MustCompile(`(?i)\b(jaundice|kamala|anemia|anaemia|pandu|ulcer|gastritis|migraine|eczema|psoriasis)\b`),
			Amount:  0.20,
		},
		SystemBoost{
			Pattern: regexp.MustCompile(`(?i)^(ayurveda|siddha|unani)$`),
			Amount:  0.10,
		},
		ModuleBoost{
			Table: map[string]float64{ModuleTM2: 0.15, ModuleMMS: 0.05},
		},
	}
}

// Enhancer corrects systematically low-variance or poorly distributed raw
// confidence scores. It is a heuristic normalization, not a statistically
// principled one; enhanced scores carry an EnhancementApplied flag.
type Enhancer struct {
	rules []BoostRule
}

// NewEnhancer creates an Enhancer with the default rule list.
func NewEnhancer() *Enhancer {
	return &Enhancer{rules: DefaultBoostRules()}
}

// Enhance applies the rule list to a single mapping and returns the enhanced
// confidence. Boosts are always computed from the raw layer product, never
// from the current overall value, so re-running the enhancer over its own
// output cannot compound them. concept may be nil when the NAMASTE store has
// no entry for the mapping's source code; system boosts then fall back to
// the mapping's own traditional system.
func (e *Enhancer) Enhance(m *ThreeLayerMapping, concept *NamasteConcept) float64 {
	text := m.NamasteDisplay + " " + m.ICDTitle
	system := m.TraditionalSystem
	if concept != nil {
		system = concept.System
	}

	confidence := m.baseConfidence()
	for _, rule := range e.rules {
		switch r := rule.(type) {
		case PatternBoost:
			if r.Pattern.MatchString(text) {
				confidence += r.Amount
			}
		case SystemBoost:
			if r.Pattern.MatchString(system) {
				confidence += r.Amount
			}
		case ModuleBoost:
			confidence += r.Table[m.Module]
		}
	}

	return round3(clamp(confidence, confidenceFloor, confidenceCeiling))
}

// EnhanceAll runs per-mapping enhancement over the dataset, then rebalances
// the overall distribution toward the 40/35/25 band targets. It mutates the
// mappings in place and must complete before the service accepts queries.
// The whole pass is idempotent: enhancement derives every value from the
// immutable layer confidences, and rebalancing walks the same deterministic
// order each time.
func (e *Enhancer) EnhanceAll(ds *Dataset) {
	mappings := ds.Mappings()
	for _, m := range mappings {
		concept, _ := ds.GetNamaste(m.NamasteCode)
		enhanced := e.Enhance(m, concept)
		m.EnhancementApplied = enhanced != m.baseConfidence()
		m.OverallConfidence = enhanced
	}
	rebalanceDistribution(mappings)
}

// rebalanceDistribution walks the mappings in confidence-descending order and
// force-assigns values into each band until the band's target count is met.
// Assignment is deterministic: evenly spaced values inside the band's range,
// in place of the source system's random draw, so repeated runs are
// reproducible. Mappings already inside the band they are walked into are
// left untouched, which makes the pass idempotent.
func rebalanceDistribution(mappings []*ThreeLayerMapping) {
	total := len(mappings)
	if total == 0 {
		return
	}

	highTarget := total * 40 / 100
	moderateTarget := total * 35 / 100
	lowTarget := total * 25 / 100

	ordered := make([]*ThreeLayerMapping, total)
	copy(ordered, mappings)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OverallConfidence > ordered[j].OverallConfidence
	})

	idx := 0
	assignBand := func(target int, lo, hi float64, member func(float64) bool) {
		for i := 0; i < target && idx < total; i, idx = i+1, idx+1 {
			m := ordered[idx]
			if member(m.OverallConfidence) {
				continue
			}
			// Evenly spaced strictly inside (lo, hi), descending with
			// position. Rounding stays inside the band because the first
			// value is at least one step below hi.
			step := (hi - lo) / float64(target+1)
			m.OverallConfidence = clamp(round3(hi-step*float64(i+1)), lo, hi)
			m.DistributionAdjusted = true
		}
	}

	assignBand(highTarget, highBandMin, confidenceCeiling,
		func(v float64) bool { return v >= highBandMin })
	assignBand(moderateTarget, moderateBandMin, highBandMin-0.001,
		func(v float64) bool { return v >= moderateBandMin && v < highBandMin })
	assignBand(lowTarget, confidenceFloor, moderateBandMin-0.001,
		func(v float64) bool { return v < moderateBandMin })
	// Mappings beyond the three targets (floor-division remainder) keep
	// their enhanced values.
}

// GetConfidenceStats summarizes the confidence distribution of mappings.
func GetConfidenceStats(mappings []*ThreeLayerMapping) ConfidenceStats {
	stats := ConfidenceStats{Total: len(mappings)}
	if stats.Total == 0 {
		return stats
	}

	var sum float64
	for _, m := range mappings {
		sum += m.OverallConfidence
		switch {
		case m.OverallConfidence >= highBandMin:
			stats.High++
		case m.OverallConfidence >= moderateBandMin:
			stats.Moderate++
		default:
			stats.Low++
		}
	}

	total := float64(stats.Total)
	stats.HighPercent = round1(float64(stats.High) / total * 100)
	stats.ModeratePercent = round1(float64(stats.Moderate) / total * 100)
	stats.LowPercent = round1(float64(stats.Low) / total * 100)
	stats.Mean = round3(sum / total)
	return stats
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
