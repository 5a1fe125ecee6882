package terminology

// FHIR resource generation is a pure projection over the loaded dataset; no
// confidence logic lives here. Resources are built once at initialization
// and cached by the service.

// BuildNamasteCodeSystem renders the NAMASTE store as a FHIR CodeSystem.
func BuildNamasteCodeSystem(ds *Dataset) map[string]interface{} {
	concepts := make([]map[string]interface{}, 0, len(ds.NamasteConcepts()))
	for _, c := range ds.NamasteConcepts() {
		concept := map[string]interface{}{
			"code":    c.Code,
			"display": c.Display,
			"property": []map[string]interface{}{
				{"code": "traditional-system", "valueString": c.System},
			},
		}
		if len(c.Synonyms) > 0 {
			designations := make([]map[string]interface{}, 0, len(c.Synonyms))
			for _, syn := range c.Synonyms {
				designations = append(designations, map[string]interface{}{
					"use":   map[string]interface{}{"code": "synonym"},
					"value": syn,
				})
			}
			concept["designation"] = designations
		}
		concepts = append(concepts, concept)
	}

	return map[string]interface{}{
		"resourceType": "CodeSystem",
		"id":           "namaste",
		"url":          SystemNamaste,
		"name":         "NAMASTE",
		"title":        "National AYUSH Morbidity and Standardized Terminologies Electronic",
		"status":       "active",
		"content":      "complete",
		"count":        len(concepts),
		"concept":      concepts,
	}
}

// BuildTM2CodeSystem renders the TM2 store as a FHIR CodeSystem, carrying
// the hierarchy as parent properties.
func BuildTM2CodeSystem(ds *Dataset) map[string]interface{} {
	concepts := make([]map[string]interface{}, 0, len(ds.TM2Concepts()))
	for _, c := range ds.TM2Concepts() {
		properties := []map[string]interface{}{
			{"code": "class-kind", "valueString": c.ClassKind},
			{"code": "traditional-system", "valueString": c.TraditionalSystem},
		}
		if c.Parent != "" {
			properties = append(properties, map[string]interface{}{
				"code": "parent", "valueCode": c.Parent,
			})
		}
		if c.PatternType != "" {
			properties = append(properties, map[string]interface{}{
				"code": "pattern-type", "valueString": c.PatternType,
			})
		}
		concepts = append(concepts, map[string]interface{}{
			"code":     c.TM2Code,
			"display":  c.TM2Title,
			"property": properties,
		})
	}

	return map[string]interface{}{
		"resourceType": "CodeSystem",
		"id":           "icd11-tm2",
		"url":          SystemTM2,
		"name":         "ICD11TM2",
		"title":        "ICD-11 Traditional Medicine Module 2",
		"status":       "active",
		"content":      "complete",
		"count":        len(concepts),
		"concept":      concepts,
	}
}

// BuildForwardConceptMaps groups mappings by owning AYUSH system and renders
// one NAMASTE->ICD11 ConceptMap per system.
func BuildForwardConceptMaps(ds *Dataset) map[string]map[string]interface{} {
	bySystem := make(map[string][]*ThreeLayerMapping)
	var systemOrder []string
	for _, m := range ds.Mappings() {
		if _, seen := bySystem[m.TraditionalSystem]; !seen {
			systemOrder = append(systemOrder, m.TraditionalSystem)
		}
		bySystem[m.TraditionalSystem] = append(bySystem[m.TraditionalSystem], m)
	}

	maps := make(map[string]map[string]interface{}, len(systemOrder))
	for _, system := range systemOrder {
		elements := make([]map[string]interface{}, 0, len(bySystem[system]))
		for _, m := range bySystem[system] {
			elements = append(elements, map[string]interface{}{
				"code":    m.NamasteCode,
				"display": m.NamasteDisplay,
				"target": []map[string]interface{}{
					{
						"code":        m.ICDCode,
						"display":     m.ICDTitle,
						"equivalence": EquivalenceFromConfidence(m.OverallConfidence),
						"comment":     "via " + m.TM2Code,
					},
				},
			})
		}
		maps[system] = map[string]interface{}{
			"resourceType": "ConceptMap",
			"id":           "namaste-icd11-" + system,
			"status":       "active",
			"sourceUri":    SystemNamaste,
			"targetUri":    SystemICD11,
			"group": []map[string]interface{}{
				{
					"source":  SystemNamaste,
					"target":  SystemICD11,
					"element": elements,
				},
			},
		}
	}
	return maps
}

// BuildReverseConceptMap groups mappings by target ICD code and renders a
// single ICD11->NAMASTE ConceptMap. Equivalence derivation is identical to
// the forward direction.
func BuildReverseConceptMap(ds *Dataset) map[string]interface{} {
	byICD := make(map[string][]*ThreeLayerMapping)
	var icdOrder []string
	for _, m := range ds.Mappings() {
		if _, seen := byICD[m.ICDCode]; !seen {
			icdOrder = append(icdOrder, m.ICDCode)
		}
		byICD[m.ICDCode] = append(byICD[m.ICDCode], m)
	}

	elements := make([]map[string]interface{}, 0, len(icdOrder))
	for _, icdCode := range icdOrder {
		group := byICD[icdCode]
		targets := make([]map[string]interface{}, 0, len(group))
		for _, m := range group {
			targets = append(targets, map[string]interface{}{
				"code":        m.NamasteCode,
				"display":     m.NamasteDisplay,
				"equivalence": EquivalenceFromConfidence(m.OverallConfidence),
			})
		}
		elements = append(elements, map[string]interface{}{
			"code":    icdCode,
			"display": group[0].ICDTitle,
			"target":  targets,
		})
	}

	return map[string]interface{}{
		"resourceType": "ConceptMap",
		"id":           "icd11-namaste",
		"status":       "active",
		"sourceUri":    SystemICD11,
		"targetUri":    SystemNamaste,
		"group": []map[string]interface{}{
			{
				"source":  SystemICD11,
				"target":  SystemNamaste,
				"element": elements,
			},
		},
	}
}
