package terminology

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ayushbridge/emr/internal/platform/auth"
	"github.com/ayushbridge/emr/internal/platform/fhir"
)

// Handler provides REST and FHIR endpoints for the terminology service.
type Handler struct {
	svc *Service
}

// NewHandler creates a new terminology handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers terminology routes on the API and FHIR groups.
func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	termGroup := api.Group("/terminology", auth.RequireRole(auth.RoleDoctor, auth.RoleCurator))
	termGroup.GET("/search", h.Search)
	termGroup.GET("/lookup/:code", h.Lookup)
	termGroup.GET("/translate/:code", h.Translate)
	termGroup.GET("/translate/:code/verify", h.VerifyTranslation)
	termGroup.POST("/validate", h.BulkValidate)
	termGroup.GET("/stats", h.Stats)

	fhirTerm := fhirGroup.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleCurator))
	fhirTerm.GET("/CodeSystem/:id", h.GetCodeSystem)
	fhirTerm.POST("/CodeSystem/$lookup", h.FHIRLookup)
	fhirTerm.POST("/CodeSystem/$validate-code", h.FHIRValidateCode)
	fhirTerm.GET("/ConceptMap/$translate", h.FHIRTranslate)
	fhirTerm.GET("/ConceptMap/namaste-icd11", h.ListForwardConceptMaps)
	fhirTerm.GET("/ConceptMap/namaste-icd11/:system", h.GetForwardConceptMap)
	fhirTerm.GET("/ConceptMap/icd11-namaste", h.GetReverseConceptMap)
}

func getLimit(c echo.Context) int {
	limit, _ := strconv.Atoi(c.QueryParam("_count"))
	if limit <= 0 {
		limit, _ = strconv.Atoi(c.QueryParam("limit"))
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return limit
}

// mapErr converts service errors to HTTP responses.
func mapErr(c echo.Context, err error) error {
	var notReady *NotReadyError
	var notFound *NotFoundError
	switch {
	case errors.As(err, &notReady):
		return c.JSON(http.StatusServiceUnavailable, fhir.ErrorOutcome(err.Error()))
	case errors.As(err, &notFound):
		return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("code", notFound.Code))
	default:
		return c.JSON(http.StatusInternalServerError, fhir.ErrorOutcome("internal server error"))
	}
}

// Search handles GET /api/v1/terminology/search?q=...
func (h *Handler) Search(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter 'q' is required")
	}
	filters := SearchFilters{
		System:            c.QueryParam("system"),
		TraditionalSystem: c.QueryParam("traditional_system"),
		TherapeuticArea:   c.QueryParam("therapeutic_area"),
		PatternType:       c.QueryParam("pattern_type"),
	}
	results, err := h.svc.Search(query, filters, getLimit(c))
	if err != nil {
		return mapErr(c, err)
	}
	if results == nil {
		results = []SearchResult{}
	}
	return c.JSON(http.StatusOK, results)
}

// Lookup handles GET /api/v1/terminology/lookup/:code
func (h *Handler) Lookup(c echo.Context) error {
	detail, err := h.svc.Lookup(c.Param("code"))
	if err != nil {
		return mapErr(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

// Translate handles GET /api/v1/terminology/translate/:code
func (h *Handler) Translate(c echo.Context) error {
	result, err := h.svc.Translate(c.Param("code"))
	if err != nil {
		return mapErr(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// VerifyTranslation handles GET /api/v1/terminology/translate/:code/verify
func (h *Handler) VerifyTranslation(c echo.Context) error {
	result, verification, err := h.svc.VerifyTranslation(c.Request().Context(), c.Param("code"))
	if err != nil {
		return mapErr(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"translation":  result,
		"verification": verification,
	})
}

// BulkValidate handles POST /api/v1/terminology/validate
func (h *Handler) BulkValidate(c echo.Context) error {
	var req struct {
		Codes []string `json:"codes"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Codes) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "codes is required")
	}
	report, err := h.svc.BulkValidate(req.Codes)
	if err != nil {
		return mapErr(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// Stats handles GET /api/v1/terminology/stats
func (h *Handler) Stats(c echo.Context) error {
	stats, err := h.svc.Stats()
	if err != nil {
		return mapErr(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// GetCodeSystem handles GET /fhir/CodeSystem/:id
func (h *Handler) GetCodeSystem(c echo.Context) error {
	cs, err := h.svc.CodeSystem(c.Param("id"))
	if err != nil {
		return mapErr(c, err)
	}
	return c.JSON(http.StatusOK, cs)
}

// FHIRLookup handles POST /fhir/CodeSystem/$lookup
func (h *Handler) FHIRLookup(c echo.Context) error {
	var req struct {
		Code string `json:"code"`
	}
	if err := c.Bind(&req); err != nil || req.Code == "" {
		return c.JSON(http.StatusBadRequest, fhir.ValidationOutcome("code", "code is required"))
	}
	detail, err := h.svc.Lookup(req.Code)
	if err != nil {
		return mapErr(c, err)
	}
	params := []fhir.Parameter{
		{Name: "name", ValueString: detail.Display},
		{Name: "display", ValueString: detail.Display},
		{Name: "system", ValueString: detail.SystemURI},
	}
	for _, syn := range detail.Synonyms {
		params = append(params, fhir.Parameter{
			Name: "designation",
			Part: []fhir.Parameter{{Name: "value", ValueString: syn}},
		})
	}
	return c.JSON(http.StatusOK, fhir.NewParameters(params...))
}

// FHIRValidateCode handles POST /fhir/CodeSystem/$validate-code
func (h *Handler) FHIRValidateCode(c echo.Context) error {
	var req struct {
		Code string `json:"code"`
	}
	if err := c.Bind(&req); err != nil || req.Code == "" {
		return c.JSON(http.StatusBadRequest, fhir.ValidationOutcome("code", "code is required"))
	}
	valid, err := h.svc.ValidateCode(req.Code)
	if err != nil {
		return mapErr(c, err)
	}
	params := []fhir.Parameter{{Name: "result", ValueBoolean: fhir.BoolPtr(valid)}}
	if !valid {
		params = append(params, fhir.Parameter{
			Name:        "message",
			ValueString: "code '" + req.Code + "' not found in NAMASTE or TM2",
		})
	}
	return c.JSON(http.StatusOK, fhir.NewParameters(params...))
}

// FHIRTranslate handles GET /fhir/ConceptMap/$translate?code=...
func (h *Handler) FHIRTranslate(c echo.Context) error {
	code := c.QueryParam("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, fhir.ValidationOutcome("code", "code parameter is required"))
	}
	result, err := h.svc.Translate(code)
	if err != nil {
		return mapErr(c, err)
	}

	params := []fhir.Parameter{{Name: "result", ValueBoolean: fhir.BoolPtr(result.Matched)}}
	if result.Matched {
		params = append(params, fhir.Parameter{
			Name: "match",
			Part: []fhir.Parameter{
				{Name: "equivalence", ValueCode: result.Equivalence},
				{Name: "concept", ValueCoding: &fhir.Coding{
					System:  SystemICD11,
					Code:    result.TargetCode,
					Display: result.TargetTitle,
				}},
				{Name: "confidence", ValueDecimal: &result.Confidence},
			},
		})
	}
	return c.JSON(http.StatusOK, fhir.NewParameters(params...))
}

// ListForwardConceptMaps handles GET /fhir/ConceptMap/namaste-icd11,
// returning every per-system forward map keyed by AYUSH system.
func (h *Handler) ListForwardConceptMaps(c echo.Context) error {
	cms, err := h.svc.ForwardConceptMaps()
	if err != nil {
		return mapErr(c, err)
	}
	return c.JSON(http.StatusOK, cms)
}

// GetForwardConceptMap handles GET /fhir/ConceptMap/namaste-icd11/:system
func (h *Handler) GetForwardConceptMap(c echo.Context) error {
	cm, err := h.svc.ForwardConceptMap(c.Param("system"))
	if err != nil {
		return mapErr(c, err)
	}
	return c.JSON(http.StatusOK, cm)
}

// GetReverseConceptMap handles GET /fhir/ConceptMap/icd11-namaste
func (h *Handler) GetReverseConceptMap(c echo.Context) error {
	cm, err := h.svc.ReverseConceptMap()
	if err != nil {
		return mapErr(c, err)
	}
	return c.JSON(http.StatusOK, cm)
}
