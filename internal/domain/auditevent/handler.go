package auditevent

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ayushbridge/emr/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers audit routes. Audit history is admin-only.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	group := api.Group("/audit", auth.RequireRole(auth.RoleAdmin))
	group.GET("", h.List)
	group.GET("/:id", h.Get)
}

// List handles GET /api/v1/audit
func (h *Handler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	filters := ListFilters{
		Action:       c.QueryParam("action"),
		ResourceType: c.QueryParam("resource_type"),
		ResourceID:   c.QueryParam("resource_id"),
		ActorID:      c.QueryParam("actor_id"),
		Severity:     c.QueryParam("severity"),
	}

	entries, total, err := h.svc.ListEntries(c.Request().Context(), filters, limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list audit entries")
	}
	if entries == nil {
		entries = []*Entry{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"total":   total,
		"entries": entries,
	})
}

// Get handles GET /api/v1/audit/:id
func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid audit entry id")
	}
	entry, err := h.svc.GetEntry(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "audit entry not found")
	}
	return c.JSON(http.StatusOK, entry)
}
