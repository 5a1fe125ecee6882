package medicalrecord

import (
	"errors"
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

// RegisterRoutes registers medical record routes. Doctors submit and read;
// curators own the review queue and decisions.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	records := api.Group("/patients/:patientId/records")
	records.POST("", h.Create, auth.RequireRole(auth.RoleDoctor))
	records.GET("", h.ListByPatient, auth.RequireRole(auth.RoleDoctor, auth.RoleCurator))
	records.GET("/:recordId", h.Get, auth.RequireRole(auth.RoleDoctor, auth.RoleCurator))
	records.POST("/:recordId/review", h.Review, auth.RequireRole(auth.RoleCurator))

	api.GET("/records/pending", h.ListPending, auth.RequireRole(auth.RoleCurator))
}

// Create handles POST /api/v1/patients/:patientId/records
func (h *Handler) Create(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if in.DoctorID == uuid.Nil {
		if id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
			in.DoctorID = id
		}
	}

	rec, err := h.svc.Create(c.Request().Context(), patientID, in)
	if err != nil {
		return h.mapErr(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

// Get handles GET /api/v1/patients/:patientId/records/:recordId
func (h *Handler) Get(c echo.Context) error {
	patientID, recordID, err := pathIDs(c)
	if err != nil {
		return err
	}
	rec, err := h.svc.Get(c.Request().Context(), patientID, recordID)
	if err != nil {
		return h.mapErr(err)
	}
	return c.JSON(http.StatusOK, rec)
}

// ListByPatient handles GET /api/v1/patients/:patientId/records
func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	limit, offset := pagination(c)
	records, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, limit, offset)
	if err != nil {
		return h.mapErr(err)
	}
	return listResponse(c, records, total)
}

// ListPending handles GET /api/v1/records/pending
func (h *Handler) ListPending(c echo.Context) error {
	limit, offset := pagination(c)
	records, total, err := h.svc.ListPending(c.Request().Context(), limit, offset)
	if err != nil {
		return h.mapErr(err)
	}
	return listResponse(c, records, total)
}

// Review handles POST /api/v1/patients/:patientId/records/:recordId/review
func (h *Handler) Review(c echo.Context) error {
	patientID, recordID, err := pathIDs(c)
	if err != nil {
		return err
	}

	var in ReviewInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	curatorID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "curator identity missing")
	}
	in.CuratorID = curatorID

	rec, err := h.svc.Review(c.Request().Context(), patientID, recordID, in)
	if err != nil {
		return h.mapErr(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) mapErr(err error) error {
	var validation *ValidationError
	var transition *InvalidTransitionError
	var notFound *NotFoundError
	switch {
	case errors.As(err, &validation):
		return echo.NewHTTPError(http.StatusBadRequest, validation.Error())
	case errors.As(err, &transition):
		return echo.NewHTTPError(http.StatusConflict, transition.Error())
	case errors.As(err, &notFound):
		return echo.NewHTTPError(http.StatusNotFound, notFound.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func pathIDs(c echo.Context) (patientID, recordID uuid.UUID, err error) {
	patientID, err = uuid.Parse(c.Param("patientId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	recordID, err = uuid.Parse(c.Param("recordId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid record id")
	}
	return patientID, recordID, nil
}

func pagination(c echo.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset, _ = strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func listResponse(c echo.Context, records []*MedicalRecord, total int) error {
	if records == nil {
		records = []*MedicalRecord{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"total":   total,
		"records": records,
	})
}
