package pipeline

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/hashid"
	"github.com/Aorta-Detectors/Aorta-Detection/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.PUT("/change_status", h.ChangeStatus)
	api.GET("/files/:hash/statuses", h.ListFileStatuses)
	api.GET("/files/:hash/appointments", h.ListFileAppointments)
}

// StatusChange is the report sent by the analysis worker.
type StatusChange struct {
	FileHash   string `json:"file_hash"`
	SeriesHash string `json:"series_hash"`
	Status     string `json:"status"`
}

func (h *Handler) ChangeStatus(c echo.Context) error {
	var req StatusChange
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !hashid.Valid(req.FileHash) || !hashid.Valid(req.SeriesHash) {
		return echo.NewHTTPError(http.StatusBadRequest, "file_hash and series_hash must be 32 hex characters")
	}

	rec, err := h.svc.Advance(c.Request().Context(), hashid.ID(req.FileHash), hashid.ID(req.SeriesHash), req.Status)
	switch {
	case errors.Is(err, ErrInvalidStatus):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "series status not found")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ListFileStatuses(c echo.Context) error {
	hash := c.Param("hash")
	if !hashid.Valid(hash) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid file hash")
	}
	items, err := h.svc.ListByFile(c.Request().Context(), hashid.ID(hash))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if len(items) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "no statuses for file")
	}
	return c.JSON(http.StatusOK, pagination.Page(items, pagination.FromContext(c)))
}

func (h *Handler) ListFileAppointments(c echo.Context) error {
	hash := c.Param("hash")
	if !hashid.Valid(hash) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid file hash")
	}
	items, err := h.svc.Appointments(c.Request().Context(), hashid.ID(hash))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if len(items) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "no appointments for file")
	}
	return c.JSON(http.StatusOK, pagination.Page(items, pagination.FromContext(c)))
}
