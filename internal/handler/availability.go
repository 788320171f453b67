package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/service"
)

// AvailabilityHandler exposes the availability calculator as a read-only
// preview endpoint.  The numbers it returns are advisory: the checkout
// transaction recomputes them under lock before committing anything.
type AvailabilityHandler struct {
	Availability *service.AvailabilityService
}

// NewAvailabilityHandler constructs the handler.  The service must be non-nil.
func NewAvailabilityHandler(availability *service.AvailabilityService) *AvailabilityHandler {
	if availability == nil {
		panic("nil service passed to NewAvailabilityHandler")
	}
	return &AvailabilityHandler{Availability: availability}
}

// Preview handles GET /v1/models/:id/availability?start=...&end=...  Both
// query parameters are RFC3339 timestamps.  The response reports capacity,
// committed and free counts for the window; capacity and free are omitted
// when the external asset system could not say how many units exist.
func (h *AvailabilityHandler) Preview(c echo.Context) error {
	modelID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid model id"})
	}
	start, err := time.Parse(time.RFC3339, c.QueryParam("start"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start must be an RFC3339 timestamp"})
	}
	end, err := time.Parse(time.RFC3339, c.QueryParam("end"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end must be an RFC3339 timestamp"})
	}
	result, err := h.Availability.Availability(c.Request().Context(), modelID, start, end)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}
