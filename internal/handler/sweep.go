package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/service"
)

// SweepHandler exposes the lifecycle sweeper as a staff-triggered
// endpoint.  Cron supervision stays outside the service; this is the
// invocation surface it calls.
type SweepHandler struct {
	Sweeper *service.Sweeper
}

// NewSweepHandler constructs the handler.  The sweeper must be non-nil.
func NewSweepHandler(sweeper *service.Sweeper) *SweepHandler {
	if sweeper == nil {
		panic("nil sweeper passed to NewSweepHandler")
	}
	return &SweepHandler{Sweeper: sweeper}
}

// Trigger handles POST /v1/admin/sweep.  It runs both sweep passes once
// and returns the report.  Pass failures come back inside the report
// rather than as an HTTP error, since a partial sweep still did work.
func (h *SweepHandler) Trigger(c echo.Context) error {
	report := h.Sweeper.Run(c.Request().Context())
	return c.JSON(http.StatusOK, report)
}
