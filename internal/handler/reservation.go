package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/repository"
	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/service"
)

// ReservationHandler serves the requester-facing reservation surface:
// submitting a basket, listing and inspecting own reservations, and
// cancelling.  All methods assume JWT authentication and role validation
// already ran in middleware.
type ReservationHandler struct {
	Checkout  *service.CheckoutService
	Lifecycle *service.LifecycleService
	Store     repository.Store // read-only listing and detail queries
}

// NewReservationHandler constructs the handler.  All dependencies must be
// non-nil.
func NewReservationHandler(checkout *service.CheckoutService, lifecycle *service.LifecycleService, store repository.Store) *ReservationHandler {
	if checkout == nil || lifecycle == nil || store == nil {
		panic("nil dependency passed to NewReservationHandler")
	}
	return &ReservationHandler{Checkout: checkout, Lifecycle: lifecycle, Store: store}
}

// createRequest is the body of POST /v1/reservations.
type createRequest struct {
	StartAt string `json:"start_at"` // RFC3339
	EndAt   string `json:"end_at"`   // RFC3339
	Lines   []struct {
		ModelID  uint64 `json:"model_id"`
		Quantity uint32 `json:"quantity"`
		Name     string `json:"name"` // optional model name snapshot
	} `json:"lines"`
}

// Create handles POST /v1/reservations.  The whole basket succeeds or
// fails as one unit; on a capacity conflict the 409 body lists each
// losing line with the requested and free counts.
func (h *ReservationHandler) Create(c echo.Context) error {
	req, err := requesterFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body createRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	start, err := time.Parse(time.RFC3339, body.StartAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_at must be an RFC3339 timestamp"})
	}
	end, err := time.Parse(time.RFC3339, body.EndAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_at must be an RFC3339 timestamp"})
	}
	lines := make([]service.BasketLine, 0, len(body.Lines))
	for _, l := range body.Lines {
		lines = append(lines, service.BasketLine{ModelID: l.ModelID, Quantity: l.Quantity, Name: l.Name})
	}
	res, err := h.Checkout.Checkout(c.Request().Context(), req, start, end, lines)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// List handles GET /v1/reservations and returns the authenticated
// requester's reservations with their items, newest first.
func (h *ReservationHandler) List(c echo.Context) error {
	req, err := requesterFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	details, err := h.Store.ListByRequester(c.Request().Context(), req.ExternalID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": details})
}

// Get handles GET /v1/reservations/:id.  Requesters may only see their
// own reservations; staff may see any.  The payload includes the items
// and the full lifecycle history.
func (h *ReservationHandler) Get(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	ctx := c.Request().Context()
	res, items, err := h.Store.GetReservation(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	// Hide other requesters' reservations rather than confirming they exist.
	if !actor.Staff && res.RequesterExtID != actor.ExternalID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	}
	history, err := h.Store.ListHistory(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"reservation": res,
		"items":       items,
		"history":     history,
	})
}

// Cancel handles DELETE /v1/reservations/:id.  Requesters may cancel
// their own reservations before the window starts; staff may cancel any
// non-terminal reservation at any time.  An optional note query
// parameter is recorded in the history.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	if err := h.Lifecycle.Cancel(c.Request().Context(), id, actor, c.QueryParam("note")); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "CANCELLED"})
}
