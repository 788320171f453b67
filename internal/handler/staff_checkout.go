package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/service"
)

// StaffCheckoutHandler serves the staff desk surface: scanning assets
// against a reservation, committing the physical checkout, taking assets
// back in, and deciding approvals.  Routes using it must sit behind
// RequireRole("STAFF").
type StaffCheckoutHandler struct {
	Quota     *service.StaffCheckoutService
	Lifecycle *service.LifecycleService
}

// NewStaffCheckoutHandler constructs the handler.  Both services must be
// non-nil.
func NewStaffCheckoutHandler(quota *service.StaffCheckoutService, lifecycle *service.LifecycleService) *StaffCheckoutHandler {
	if quota == nil || lifecycle == nil {
		panic("nil service passed to NewStaffCheckoutHandler")
	}
	return &StaffCheckoutHandler{Quota: quota, Lifecycle: lifecycle}
}

// Admit handles POST /v1/reservations/:id/checkout/admit.  It answers
// the desk question "may this scanned asset join this reservation?"
// without touching the external asset system's state.  The body carries
// the tag being scanned plus the tags already admitted in this batch, so
// the stateless server can rebuild the in-progress counts.
func (h *StaffCheckoutHandler) Admit(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var body struct {
		AssetTag     string   `json:"asset_tag"`
		AdmittedTags []string `json:"admitted_tags"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	ctx := c.Request().Context()
	batch, err := h.Quota.NewBatch(ctx, id)
	if err != nil {
		return writeServiceError(c, err)
	}
	// Replay the already-scanned tags so quota counts include them.
	for _, tag := range body.AdmittedTags {
		if _, err := h.Quota.Admit(ctx, batch, tag); err != nil {
			return writeServiceError(c, err)
		}
	}
	admitted, err := h.Quota.Admit(ctx, batch, body.AssetTag)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"admitted": admitted,
		"counts":   batch.Admitted,
		"allowed":  batch.Allowed,
	})
}

// Commit handles POST /v1/reservations/:id/checkout/commit.  It performs
// the physical checkout calls, confirms the reservation when at least
// one asset went out, and reports the outcome per asset.
func (h *StaffCheckoutHandler) Commit(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var body struct {
		AssetTags   []string `json:"asset_tags"`
		RecipientID uint64   `json:"recipient_id"`
		Note        string   `json:"note"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	results, err := h.Quota.Commit(c.Request().Context(), id, body.AssetTags, body.RecipientID, actor, body.Note)
	if err != nil {
		// Assets may already be out the door when bookkeeping fails, so
		// the per-asset outcomes travel with the error body.
		status, errBody := serviceErrorBody(err)
		if len(results) > 0 {
			errBody["results"] = results
		}
		return c.JSON(status, errBody)
	}
	return c.JSON(http.StatusOK, echo.Map{"results": results})
}

// Checkin handles POST /v1/reservations/:id/checkin.  All listed assets
// must come back before the reservation completes; a partial return
// leaves it CONFIRMED for a retry with the stragglers.
func (h *StaffCheckoutHandler) Checkin(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var body struct {
		AssetTags []string `json:"asset_tags"`
		Note      string   `json:"note"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	results, err := h.Quota.Checkin(c.Request().Context(), id, body.AssetTags, actor, body.Note)
	if err != nil {
		status, errBody := serviceErrorBody(err)
		if len(results) > 0 {
			errBody["results"] = results
		}
		return c.JSON(status, errBody)
	}
	return c.JSON(http.StatusOK, echo.Map{"results": results})
}

// Approve handles POST /v1/reservations/:id/approve.
func (h *StaffCheckoutHandler) Approve(c echo.Context) error {
	return h.decide(c, true)
}

// Reject handles POST /v1/reservations/:id/reject.  Rejecting also
// cancels the reservation so its quantities stop counting against
// capacity.
func (h *StaffCheckoutHandler) Reject(c echo.Context) error {
	return h.decide(c, false)
}

func (h *StaffCheckoutHandler) decide(c echo.Context, approve bool) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	ctx := c.Request().Context()
	if approve {
		err = h.Lifecycle.Approve(ctx, id, actor)
	} else {
		err = h.Lifecycle.RejectApproval(ctx, id, actor)
	}
	if err != nil {
		return writeServiceError(c, err)
	}
	status := "APPROVED"
	if !approve {
		status = "REJECTED"
	}
	return c.JSON(http.StatusOK, echo.Map{"approval_status": status})
}
