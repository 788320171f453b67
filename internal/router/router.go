package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/handler"
	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Load balancers and monitoring systems use this to verify the
	// service is up.
	e.GET("/healthz", handler.Health)
}

// RegisterAPI registers the authenticated API surface.  Identity is
// issued by an external service; jwtSecret must match the one that
// service signs with.  Requesters and staff share the reservation
// endpoints, while the checkout desk, approval decisions and the sweep
// trigger are staff only.
func RegisterAPI(e *echo.Echo, jwtSecret string,
	availability *handler.AvailabilityHandler,
	reservations *handler.ReservationHandler,
	desk *handler.StaffCheckoutHandler,
	sweep *handler.SweepHandler,
) {
	// Everything under /v1 requires a valid access token with a known role.
	api := e.Group("/v1")
	api.Use(middleware.JWTAuth(jwtSecret))
	api.Use(middleware.RequireRole("STAFF", "REQUESTER"))

	// Availability preview over the calculator.  Advisory only; the
	// checkout transaction is the authority.
	api.GET("/models/:id/availability", availability.Preview)

	// Reservation lifecycle for requesters (staff can use these too).
	api.POST("/reservations", reservations.Create)
	api.GET("/reservations", reservations.List)
	api.GET("/reservations/:id", reservations.Get)
	api.DELETE("/reservations/:id", reservations.Cancel)

	// Staff desk: scanning, physical checkout, returns, approvals.
	staff := api.Group("", middleware.RequireRole("STAFF"))
	staff.POST("/reservations/:id/checkout/admit", desk.Admit)
	staff.POST("/reservations/:id/checkout/commit", desk.Commit)
	staff.POST("/reservations/:id/checkin", desk.Checkin)
	staff.POST("/reservations/:id/approve", desk.Approve)
	staff.POST("/reservations/:id/reject", desk.Reject)

	// Manual sweep trigger for cron or an operator.
	staff.POST("/admin/sweep", sweep.Trigger)
}
