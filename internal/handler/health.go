package handler // declare the package name; contains HTTP handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is the liveness endpoint used by load balancers and monitoring
// to verify that the engine is running.  It deliberately checks nothing
// downstream; a broken asset system must not take the API out of
// rotation.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
