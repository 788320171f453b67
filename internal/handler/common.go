package handler // handler defines http handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/repository"
	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/service"
)

// roleStaff is the JWT role claim value that unlocks the staff surface.
const roleStaff = "STAFF"

// requesterFromContext assembles the requester snapshot from the claims
// JWTAuth stored in the context.  The name and email travel with the
// reservation so it stays readable after the identity record changes.
func requesterFromContext(c echo.Context) (service.Requester, error) {
	uid, ok := c.Get("user_id").(uint64)
	if !ok || uid == 0 {
		return service.Requester{}, errors.New("no authenticated user in context")
	}
	name, _ := c.Get("name").(string)
	email, _ := c.Get("email").(string)
	return service.Requester{Name: name, Email: email, ExternalID: uid}, nil
}

// actorFromContext identifies who is acting for lifecycle decisions and
// history entries.
func actorFromContext(c echo.Context) (service.Actor, error) {
	uid, ok := c.Get("user_id").(uint64)
	if !ok || uid == 0 {
		return service.Actor{}, errors.New("no authenticated user in context")
	}
	role, _ := c.Get("role").(string)
	name, _ := c.Get("name").(string)
	return service.Actor{ExternalID: uid, Name: name, Staff: role == roleStaff}, nil
}

// pathID parses a numeric path parameter, rejecting zero.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

// writeServiceError translates the service error taxonomy into HTTP
// responses.  Conflict payloads carry the per-line detail so clients can
// show which model ran out and by how much.
func writeServiceError(c echo.Context, err error) error {
	return c.JSON(serviceErrorBody(err))
}

// serviceErrorBody maps a service error to its HTTP status and response
// body.  Handlers that must attach extra payload to an error response (the
// per-asset results of a partially failed commit) add to the returned map
// before writing it.
func serviceErrorBody(err error) (int, echo.Map) {
	var vErr *service.ValidationError
	var cfErr *service.ConflictError
	var capErr *service.CapacityUnavailableError
	var extErr *service.ExternalActionError
	var stErr *service.StorageError
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest, echo.Map{"error": vErr.Reason, "field": vErr.Field}
	case errors.As(err, &cfErr):
		body := echo.Map{"error": cfErr.Reason}
		if len(cfErr.Lines) > 0 {
			body["conflicts"] = cfErr.Lines
		}
		return http.StatusConflict, body
	case errors.As(err, &capErr):
		return http.StatusServiceUnavailable, echo.Map{"error": capErr.Error()}
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, echo.Map{"error": "reservation not found"}
	case errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden, echo.Map{"error": "forbidden"}
	case errors.As(err, &extErr):
		return http.StatusBadGateway, echo.Map{"error": extErr.Error()}
	case errors.As(err, &stErr):
		return http.StatusInternalServerError, echo.Map{"error": "database error"}
	default:
		return http.StatusInternalServerError, echo.Map{"error": "internal error"}
	}
}
