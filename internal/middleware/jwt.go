package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// issued by the identity service and injects its claims into the request
// context.  The provided secret must match the one used when issuing
// tokens.  This middleware should wrap protected routes so that handlers
// can access the authenticated user via c.Get("user_id"), c.Get("name"),
// c.Get("email") and c.Get("role").
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header starts with "Bearer " followed by the JWT.
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Parse with HS256 and our secret; any other signing method
			// is rejected.
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			// The subject carries the identity service's numeric user id.
			// It may arrive as a JSON number or a string depending on the
			// issuer, so both are accepted.
			uid := claimUint64(claims, "sub")
			if uid == 0 {
				uid = claimUint64(claims, "user_id")
			}
			if uid == 0 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token has no usable subject"})
			}

			c.Set("user_id", uid)
			c.Set("name", claimString(claims, "name"))
			c.Set("email", claimString(claims, "email"))
			c.Set("role", claimString(claims, "role"))
			return next(c)
		}
	}
}

// claimUint64 reads a claim as a positive integer, tolerating both JSON
// number and string encodings.  Returns 0 when absent or malformed.
func claimUint64(claims jwt.MapClaims, key string) uint64 {
	switch v := claims[key].(type) {
	case float64:
		if v > 0 {
			return uint64(v)
		}
	case string:
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// claimString reads a string claim, returning "" when absent.
func claimString(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}
