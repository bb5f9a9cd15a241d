package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole returns a middleware that enforces that the authenticated
// user holds one of the specified roles.  Role values correspond to the
// JWT's "role" claim (ADMIN or ATTENDANT); JWTAuth must have run first
// so the claim is present in the context.  Requests with a missing or
// disallowed role are rejected with 403 Forbidden — a valid credential
// with an insufficient role is distinct from a missing credential.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get("role").(string)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
