package httpserver

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pokazuha/backend/internal/tokens"
)

const (
	ctxUserID = "user_id"
	ctxRoles  = "user_roles"
)

// RequireAuth verifies the bearer access token and stores the caller's
// identity in the echo context for downstream handlers.
func RequireAuth(issuer *tokens.Issuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			claims, err := issuer.ParseAccessToken(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			c.Set(ctxUserID, userID)
			c.Set(ctxRoles, claims.Roles)
			return next(c)
		}
	}
}

// CurrentUserID returns the authenticated caller's id, if any.
func CurrentUserID(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(ctxUserID).(uuid.UUID)
	return id, ok
}

// CurrentUserRoles returns the authenticated caller's roles.
func CurrentUserRoles(c echo.Context) []string {
	if roles, ok := c.Get(ctxRoles).([]string); ok {
		return roles
	}
	return nil
}
