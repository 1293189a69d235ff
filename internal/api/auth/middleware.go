package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// ContextKey represents keys for context values
type ContextKey string

// UserIDContextKey is where RequireAuth places the caller's user id.
const UserIDContextKey ContextKey = "user_id"

// RequireAuth validates the bearer session token and places the caller's
// user id in the request context. Everything behind /api/v1 runs after it.
func RequireAuth(tokenService *TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header required")
			}

			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			userID, err := tokenService.ValidateToken(tokenParts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			c.Set(string(UserIDContextKey), userID)
			return next(c)
		}
	}
}

// GetUserID extracts the authenticated user's id from echo context.
// Returns "" when RequireAuth has not run.
func GetUserID(c echo.Context) string {
	userID, _ := c.Get(string(UserIDContextKey)).(string)
	return userID
}
