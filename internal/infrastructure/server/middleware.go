package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskledger/core/internal/application/services"
	"github.com/taskledger/core/internal/domain/entities"
)

// authMiddleware resolves the session cookie into a username. Protected
// handlers read the username from the request context; requests without a
// live session are rejected before reaching them. Storage failures during
// resolution are not auth failures and surface as 500.
func (s *Server) authMiddleware(authService *services.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(s.config.Session.CookieName)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}

			user, err := authService.ResolveSession(c.Request().Context(), cookie.Value)
			if err != nil {
				if errors.Is(err, entities.ErrUnauthorized) || errors.Is(err, entities.ErrSessionExpired) {
					s.logger.LogSecurityEvent("invalid_session", "", c.RealIP(), map[string]interface{}{
						"error": err.Error(),
					})
					return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
				}
				return echo.NewHTTPError(http.StatusInternalServerError, "Server error").SetInternal(err)
			}

			c.Set("user", user.Username)

			return next(c)
		}
	}
}
