package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/pinceletas/user-auth-service/app/service"
)

const (
	ContextKeyEmail = "user_email"
	ContextKeyRole  = "user_role"
)

type accessTokenValidator interface {
	Validate(tokenString string) (*service.Claims, error)
}

type AuthMiddleware struct {
	tokens accessTokenValidator
	// skipPrefixes bypass the gate entirely (login/register/docs/health).
	skipPrefixes []string
}

func NewAuthMiddleware(tokens accessTokenValidator, skipPrefixes []string) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:       tokens,
		skipPrefixes: skipPrefixes,
	}
}

// Authenticate establishes a request-scoped identity when a valid bearer
// token is present and continues anonymously otherwise. It never rejects a
// request on its own; route authorization (RequireAuth / RequireRole) is
// what denies access, and protected routes must carry one of those gates.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if m.skip(c.Request().URL.Path) {
			return next(c)
		}

		tokenString := bearerToken(c)
		if tokenString == "" {
			return next(c)
		}

		claims, err := m.tokens.Validate(tokenString)
		if err != nil {
			if err == service.ErrTokenExpired {
				logrus.Debug("Expired access token")
			} else {
				logrus.Debug("Invalid access token")
			}
			c.Set(ContextKeyEmail, nil)
			c.Set(ContextKeyRole, nil)
			return next(c)
		}

		c.Set(ContextKeyEmail, claims.Subject)
		c.Set(ContextKeyRole, claims.Role)

		return next(c)
	}
}

// RequireAuth denies anonymous requests.
func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := c.Get(ContextKeyEmail).(string); !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error": "authentication required",
			})
		}
		return next(c)
	}
}

// RequireRole denies requests whose identity lacks the role. Explicit
// membership test, applied per route group.
func (m *AuthMiddleware) RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := c.Get(ContextKeyEmail).(string); !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "authentication required",
				})
			}
			if got, ok := c.Get(ContextKeyRole).(string); !ok || got != role {
				return c.JSON(http.StatusForbidden, map[string]string{
					"error": "insufficient permissions",
				})
			}
			return next(c)
		}
	}
}

func (m *AuthMiddleware) skip(path string) bool {
	for _, prefix := range m.skipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func bearerToken(c echo.Context) string {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
