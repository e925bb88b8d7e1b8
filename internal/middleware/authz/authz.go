package authz

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"storefront/internal/models"
	"storefront/internal/session"
)

const sessionKey = "session"

// Rules maps "METHOD route-pattern" to the role required to call it. One table
// instead of per-handler checks keeps the admin surface auditable in one place.
// models.RoleUser means any authenticated user, models.RoleAdmin admins only;
// routes absent from the table are public.
type Rules map[string]string

// Middleware projects the session cookie into the request context and
// enforces the role table.
func Middleware(secret []byte, rules Rules) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var sess *session.Session
			if cookie, err := c.Cookie(session.SessionCookie); err == nil && cookie.Value != "" {
				if s, err := session.ParseSession(cookie.Value, secret); err == nil && !s.Expired {
					sess = s
					c.Set(sessionKey, s)
				}
			}

			required, ok := rules[c.Request().Method+" "+c.Path()]
			if !ok {
				return next(c)
			}

			if sess == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
			}
			if required == models.RoleAdmin && sess.Role != models.RoleAdmin {
				return echo.NewHTTPError(http.StatusForbidden, "admin only")
			}
			return next(c)
		}
	}
}

// CurrentSession returns the session placed by Middleware, or nil for
// anonymous requests.
func CurrentSession(c echo.Context) *session.Session {
	if s, ok := c.Get(sessionKey).(*session.Session); ok {
		return s
	}
	return nil
}

// SetSession is for tests that exercise handlers without the middleware.
func SetSession(c echo.Context, s *session.Session) {
	c.Set(sessionKey, s)
}
