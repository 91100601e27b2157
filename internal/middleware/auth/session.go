package auth

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/resale_cart/internal/logging"
)

const (
	ctxToken    = "session_token"
	ctxIdentity = "identity"

	MsgLoginRequired = "Silakan login terlebih dahulu"
)

// SessionGate validates the accessToken cookie and resolves the caller's Identity.
// API routes answer 401 JSON; page routes redirect to the login page.
type SessionGate struct {
	secret   []byte
	loginURL string
}

func NewSessionGate(secret []byte, loginURL string) *SessionGate {
	return &SessionGate{secret: secret, loginURL: loginURL}
}

func (g *SessionGate) API() echo.MiddlewareFunc {
	return g.middleware(func(c echo.Context) error {
		return c.JSON(http.StatusUnauthorized, map[string]any{
			"success": false,
			"message": MsgLoginRequired,
		})
	})
}

func (g *SessionGate) Page() echo.MiddlewareFunc {
	return g.middleware(func(c echo.Context) error {
		return c.Redirect(http.StatusSeeOther, g.loginURL)
	})
}

func (g *SessionGate) middleware(reject echo.HandlerFunc) echo.MiddlewareFunc {
	parse := echojwt.WithConfig(echojwt.Config{
		SigningKey:    g.secret,
		SigningMethod: "HS256",
		ContextKey:    ctxToken,
		TokenLookup:   "cookie:accessToken,header:Authorization:Bearer ",
		NewClaimsFunc: func(echo.Context) jwt.Claims { return new(AccessClaims) },
		ErrorHandler: func(c echo.Context, err error) error {
			logging.FromContext(c.Request().Context()).Debug("session_rejected", "reason", err.Error())
			return reject(c)
		},
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		resolve := func(c echo.Context) error {
			token, ok := c.Get(ctxToken).(*jwt.Token)
			if !ok {
				return reject(c)
			}
			claims, _ := token.Claims.(*AccessClaims)
			id, err := identityFromClaims(claims)
			if err != nil {
				logging.FromContext(c.Request().Context()).Debug("session_rejected", "reason", err.Error())
				return reject(c)
			}
			c.Set(ctxIdentity, id)
			return next(c)
		}
		return parse(resolve)
	}
}

// IdentityFrom returns the identity stored by the gate.
func IdentityFrom(c echo.Context) (Identity, bool) {
	id, ok := c.Get(ctxIdentity).(Identity)
	return id, ok
}
