// Package csrf guards the cart's mutating routes with a double-submit token. The token
// lives in a script-readable cookie and the storefront echoes it in a request header.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

const tokenBytes = 32

type Config struct {
	CookieName string
	HeaderName string

	CookiePath string
	Domain     string
	Secure     bool
	SameSite   http.SameSite
	MaxAge     time.Duration

	// TrustedOrigins are accepted besides the request's own scheme and host,
	// e.g. "https://shop.example" when the storefront is served from another host.
	TrustedOrigins []string
	// AllowCrossOrigin disables the Origin/Referer check.
	AllowCrossOrigin bool

	SkipPaths []string
}

func DefaultConfig() Config {
	return Config{
		CookieName: "XSRF-TOKEN",
		HeaderName: "X-CSRF-Token",
		CookiePath: "/",
		SameSite:   http.SameSiteLaxMode,
		MaxAge:     24 * time.Hour,
	}
}

type guard struct {
	cfg     Config
	skip    map[string]struct{}
	trusted map[string]struct{}
}

func newGuard(cfg Config) *guard {
	def := DefaultConfig()
	if cfg.CookieName == "" {
		cfg.CookieName = def.CookieName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = def.HeaderName
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = def.CookiePath
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = def.SameSite
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = def.MaxAge
	}

	g := &guard{
		cfg:     cfg,
		skip:    make(map[string]struct{}, len(cfg.SkipPaths)),
		trusted: make(map[string]struct{}, len(cfg.TrustedOrigins)),
	}
	for _, p := range cfg.SkipPaths {
		g.skip[p] = struct{}{}
	}
	for _, o := range cfg.TrustedOrigins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			g.trusted[originKey(u.Scheme, u.Host)] = struct{}{}
		}
	}
	return g
}

// Middleware hands out the token on safe requests and requires it back on every other
// method.
func Middleware(cfg Config) echo.MiddlewareFunc {
	g := newGuard(cfg)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if _, ok := g.skip[req.URL.Path]; ok {
				return next(c)
			}

			switch req.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				if err := g.issue(c); err != nil {
					return err
				}
				return next(c)
			}

			if err := g.verify(c); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// issue reuses the caller's token when it has one; the cookie is only written when a new
// token is minted.
func (g *guard) issue(c echo.Context) error {
	token := readCookie(c.Request(), g.cfg.CookieName)
	if token == "" {
		var err error
		token, err = newToken()
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to create CSRF token")
		}
		g.setCookie(c, token)
	}
	c.Response().Header().Set(g.cfg.HeaderName, token)
	return nil
}

func (g *guard) verify(c echo.Context) error {
	req := c.Request()
	if !g.cfg.AllowCrossOrigin && !g.originAllowed(req) {
		return echo.NewHTTPError(http.StatusForbidden, "invalid origin")
	}

	token := readCookie(req, g.cfg.CookieName)
	if token == "" {
		return echo.NewHTTPError(http.StatusForbidden, "missing CSRF token")
	}
	provided := req.Header.Get(g.cfg.HeaderName)
	if subtle.ConstantTimeCompare([]byte(token), []byte(provided)) != 1 {
		return echo.NewHTTPError(http.StatusForbidden, "invalid CSRF token")
	}
	return nil
}

func (g *guard) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = r.Header.Get("Referer")
	}
	if origin == "" {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}

	key := originKey(u.Scheme, u.Host)
	if key == originKey(schemeOf(r), r.Host) {
		return true
	}
	_, ok := g.trusted[key]
	return ok
}

func (g *guard) setCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     g.cfg.CookieName,
		Value:    token,
		Path:     g.cfg.CookiePath,
		Domain:   g.cfg.Domain,
		Secure:   g.cfg.Secure,
		HttpOnly: false,
		MaxAge:   int(g.cfg.MaxAge.Seconds()),
		SameSite: g.cfg.SameSite,
	})
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func readCookie(req *http.Request, name string) string {
	ck, err := req.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}

func originKey(scheme, host string) string {
	return strings.ToLower(scheme) + "://" + strings.ToLower(host)
}

func schemeOf(r *http.Request) string {
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		return p
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
