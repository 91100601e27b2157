package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/resale_cart/internal/middleware/auth"
	loggingmw "github.com/Skotchmaster/resale_cart/internal/middleware/logging"
)

type Deps struct {
	CartHandler *CartHTTP
	Gate        *auth.SessionGate
	CartPageURL string
	// Ready reports whether the service can take traffic.
	Ready func(ctx context.Context) error
	// CSRF guards the mutating routes when set.
	CSRF echo.MiddlewareFunc
}

func New(log *slog.Logger, d *Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(e)

	e.Use(middleware.RequestID())
	e.Use(loggingmw.RequestLogger(log))
	e.Use(middleware.Recover())

	Register(e, d)
	return e
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/ready", readiness(d.Ready))

	api := []echo.MiddlewareFunc{d.Gate.API()}
	if d.CSRF != nil {
		api = append(api, d.CSRF)
	}

	ajax := e.Group("/ajax", api...)
	ajax.POST("/add-to-cart.php", d.CartHandler.AddItem)
	ajax.POST("/update-cart.php", d.CartHandler.UpdateItem)
	ajax.POST("/remove-from-cart.php", d.CartHandler.RemoveItem)
	ajax.GET("/get-cart.php", d.CartHandler.GetCart)
	ajax.GET("/get-cart-count.php", d.CartHandler.GetCartCount)

	v1 := e.Group("/api/v1/cart", api...)
	v1.GET("", d.CartHandler.GetCart)
	v1.DELETE("", d.CartHandler.ClearCart)
	v1.GET("/count", d.CartHandler.GetCartCount)
	v1.POST("/items", d.CartHandler.AddItem)
	v1.PATCH("/items/:id", d.CartHandler.UpdateItem)
	v1.DELETE("/items/:id", d.CartHandler.RemoveItem)

	e.GET("/cart", func(c echo.Context) error {
		return c.Redirect(http.StatusSeeOther, d.CartPageURL)
	}, d.Gate.Page())
}

func readiness(ready func(ctx context.Context) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		if ready != nil {
			if err := ready(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}
