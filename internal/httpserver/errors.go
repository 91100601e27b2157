package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/resale_cart/internal/logging"
	"github.com/Skotchmaster/resale_cart/internal/transport"
)

// errorHandler renders errors that escape the handlers (unknown routes, CSRF rejections,
// panics) in the same envelope the cart handlers use.
func errorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := MsgInternalError
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if code < http.StatusInternalServerError {
				msg = fmt.Sprint(he.Message)
			}
		}
		if code >= http.StatusInternalServerError {
			logging.FromContext(c.Request().Context()).Error("unhandled_error", "status", code, "error", err)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.JSON(code, transport.Envelope{Message: msg})
		}
		if werr != nil {
			e.Logger.Error(werr)
		}
	}
}
