package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"shop-proxy/internal/model"
)

// ErrorHandler renders framework errors (unknown route, method not allowed,
// body too large, rate limited, recovered panics) in the same {"error": ...}
// shape the proxy routes use.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	logger = logger.With("component", "error_handler")
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := http.StatusText(code)

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg = httpErrorMessage(he)
		} else {
			logger.Error("unhandled error",
				"err", err,
				"path", c.Request().URL.Path,
			)
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(code)
		} else {
			writeErr = c.JSON(code, model.ProxyFailure{Error: msg})
		}
		if writeErr != nil {
			logger.Error("write error response", "err", writeErr)
		}
	}
}

func httpErrorMessage(he *echo.HTTPError) string {
	switch m := he.Message.(type) {
	case string:
		return m
	case error:
		return m.Error()
	case nil:
		return http.StatusText(he.Code)
	default:
		return fmt.Sprint(m)
	}
}
