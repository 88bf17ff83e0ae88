package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"shop-proxy/internal/config"
	"shop-proxy/internal/model"
	"shop-proxy/internal/service"
)

// ProxyHandler relays storefront API calls to the backend.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// For returns the echo handler serving route. The inbound method is
// mirrored upstream and the response is always a JSON document.
func (h *ProxyHandler) For(route config.Route) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()

		pr := &model.ProxyRequest{
			Ctx:    req.Context(),
			Method: req.Method,
			Path:   route.UpstreamPath,
			Header: req.Header,
		}
		if req.Body != nil && req.Body != http.NoBody && req.Method != http.MethodGet {
			pr.Body = req.Body
			pr.ContentLength = req.ContentLength
		}
		// echo's RequestID middleware sets the id on the response only.
		if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" && req.Header.Get(echo.HeaderXRequestID) == "" {
			pr.Header = req.Header.Clone()
			pr.Header.Set(echo.HeaderXRequestID, id)
		}

		res := h.service.Relay(pr)
		h.logger.Debug("relayed",
			"route", route.Path,
			"upstream_path", route.UpstreamPath,
			"status", res.StatusCode,
		)

		c.Response().Header().Set("Cache-Control", "no-store")
		return c.JSONBlob(res.StatusCode, res.Body)
	}
}
