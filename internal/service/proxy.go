// Package service implements the authenticated relay to the backend API.
package service

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"shop-proxy/internal/client"
	"shop-proxy/internal/config"
	"shop-proxy/internal/metrics"
	"shop-proxy/internal/model"
)

// forwardableRequestHeaders are the only inbound headers copied upstream.
// Cookie is rebuilt separately by CookieHeader.
var forwardableRequestHeaders = []string{
	"Accept",
	"Accept-Language",
	"Content-Type",
	"X-Request-Id",
}

const userAgent = "shop-proxy/1.0"

// ProxyService relays storefront requests to the backend API.
type ProxyService struct {
	client  *client.UpstreamClient
	logger  *slog.Logger
	metrics *metrics.Metrics
	baseURL string
}

// NewProxyService creates a ProxyService for the configured upstream.
// The metrics parameter is optional; pass nil to disable failure counting.
func NewProxyService(c *client.UpstreamClient, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*ProxyService, error) {
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base_url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("upstream base_url %q is not absolute", cfg.Upstream.BaseURL)
	}

	return &ProxyService{
		client:  c,
		logger:  logger.With("component", "proxy_service"),
		metrics: m,
		baseURL: strings.TrimSuffix(cfg.Upstream.BaseURL, "/"),
	}, nil
}

// Forward sends pr to the backend and returns its response with the body read.
// An error means no upstream response was obtained.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.UpstreamResponse, error) {
	upstreamURL := s.buildUpstreamURL(pr.Path)
	header := s.buildRequestHeaders(pr.Header)

	s.logger.Debug("forwarding request",
		"method", pr.Method,
		"path", pr.Path,
		"cookies", cookieNames(pr.Header),
	)

	resp, err := s.client.Send(pr.Ctx, pr.Method, upstreamURL, header, pr.Body, pr.ContentLength)
	if err != nil {
		return nil, fmt.Errorf("forward to upstream: %w", err)
	}
	return resp, nil
}

// Relay forwards pr and converts every outcome into a Result. It never
// fails: upstream errors, transport errors and panics all become a JSON
// envelope.
func (s *ProxyService) Relay(pr *model.ProxyRequest) (res model.Result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("relay panic", "panic", r, "path", pr.Path)
			res = FailureResult(fmt.Errorf("%v", r))
		}
	}()

	resp, err := s.Forward(pr)
	if err != nil {
		reason := Classify(err)
		s.logger.Error("upstream unavailable",
			"err", err,
			"reason", reason,
			"method", pr.Method,
			"path", pr.Path,
		)
		if s.metrics != nil {
			s.metrics.UpstreamFailures.WithLabelValues(metrics.NormalizeMethod(pr.Method), reason).Inc()
		}
		return FailureResult(err)
	}

	if !isSuccess(resp.StatusCode) {
		s.logger.Info("upstream rejected request",
			"status", resp.StatusCode,
			"method", pr.Method,
			"path", pr.Path,
		)
	}
	return Normalize(resp)
}

// CookieHeader joins every inbound Cookie header value into one header value.
// Values are relayed verbatim: nothing is parsed, added or dropped.
func CookieHeader(h http.Header) string {
	return strings.Join(h.Values("Cookie"), "; ")
}

// buildUpstreamURL ignores the inbound query string: the backend resource
// is fixed per route.
func (s *ProxyService) buildUpstreamURL(path string) string {
	return s.baseURL + path
}

func (s *ProxyService) buildRequestHeaders(src http.Header) http.Header {
	dst := make(http.Header)
	for _, key := range forwardableRequestHeaders {
		if vals := src.Values(key); len(vals) > 0 {
			dst[http.CanonicalHeaderKey(key)] = vals
		}
	}
	if cookie := CookieHeader(src); cookie != "" {
		dst.Set("Cookie", cookie)
	}
	dst.Set("Cache-Control", "no-cache, no-store")
	dst.Set("Pragma", "no-cache")
	dst.Set("User-Agent", userAgent)
	return dst
}

// cookieNames lists inbound cookie names for logging; values are never logged.
func cookieNames(h http.Header) []string {
	r := http.Request{Header: h}
	cookies := r.Cookies()
	names := make([]string, 0, len(cookies))
	for _, c := range cookies {
		names = append(names, c.Name)
	}
	return names
}

func isSuccess(status int) bool {
	return status >= 200 && status <= 299
}
