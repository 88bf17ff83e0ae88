// Package client provides the HTTP client for the marketplace backend API.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"shop-proxy/internal/config"
	"shop-proxy/internal/metrics"
	"shop-proxy/internal/model"
)

// ErrResponseTooLarge is returned when the upstream body exceeds the configured limit.
var ErrResponseTooLarge = errors.New("upstream response body exceeds limit")

// UpstreamClient sends requests to the backend API.
type UpstreamClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
	maxBody    int64
}

// NewUpstreamClient creates an UpstreamClient with connection pooling and timeouts.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewUpstreamClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *UpstreamClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &UpstreamClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
			// Redirects are reported back, never followed: cookies stay with the configured upstream.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:  logger.With("component", "upstream_client"),
		metrics: m,
		maxBody: cfg.Upstream.MaxResponseBytes,
	}
}

// Do executes an HTTP request against the upstream and reads the whole body.
func (c *UpstreamClient) Do(req *http.Request) (*model.UpstreamResponse, error) {
	c.logger.Debug("upstream request",
		"method", req.Method,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	method := metrics.NormalizeMethod(req.Method)

	if err != nil {
		c.observe(method, start)
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := c.readBody(resp.Body)
	c.observe(method, start)
	if err != nil {
		return nil, err
	}

	if c.metrics != nil {
		c.metrics.UpstreamResponses.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	}

	return &model.UpstreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// Send builds a request bound to ctx and executes it.
// When ctx is canceled (e.g. the caller disconnects) the upstream request is
// canceled with it.
func (c *UpstreamClient) Send(ctx context.Context, method, url string, header http.Header, body io.Reader, contentLength int64) (*model.UpstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header = header
	if body != nil && contentLength > 0 {
		req.ContentLength = contentLength
	}

	return c.Do(req)
}

// Close releases idle upstream connections.
func (c *UpstreamClient) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *UpstreamClient) readBody(r io.Reader) ([]byte, error) {
	if c.maxBody <= 0 {
		body, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read upstream body: %w", err)
		}
		return body, nil
	}

	body, err := io.ReadAll(io.LimitReader(r, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("read upstream body: %w (%d bytes)", ErrResponseTooLarge, c.maxBody)
	}
	return body, nil
}

func (c *UpstreamClient) observe(method string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.UpstreamDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
