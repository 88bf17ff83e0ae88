// Package model defines shared types for the proxy.
package model

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// ProxyRequest represents a storefront request to be relayed to a fixed
// backend resource.
type ProxyRequest struct {
	Ctx           context.Context
	Method        string
	Path          string      // upstream resource path
	Header        http.Header // inbound request headers, cookies included
	Body          io.Reader
	ContentLength int64
}

// UpstreamResponse is the backend's answer with the body fully read.
type UpstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// UpstreamError is the envelope returned when the backend answers with a
// non-2xx status. Data carries the backend body when it was valid JSON and
// is null otherwise.
type UpstreamError struct {
	Error  string          `json:"error"`
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// ProxyFailure is the envelope returned when no backend answer was obtained.
type ProxyFailure struct {
	Error string `json:"error"`
}

// Result is the status and JSON body written back to the caller.
type Result struct {
	StatusCode int
	Body       []byte
}
