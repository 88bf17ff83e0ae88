package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"shop-proxy/internal/client"
	"shop-proxy/internal/model"
)

// FallbackMessage is reported when a failure carries no description.
const FallbackMessage = "Proxy error"

// fallbackFailureBody is written if the failure envelope itself cannot be encoded.
var fallbackFailureBody = []byte(`{"error":"` + FallbackMessage + `"}`)

// Failure reasons used in logs and metrics.
const (
	ReasonTimeout    = "timeout"
	ReasonCanceled   = "canceled"
	ReasonDNS        = "dns"
	ReasonConnection = "connection"
	ReasonBody       = "body"
	ReasonOther      = "other"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// DecodeOrNull returns body as a JSON document when it is valid JSON, and
// nil (encoded as null) otherwise. A leading UTF-8 BOM is ignored.
func DecodeOrNull(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(body, utf8BOM))
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return nil
	}
	return json.RawMessage(trimmed)
}

// Normalize maps an upstream response onto the caller-facing result.
// 2xx bodies pass through with status 200; anything else becomes an
// UpstreamError envelope carrying the upstream status.
func Normalize(resp *model.UpstreamResponse) model.Result {
	data := DecodeOrNull(resp.Body)

	if isSuccess(resp.StatusCode) {
		if data == nil {
			return model.Result{StatusCode: http.StatusOK, Body: []byte("null")}
		}
		return model.Result{StatusCode: http.StatusOK, Body: data}
	}

	env := model.UpstreamError{
		Error:  upstreamErrorMessage(data, resp.StatusCode),
		Status: resp.StatusCode,
		Data:   data,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return model.Result{StatusCode: http.StatusInternalServerError, Body: fallbackFailureBody}
	}
	return model.Result{StatusCode: resp.StatusCode, Body: body}
}

// FailureResult maps a failure to obtain an upstream response onto a 500
// ProxyFailure envelope.
func FailureResult(err error) model.Result {
	body, mErr := json.Marshal(model.ProxyFailure{Error: failureMessage(err)})
	if mErr != nil {
		body = fallbackFailureBody
	}
	return model.Result{StatusCode: http.StatusInternalServerError, Body: body}
}

// upstreamErrorMessage returns the body's "error" string, or a generic
// message naming the status.
func upstreamErrorMessage(data json.RawMessage, status int) string {
	if data != nil {
		var payload struct {
			Error any `json:"error"`
		}
		if err := json.Unmarshal(data, &payload); err == nil {
			if msg, ok := payload.Error.(string); ok && msg != "" {
				return msg
			}
		}
	}
	return fmt.Sprintf("Upstream error (%d)", status)
}

// failureMessage describes err without the request URL that net/http
// prefixes to transport errors.
func failureMessage(err error) string {
	if err == nil {
		return FallbackMessage
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return FallbackMessage
}

// Classify buckets a forwarding error for logs and metrics.
func Classify(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ReasonCanceled
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ReasonDNS
	}

	if errors.Is(err, client.ErrResponseTooLarge) {
		return ReasonBody
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ReasonConnection
	}

	return ReasonOther
}
