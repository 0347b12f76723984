package rest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/exp/maps"

	"github.com/openfinreg/ffiec-data-connect/protocol"
)

// maxLoggedBody caps how much of an error body goes into logs.
const maxLoggedBody = 500

var tracer = otel.Tracer("github.com/openfinreg/ffiec-data-connect/protocol/rest")

// params are sent as request headers; the service reads no query string.
type params map[string]string

type response struct {
	status      int
	contentType string
	retryAfter  string
	body        []byte
}

// send issues one request after waiting for the rate limiter. Transport
// failures and timeouts come back as *protocol.ConnectionError; the status is
// not interpreted here.
func (a *Adapter) send(ctx context.Context, method, path string, logical protocol.Endpoint, p params) (*response, error) {
	if err := a.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("failed waiting for rate limiter before %s; %w", path, err)
	}
	if a.creds.IsExpired(a.now()) {
		return nil, &protocol.CredentialError{Reason: "OAuth2 token is expired or expires within 24 hours; obtain a new bearer token"}
	}

	requestID := uuid.New().String()
	ctx, span := tracer.Start(ctx, "ffiec.rest."+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("ffiec.endpoint", string(logical)),
			attribute.String("http.request.method", method),
			attribute.String("ffiec.request_id", requestID),
		),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+"/"+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s; %w", path, err)
	}
	a.creds.SetAuthHeaders(req.Header)
	for k, v := range p {
		// The service matches its parameter headers case-sensitively, so
		// bypass canonicalization.
		req.Header[k] = []string{v}
	}
	req.Header.Set("Accept", "application/json")

	a.lggr.Debugw("Sending REST request", "requestID", requestID, "endpoint", path, "method", method,
		"headers", headerNames(p))

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		promRequestCount.WithLabelValues(string(logical), method, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		if isTimeout(err) {
			err = fmt.Errorf("request timed out after %s; %w", a.timeout, err)
		}
		return nil, &protocol.ConnectionError{Endpoint: logical, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		promRequestCount.WithLabelValues(string(logical), method, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read body")
		return nil, &protocol.ConnectionError{Endpoint: logical, Err: fmt.Errorf("failed to read response body; %w", err)}
	}

	elapsed := time.Since(start)
	promRequestCount.WithLabelValues(string(logical), method, strconv.Itoa(resp.StatusCode)).Inc()
	promRequestDuration.WithLabelValues(string(logical)).Observe(float64(elapsed.Milliseconds()))
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	lggr := a.lggr.With("requestID", requestID, "endpoint", path, "status", resp.StatusCode, "elapsed", elapsed)
	if resp.StatusCode >= http.StatusBadRequest {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		lggr.Debugw("REST request failed", "body", truncate(body, maxLoggedBody))
	} else {
		lggr.Debugw("REST request succeeded", "bytes", len(body))
	}

	return &response{
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		retryAfter:  resp.Header.Get("Retry-After"),
		body:        body,
	}, nil
}

// statusError maps a non-success status to the error taxonomy. It returns nil
// for 200 and 204.
func statusError(endpoint protocol.Endpoint, resp *response) error {
	switch resp.status {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusBadRequest:
		return &protocol.ValidationError{
			Field:    string(endpoint),
			Value:    "request_parameters",
			Expected: fmt.Sprintf("valid parameters for %s; server said: %s", endpoint, strings.TrimSpace(string(resp.body))),
		}
	case http.StatusUnauthorized:
		return &protocol.CredentialError{Reason: "OAuth2 authentication failed; the token may be expired or invalid"}
	case http.StatusForbidden:
		return &protocol.CredentialError{Reason: "access forbidden; verify the bearer token is valid, has the right permissions and belongs to the user"}
	case http.StatusNotFound:
		return &protocol.NoDataError{Endpoint: endpoint}
	case http.StatusTooManyRequests:
		return &protocol.RateLimitError{Endpoint: endpoint, RetryAfter: parseRetryAfter(resp.retryAfter)}
	case http.StatusInternalServerError:
		return &protocol.ConnectionError{Endpoint: endpoint, Err: errors.New("server error")}
	}
	return &protocol.ProtocolError{Endpoint: endpoint, StatusCode: resp.status, Body: string(resp.body)}
}

// parseRetryAfter reads a Retry-After value given in seconds.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return protocol.DefaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}

// call sends a request and decodes a JSON body. 204 yields an empty array.
func (a *Adapter) call(ctx context.Context, endpoint protocol.Endpoint, p params) (any, error) {
	resp, err := a.send(ctx, http.MethodGet, string(endpoint), endpoint, p)
	if err != nil {
		return nil, err
	}
	if err = statusError(endpoint, resp); err != nil {
		return nil, err
	}
	if resp.status == http.StatusNoContent || len(bytes.TrimSpace(resp.body)) == 0 {
		return []any{}, nil
	}
	return decodeJSON(endpoint, resp.body)
}

func decodeJSON(endpoint protocol.Endpoint, body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &protocol.ProtocolError{
			Endpoint:   endpoint,
			StatusCode: http.StatusOK,
			Body:       fmt.Sprintf("invalid JSON response: %v", err),
		}
	}
	return v, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

func headerNames(p params) []string {
	names := maps.Keys(p)
	slices.Sort(names)
	return names
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(bytes.ToValidUTF8(b, nil))
}
