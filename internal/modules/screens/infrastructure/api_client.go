package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"tripDeskWs/internal/modules/screens/application/port"
	"tripDeskWs/internal/shared/auth"
	"tripDeskWs/internal/shared/normalization"
)

const (
	maxResponseBytes = 4 << 20
	maxLoggedBody    = 2048
)

var errorMessageKeys = []string{"Message", "message", "Error", "error", "title", "detail"}

// RetryPolicy controls how idempotent GET requests are retried on network errors and 5xx.
type RetryPolicy struct {
	Attempts uint
	Delay    time.Duration
}

// APIHTTPClient implements port.APIClient against the travel REST API.
type APIHTTPClient struct {
	rest   *RESTClient
	policy RetryPolicy
}

func NewAPIHTTPClient(rest *RESTClient, policy RetryPolicy) *APIHTTPClient {
	if policy.Attempts == 0 {
		policy.Attempts = 1
	}
	if policy.Delay <= 0 {
		policy.Delay = 200 * time.Millisecond
	}
	return &APIHTTPClient{rest: rest, policy: policy}
}

func (c *APIHTTPClient) Get(ctx context.Context, session *auth.Session, path string, query url.Values) (any, error) {
	return retry.DoWithData(
		func() (any, error) {
			return c.do(ctx, session, http.MethodGet, path, query, nil)
		},
		retry.Context(ctx),
		retry.Attempts(c.policy.Attempts),
		retry.Delay(c.policy.Delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(attempt uint, err error) {
			slog.Warn("api get retry", slog.String("path", path), slog.Uint64("attempt", uint64(attempt)+1), slog.Any("error", err))
		}),
	)
}

func (c *APIHTTPClient) Send(ctx context.Context, session *auth.Session, method, path string, body any) (any, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodPost
	}
	return c.do(ctx, session, method, path, nil, body)
}

func (c *APIHTTPClient) do(ctx context.Context, session *auth.Session, method, path string, query url.Values, body any) (any, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode api request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := c.rest.NewRequest(ctx, method, path, reader)
	if err != nil {
		slog.Error("api request build failed", slog.String("method", method), slog.String("path", path), slog.Any("error", err))
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}
	slog.Debug("api request", slog.String("method", method), slog.String("url", req.URL.String()))

	res, err := c.rest.Do(req)
	if err != nil {
		slog.Error("api request error", slog.String("method", method), slog.String("path", path), slog.Any("error", err))
		return nil, fmt.Errorf("api request failed: %w", err)
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read api response: %w", err)
	}
	slog.Debug("api response", slog.Int("status", res.StatusCode), slog.String("url", req.URL.String()))

	switch {
	case res.StatusCode == http.StatusUnauthorized:
		slog.Warn("api rejected session token", slog.String("method", method), slog.String("path", path))
		session.Unauthorized()
		return nil, fmt.Errorf("%w: %s %s", port.ErrUnauthorized, method, path)
	case res.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s %s", port.ErrForbidden, method, path)
	case res.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s %s", port.ErrNotFound, method, path)
	case res.StatusCode < 200 || res.StatusCode >= 300:
		logged := strings.TrimSpace(string(payload))
		if len(logged) > maxLoggedBody {
			logged = logged[:maxLoggedBody]
		}
		slog.Error("api unexpected status", slog.Int("status", res.StatusCode), slog.String("method", method), slog.String("url", req.URL.String()), slog.String("body", logged))
		return nil, &port.TransportError{Status: res.StatusCode, Message: errorMessage(payload), Body: logged}
	}

	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, nil
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		slog.Error("api response decode failed", slog.String("method", method), slog.String("path", path), slog.Any("error", err))
		return nil, &decodeError{err: err}
	}
	return decoded, nil
}

// errorMessage pulls the human readable message out of an error body, if it is JSON.
func errorMessage(payload []byte) string {
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return ""
	}
	if shape := normalization.DetectShape(decoded); shape.Kind == normalization.ShapeEnvelope && strings.TrimSpace(shape.Message) != "" {
		return strings.TrimSpace(shape.Message)
	}
	return normalization.LookupString(normalization.AsMap(decoded), errorMessageKeys...)
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "decode api response: " + e.err.Error() }

func (e *decodeError) Unwrap() error { return e.err }

func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, port.ErrUnauthorized) || errors.Is(err, port.ErrForbidden) || errors.Is(err, port.ErrNotFound) {
		return false
	}
	var decodeErr *decodeError
	if errors.As(err, &decodeErr) {
		return false
	}
	var transportErr *port.TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Status >= http.StatusInternalServerError
	}
	return true
}

var _ port.APIClient = (*APIHTTPClient)(nil)
