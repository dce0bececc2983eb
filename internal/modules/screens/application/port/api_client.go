package port

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"tripDeskWs/internal/shared/auth"
)

var (
	ErrUnauthorized = errors.New("api unauthorized")
	ErrForbidden    = errors.New("api forbidden")
	ErrNotFound     = errors.New("api resource not found")
)

// TransportError is a non-2xx response other than 401, 403 and 404. Message holds the
// error text the API put in its body, when it sent one.
type TransportError struct {
	Status  int
	Message string
	Body    string
}

func (e *TransportError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api responded %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api responded %d", e.Status)
}

func (e *TransportError) HTTPStatus() int { return e.Status }

func (e *TransportError) PublicMessage() string {
	if strings.TrimSpace(e.Message) != "" {
		return e.Message
	}
	if e.Status >= http.StatusInternalServerError {
		return "The travel service is unavailable right now."
	}
	return "The request was rejected."
}

// APIClient talks to the travel REST API on behalf of a session. Both methods return the
// JSON body decoded into generic values; a response without a body decodes to nil.
// A 401 answer triggers session.Unauthorized before ErrUnauthorized is returned.
type APIClient interface {
	Get(ctx context.Context, session *auth.Session, path string, query url.Values) (any, error)
	Send(ctx context.Context, session *auth.Session, method, path string, body any) (any, error)
}
