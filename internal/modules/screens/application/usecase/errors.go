package usecase

import (
	"errors"
	"net/http"

	"tripDeskWs/internal/modules/screens/application/port"
	"tripDeskWs/internal/shared/auth"
	"tripDeskWs/internal/shared/httputil"
	"tripDeskWs/internal/shared/optimistic"
)

var (
	ErrUnknownScreen  = errors.New("unknown screen")
	ErrUnknownAction  = errors.New("unknown action")
	ErrInvalidCommand = errors.New("invalid action command")
	ErrEmptyPatch     = errors.New("action has no fields to apply")
	ErrSessionClosed  = errors.New("screen session closed")
)

// NewErrorMapper maps every error a screen can run into to an HTTP status and the text
// shown to the user. The websocket notifications and the REST handlers share it.
func NewErrorMapper() *httputil.ErrorMapper {
	return httputil.NewErrorMapper().
		WithMapping(auth.ErrMissingToken, http.StatusUnauthorized, "Please sign in to continue.").
		WithMapping(auth.ErrInvalidToken, http.StatusUnauthorized, "Your session is not valid. Please sign in again.").
		WithMapping(auth.ErrForbiddenRole, http.StatusForbidden, "You do not have access to this screen.").
		WithMapping(auth.ErrUnverifiedRole, http.StatusForbidden, "This screen is unavailable until sign-in verification is configured.").
		WithMapping(port.ErrUnauthorized, http.StatusUnauthorized, "Your session has expired. Please sign in again.").
		WithMapping(port.ErrForbidden, http.StatusForbidden, "You are not allowed to do that.").
		WithMapping(port.ErrNotFound, http.StatusNotFound, "This item no longer exists.").
		WithMapping(optimistic.ErrEntityNotFound, http.StatusNotFound, "This item is no longer available.").
		WithMapping(ErrUnknownScreen, http.StatusNotFound, "Unknown screen.").
		WithMapping(ErrUnknownAction, http.StatusBadRequest, "This action is not available here.").
		WithMapping(ErrInvalidCommand, http.StatusBadRequest, "The request is missing the action or the item.").
		WithMapping(ErrEmptyPatch, http.StatusBadRequest, "Nothing to save.").
		WithMapping(ErrSessionClosed, http.StatusGone, "This screen was closed.").
		WithDefault(http.StatusBadGateway, "Something went wrong. Please try again.")
}
