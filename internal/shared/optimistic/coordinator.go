package optimistic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"tripDeskWs/internal/shared/normalization"
)

var (
	// ErrEntityNotFound is returned when the target id is not in the collection.
	ErrEntityNotFound = errors.New("entity not found in collection")
	// ErrMissingCall is returned when a mutation has no network call.
	ErrMissingCall = errors.New("mutation has no network call")
)

// ApplicationError is an envelope that declared failure on an otherwise successful response.
type ApplicationError struct {
	Message string
}

func (e *ApplicationError) Error() string {
	if e.Message == "" {
		return "request rejected by server"
	}
	return e.Message
}

// HTTPStatus reports the status an application failure maps to at the HTTP edge.
func (e *ApplicationError) HTTPStatus() int { return http.StatusUnprocessableEntity }

func (e *ApplicationError) PublicMessage() string { return e.Error() }

// OutcomeStatus describes how a mutation resolved.
type OutcomeStatus int

const (
	OutcomeConfirmed OutcomeStatus = iota
	OutcomeRolledBack
	OutcomeDiscarded
	OutcomeNotFound
	// OutcomeRollbackMissed means the call failed and the patched record vanished before
	// it could be restored.
	OutcomeRollbackMissed
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeRolledBack:
		return "rolled_back"
	case OutcomeDiscarded:
		return "discarded"
	case OutcomeRollbackMissed:
		return "rollback_missed"
	default:
		return "not_found"
	}
}

// Outcome is the resolution of one pending mutation.
type Outcome struct {
	MutationID string
	Status     OutcomeStatus
	Response   any
	Err        error
}

// Call performs the network request of a mutation and returns the decoded body.
type Call func(ctx context.Context) (any, error)

// Mutation describes one optimistic patch.
type Mutation struct {
	EntityID string
	Patch    map[string]any
	Call     Call
	// Refetch reloads the collection after a confirmed mutation. Nil keeps the optimistic value.
	Refetch func(ctx context.Context) error
	// SuccessMessage, when set, is sent as a success notification on confirmation.
	SuccessMessage string
	// Alive reports whether the owning screen is still mounted. Nil means always alive.
	Alive func() bool
}

// Removal describes a delete confirmed by the server before touching local state.
type Removal struct {
	EntityID       string
	Call           Call
	Refetch        func(ctx context.Context) error
	SuccessMessage string
	Alive          func() bool
}

// MessageFunc turns a failure into the text shown to the user.
type MessageFunc func(err error) string

// Coordinator runs the capture/apply/call/confirm-or-rollback protocol.
type Coordinator struct {
	notifier Notifier
	message  MessageFunc
	logger   *slog.Logger
}

// NewCoordinator builds a coordinator reporting failures to notifier. message may be nil.
func NewCoordinator(notifier Notifier, message MessageFunc) *Coordinator {
	if message == nil {
		message = defaultMessage
	}
	return &Coordinator{notifier: notifier, message: message, logger: slog.Default()}
}

// WithLogger returns a copy of the coordinator logging through logger.
func (c *Coordinator) WithLogger(logger *slog.Logger) *Coordinator {
	cloned := *c
	if logger != nil {
		cloned.logger = logger
	}
	return &cloned
}

// Apply patches the collection immediately, performs the call and reverts the touched
// fields if the call fails at the transport or application level.
func (c *Coordinator) Apply(ctx context.Context, collection *Collection, m Mutation) Outcome {
	outcome := Outcome{MutationID: uuid.NewString()}
	log := c.logger.With(slog.String("mutationId", outcome.MutationID), slog.String("entityId", m.EntityID))

	if m.Call == nil {
		outcome.Status = OutcomeNotFound
		outcome.Err = ErrMissingCall
		return outcome
	}

	rollback, found := collection.Patch(m.EntityID, m.Patch)
	if !found {
		log.Warn("optimistic patch target missing")
		outcome.Status = OutcomeNotFound
		outcome.Err = fmt.Errorf("%w: %s", ErrEntityNotFound, m.EntityID)
		c.notify(ctx, SeverityError, c.message(outcome.Err))
		return outcome
	}
	log.Debug("optimistic patch applied", slog.Any("fields", rollback.Fields()))

	response, err := c.invoke(ctx, m.Call)
	outcome.Response = response

	if !isAlive(m.Alive) {
		log.Info("optimistic result discarded after unmount")
		outcome.Status = OutcomeDiscarded
		outcome.Err = err
		return outcome
	}

	if err != nil {
		outcome.Err = err
		if collection.Restore(rollback) {
			outcome.Status = OutcomeRolledBack
			log.Warn("optimistic patch rolled back", slog.Any("error", err))
		} else {
			outcome.Status = OutcomeRollbackMissed
			log.Error("optimistic rollback target missing", slog.Any("fields", rollback.Fields()), slog.Any("error", err))
		}
		c.notify(ctx, SeverityError, c.message(err))
		return outcome
	}

	outcome.Status = OutcomeConfirmed
	log.Debug("optimistic patch confirmed")
	c.confirm(ctx, log, m.Refetch, m.SuccessMessage, m.Alive)
	return outcome
}

// Delete performs the call first and removes the record only after confirmed success.
func (c *Coordinator) Delete(ctx context.Context, collection *Collection, r Removal) Outcome {
	outcome := Outcome{MutationID: uuid.NewString()}
	log := c.logger.With(slog.String("mutationId", outcome.MutationID), slog.String("entityId", r.EntityID))

	if r.Call == nil {
		outcome.Status = OutcomeNotFound
		outcome.Err = ErrMissingCall
		return outcome
	}
	if _, ok := collection.Find(r.EntityID); !ok {
		outcome.Status = OutcomeNotFound
		outcome.Err = fmt.Errorf("%w: %s", ErrEntityNotFound, r.EntityID)
		c.notify(ctx, SeverityError, c.message(outcome.Err))
		return outcome
	}

	response, err := c.invoke(ctx, r.Call)
	outcome.Response = response

	if !isAlive(r.Alive) {
		outcome.Status = OutcomeDiscarded
		outcome.Err = err
		return outcome
	}

	if err != nil {
		outcome.Status = OutcomeRolledBack
		outcome.Err = err
		log.Warn("delete rejected", slog.Any("error", err))
		c.notify(ctx, SeverityError, c.message(err))
		return outcome
	}

	collection.Remove(r.EntityID)
	outcome.Status = OutcomeConfirmed
	log.Debug("delete confirmed")
	c.confirm(ctx, log, r.Refetch, r.SuccessMessage, r.Alive)
	return outcome
}

// invoke runs call and converts an envelope declaring failure into an ApplicationError.
func (c *Coordinator) invoke(ctx context.Context, call Call) (any, error) {
	response, err := call(ctx)
	if err != nil {
		return response, err
	}
	if shape := normalization.DetectShape(response); shape.Failed() {
		return response, &ApplicationError{Message: shape.Message}
	}
	return response, nil
}

func (c *Coordinator) confirm(ctx context.Context, log *slog.Logger, refetch func(context.Context) error, successMessage string, alive func() bool) {
	if refetch != nil {
		if err := refetch(ctx); err != nil {
			log.Warn("post-mutation refetch failed", slog.Any("error", err))
			if isAlive(alive) {
				c.notify(ctx, SeverityWarning, "Saved, but the list could not be refreshed: "+c.message(err))
			}
			return
		}
	}
	if msg := strings.TrimSpace(successMessage); msg != "" && isAlive(alive) {
		c.notify(ctx, SeveritySuccess, msg)
	}
}

func (c *Coordinator) notify(ctx context.Context, severity Severity, message string) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(ctx, severity, message)
}

func isAlive(alive func() bool) bool {
	return alive == nil || alive()
}

func defaultMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr *ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	if errors.Is(err, ErrEntityNotFound) {
		return "This item is no longer available."
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "The server took too long to respond."
	}
	return "Something went wrong. Please try again."
}
