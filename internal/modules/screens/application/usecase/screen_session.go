package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"tripDeskWs/internal/modules/screens/application/port"
	"tripDeskWs/internal/modules/screens/domain"
	"tripDeskWs/internal/shared/auth"
	"tripDeskWs/internal/shared/normalization"
	"tripDeskWs/internal/shared/optimistic"
)

// ScreenSession is one mounted screen: the records it shows, the user session it acts
// for and the client it publishes to. It lives until Close.
type ScreenSession struct {
	id          string
	screen      domain.Screen
	session     *auth.Session
	api         port.APIClient
	publisher   port.Publisher
	notifier    optimistic.Notifier
	messages    optimistic.MessageFunc
	coordinator *optimistic.Coordinator
	collection  *optimistic.Collection
	registry    *SessionRegistry
	placeholder string
	logger      *slog.Logger
	now         func() time.Time

	mu    sync.Mutex
	query domain.PagedQuery
	page  normalization.Page

	alive   atomic.Bool
	closed  atomic.Bool
	hookMu  sync.Mutex
	onClose []func()
}

type screenSessionDeps struct {
	screen      domain.Screen
	session     *auth.Session
	api         port.APIClient
	publisher   port.Publisher
	notifier    optimistic.Notifier
	messages    optimistic.MessageFunc
	registry    *SessionRegistry
	placeholder string
	logger      *slog.Logger
	now         func() time.Time
}

func newScreenSession(deps screenSessionDeps) *ScreenSession {
	if deps.logger == nil {
		deps.logger = slog.Default()
	}
	if deps.now == nil {
		deps.now = time.Now
	}
	if deps.publisher == nil {
		deps.publisher = port.PublisherFunc(nil)
	}
	if deps.messages == nil {
		deps.messages = NewErrorMapper().Message
	}
	id := uuid.NewString()
	logger := deps.logger.With(slog.String("screen", deps.screen.Name), slog.String("sessionId", id))

	s := &ScreenSession{
		id:          id,
		screen:      deps.screen,
		session:     deps.session,
		api:         deps.api,
		publisher:   deps.publisher,
		notifier:    deps.notifier,
		messages:    deps.messages,
		collection:  optimistic.NewCollection(deps.screen.IDKeys...),
		registry:    deps.registry,
		placeholder: deps.placeholder,
		logger:      logger,
		now:         deps.now,
		query:       domain.PagedQuery{}.Normalize(),
	}
	s.coordinator = optimistic.NewCoordinator(deps.notifier, deps.messages).WithLogger(logger)
	s.collection.OnChange(s.publishChange)
	s.alive.Store(true)
	deps.session.OnUnauthorized(s.escalate)
	return s
}

func (s *ScreenSession) ID() string { return s.id }

func (s *ScreenSession) Screen() domain.Screen { return s.screen }

func (s *ScreenSession) Session() *auth.Session { return s.session }

// Alive reports whether the screen is still mounted.
func (s *ScreenSession) Alive() bool { return s.alive.Load() }

// Records returns the records currently shown.
func (s *ScreenSession) Records() []normalization.Record { return s.collection.Snapshot() }

// Page returns the paging totals of the last successful load.
func (s *ScreenSession) Page() normalization.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Query returns the query of the last load.
func (s *ScreenSession) Query() domain.PagedQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// OnClose registers fn to run once when the session closes.
func (s *ScreenSession) OnClose(fn func()) {
	if fn == nil {
		return
	}
	s.hookMu.Lock()
	s.onClose = append(s.onClose, fn)
	s.hookMu.Unlock()
}

// Load fetches the screen's list with query and replaces the shown records. Failures are
// reported to the user and leave the current records in place.
func (s *ScreenSession) Load(ctx context.Context, query domain.PagedQuery) error {
	return s.load(ctx, query.Normalize(), true)
}

// Refresh repeats the last load.
func (s *ScreenSession) Refresh(ctx context.Context) error {
	return s.load(ctx, s.Query(), true)
}

func (s *ScreenSession) refetch(ctx context.Context) error {
	return s.load(ctx, s.Query(), false)
}

func (s *ScreenSession) load(ctx context.Context, query domain.PagedQuery, notify bool) error {
	if !s.Alive() {
		return ErrSessionClosed
	}
	started := s.now()
	raw, err := s.api.Get(ctx, s.session, s.screen.ListPath, query.ToURLValues(s.screen.Paginated))
	if !s.Alive() {
		s.logger.Debug("screen load discarded after close")
		return ErrSessionClosed
	}
	if err == nil {
		if shape := normalization.DetectShape(raw); shape.Failed() {
			err = &optimistic.ApplicationError{Message: shape.Message}
		}
	}
	if err != nil {
		s.logger.Warn("screen load failed", slog.Any("error", err))
		if notify {
			s.notifyFailure(ctx, err)
		}
		return fmt.Errorf("load %s: %w", s.screen.Name, err)
	}

	page := normalization.NormalizePage(raw, normalization.WithObjectPolicy(s.screen.ObjectPolicy))
	records := page.Records
	if s.screen.DecoratesImages() {
		records = domain.DecorateImages(records, s.screen.ImageKeys, s.placeholder)
	}

	s.mu.Lock()
	s.query = query
	page.Records = nil
	s.page = page
	s.mu.Unlock()

	s.collection.Replace(records)
	s.logger.Info("screen loaded",
		slog.Int("records", len(records)),
		slog.Int("totalCount", page.TotalCount),
		slog.Bool("paged", page.Paged),
		slog.Duration("elapsed", s.now().Sub(started)))
	return nil
}

// Execute runs a user action on one record. Patch actions update the record before the
// API answers and roll back on failure; remove actions wait for the API.
func (s *ScreenSession) Execute(ctx context.Context, cmd domain.ActionCommand) (optimistic.Outcome, error) {
	if !s.Alive() {
		return optimistic.Outcome{}, ErrSessionClosed
	}
	if !cmd.Valid() {
		return optimistic.Outcome{}, ErrInvalidCommand
	}
	spec, ok := s.screen.Action(cmd.Name)
	if !ok {
		return optimistic.Outcome{}, fmt.Errorf("%w: %s", ErrUnknownAction, cmd.Name)
	}

	id := strings.TrimSpace(cmd.ID)
	path := spec.Path(id)
	var refetch func(context.Context) error
	if spec.Refetch {
		refetch = s.refetch
	}

	var outcome optimistic.Outcome
	switch spec.Kind {
	case domain.ActionRemove:
		outcome = s.coordinator.Delete(ctx, s.collection, optimistic.Removal{
			EntityID: id,
			Call: func(ctx context.Context) (any, error) {
				return s.api.Send(ctx, s.session, spec.Method, path, nil)
			},
			Refetch:        refetch,
			SuccessMessage: spec.SuccessMessage,
			Alive:          s.Alive,
		})
	default:
		patch := spec.PatchWith(cmd.Fields, s.collection.IDKeys()...)
		if len(patch) == 0 {
			return optimistic.Outcome{}, ErrEmptyPatch
		}
		outcome = s.coordinator.Apply(ctx, s.collection, optimistic.Mutation{
			EntityID: id,
			Patch:    patch,
			Call: func(ctx context.Context) (any, error) {
				return s.api.Send(ctx, s.session, spec.Method, path, patch)
			},
			Refetch:        refetch,
			SuccessMessage: spec.SuccessMessage,
			Alive:          s.Alive,
		})
	}

	s.logger.Info("screen action resolved",
		slog.String("action", spec.Name),
		slog.String("entityId", id),
		slog.String("mutationId", outcome.MutationID),
		slog.String("status", outcome.Status.String()),
		slog.Any("error", outcome.Err))
	return outcome, nil
}

// Close unmounts the screen: in-flight results are discarded from now on.
func (s *ScreenSession) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.alive.Store(false)
	if s.registry != nil {
		s.registry.Unregister(s)
	}

	s.hookMu.Lock()
	hooks := append([]func(){}, s.onClose...)
	s.onClose = nil
	s.hookMu.Unlock()
	for _, hook := range hooks {
		hook()
	}
	s.logger.Info("screen closed")
}

// escalate runs when the API rejects the session token: the client is told where to sign
// in again and the screen closes.
func (s *ScreenSession) escalate() {
	if !s.Alive() {
		return
	}
	s.logger.Warn("screen session unauthorized")
	s.publisher.Publish(context.Background(), domain.SystemMessage(
		domain.ActionUnauthorized,
		map[string]any{"loginPath": s.session.LoginPath(), "screen": s.screen.Name},
		domain.Metadata{"screen": s.screen.Name, "sessionId": s.id},
		s.now(),
	))
	s.Close()
}

func (s *ScreenSession) notifyFailure(ctx context.Context, err error) {
	if s.notifier == nil || !s.Alive() {
		return
	}
	s.notifier.Notify(ctx, optimistic.SeverityError, s.messages(err))
}

// publishChange pushes every committed collection change to the client. Reloads go out on
// the snapshot topic, optimistic changes on the patched topic.
func (s *ScreenSession) publishChange(change optimistic.Change) {
	if !s.Alive() {
		return
	}

	s.mu.Lock()
	if change.Kind == optimistic.ChangeRemove && s.page.TotalCount > 0 {
		s.page.TotalCount--
	}
	page := s.page
	query := s.query
	s.mu.Unlock()

	topic := domain.PatchedTopic(s.screen.Name)
	action := domain.ActionPatched
	if change.Kind == optimistic.ChangeReplace {
		topic = domain.SnapshotTopic(s.screen.Name)
		action = domain.ActionSnapshot
	}

	metadata := query.Metadata()
	metadata["screen"] = s.screen.Name
	metadata["sessionId"] = s.id
	metadata["change"] = string(change.Kind)
	metadata["version"] = strconv.FormatUint(change.Version, 10)

	s.publisher.Publish(context.Background(), &domain.Message{
		Topic:      topic,
		Entity:     s.screen.Entity,
		Action:     action,
		ResourceID: change.EntityID,
		Metadata:   metadata,
		Data: domain.Snapshot{
			Records:    change.Records,
			TotalCount: page.TotalCount,
			PageNumber: page.PageNumber,
			TotalPages: page.TotalPages,
			PageSize:   page.PageSize,
			Version:    change.Version,
		},
		Timestamp: s.now().UTC(),
	})
}
