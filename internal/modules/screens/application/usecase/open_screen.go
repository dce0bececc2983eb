package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tripDeskWs/internal/modules/screens/application/port"
	"tripDeskWs/internal/modules/screens/domain"
	"tripDeskWs/internal/shared/auth"
	"tripDeskWs/internal/shared/normalization"
	"tripDeskWs/internal/shared/optimistic"
)

type OpenScreenInput struct {
	Screen    string
	Token     string
	Publisher port.Publisher
	Notifier  optimistic.Notifier
}

// ScreenOptions are the process-wide settings shared by every screen session.
type ScreenOptions struct {
	PlaceholderURL string
	LoginPath      string
	Logger         *slog.Logger
	Now            func() time.Time
}

type OpenScreenUseCase struct {
	Validator auth.TokenValidator
	Catalog   *domain.Catalog
	API       port.APIClient
	Sessions  *SessionRegistry
	options   ScreenOptions
	messages  optimistic.MessageFunc
}

func NewOpenScreenUseCase(validator auth.TokenValidator, catalog *domain.Catalog, api port.APIClient, sessions *SessionRegistry, options ScreenOptions) *OpenScreenUseCase {
	if catalog == nil {
		catalog = domain.DefaultCatalog()
	}
	if sessions == nil {
		sessions = NewSessionRegistry()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	return &OpenScreenUseCase{
		Validator: validator,
		Catalog:   catalog,
		API:       api,
		Sessions:  sessions,
		options:   options,
		messages:  NewErrorMapper().Message,
	}
}

// Authorize resolves the screen and checks the token grants access to it.
func (uc *OpenScreenUseCase) Authorize(screenName, token string) (domain.Screen, *auth.Session, error) {
	screen, ok := uc.Catalog.Lookup(screenName)
	if !ok {
		return domain.Screen{}, nil, fmt.Errorf("%w: %s", ErrUnknownScreen, strings.TrimSpace(screenName))
	}
	if strings.TrimSpace(token) == "" {
		return domain.Screen{}, nil, auth.ErrMissingToken
	}

	claims, err := uc.Validator.Validate(token)
	if err != nil {
		slog.Warn("open-screen token validation failed", slog.String("screen", screen.Name), slog.Any("error", err))
		return domain.Screen{}, nil, err
	}
	role := screen.RequiredRole()
	if role != "" && !verifiesSignatures(uc.Validator) {
		slog.Warn("open-screen role claim unverified", slog.String("screen", screen.Name), slog.String("subject", claims.Subject))
		return domain.Screen{}, nil, fmt.Errorf("%w: %s requires %s", auth.ErrUnverifiedRole, screen.Name, role)
	}
	if !claims.HasRole(role) {
		slog.Warn("open-screen role rejected", slog.String("screen", screen.Name), slog.String("subject", claims.Subject), slog.Any("roles", claims.AllRoles()))
		return domain.Screen{}, nil, fmt.Errorf("%w: %s requires %s", auth.ErrForbiddenRole, screen.Name, role)
	}

	return screen, auth.NewSession(token, claims, uc.options.LoginPath), nil
}

// verifiesSignatures reports false only for validators that declare they skip signature checks.
func verifiesSignatures(validator auth.TokenValidator) bool {
	checker, ok := validator.(interface{ Verifies() bool })
	return !ok || checker.Verifies()
}

// Execute opens a live screen session. The caller loads it and closes it on disconnect.
func (uc *OpenScreenUseCase) Execute(ctx context.Context, input OpenScreenInput) (*ScreenSession, error) {
	screen, session, err := uc.Authorize(input.Screen, input.Token)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	notifier := input.Notifier
	if notifier == nil {
		notifier = optimistic.LogNotifier{Logger: uc.options.Logger}
	}

	s := newScreenSession(screenSessionDeps{
		screen:      screen,
		session:     session,
		api:         uc.API,
		publisher:   input.Publisher,
		notifier:    notifier,
		messages:    uc.messages,
		registry:    uc.Sessions,
		placeholder: uc.options.PlaceholderURL,
		logger:      uc.options.Logger,
		now:         uc.options.Now,
	})
	uc.Sessions.Register(s)

	claims := session.Claims()
	slog.Info("open-screen session registered",
		slog.String("screen", screen.Name),
		slog.String("sessionId", s.ID()),
		slog.String("subject", claims.Subject),
		slog.Int("liveSessions", uc.Sessions.Len()))
	return s, nil
}

// FetchRecords performs a one-shot normalized fetch of a screen, without a live session.
func (uc *OpenScreenUseCase) FetchRecords(ctx context.Context, screenName, token string, query domain.PagedQuery) (normalization.Page, error) {
	screen, session, err := uc.Authorize(screenName, token)
	if err != nil {
		return normalization.Page{}, err
	}

	raw, err := uc.API.Get(ctx, session, screen.ListPath, query.ToURLValues(screen.Paginated))
	if err != nil {
		return normalization.Page{}, err
	}

	var rejected *optimistic.ApplicationError
	page := normalization.NormalizePage(raw,
		normalization.WithObjectPolicy(screen.ObjectPolicy),
		normalization.WithReporter(func(message string) {
			rejected = &optimistic.ApplicationError{Message: message}
		}),
	)
	if rejected != nil {
		return normalization.Page{}, rejected
	}
	if screen.DecoratesImages() {
		page.Records = domain.DecorateImages(page.Records, screen.ImageKeys, uc.options.PlaceholderURL)
	}
	return page, nil
}

// LoginPath is where clients go after the API rejected their token.
func (uc *OpenScreenUseCase) LoginPath() string {
	return uc.options.LoginPath
}
