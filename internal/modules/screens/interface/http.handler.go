package transport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"tripDeskWs/internal/modules/screens/application/usecase"
	"tripDeskWs/internal/modules/screens/domain"
	"tripDeskWs/internal/modules/screens/infrastructure"
	"tripDeskWs/internal/shared/auth"
	"tripDeskWs/internal/shared/httputil"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebsocketOptions tune the screen websocket endpoint.
type WebsocketOptions struct {
	SendBuffer     int
	CommandTimeout time.Duration
	// EventActions are the broker actions clients may subscribe to per entity.
	EventActions []string
	Mapper       *httputil.ErrorMapper
}

// clientRelay lets the session publish to a client that only exists after the upgrade.
type clientRelay struct {
	client atomic.Pointer[infrastructure.Client]
}

func (r *clientRelay) Publish(ctx context.Context, msg *domain.Message) {
	if c := r.client.Load(); c != nil {
		c.Publish(ctx, msg)
	}
}

// NewWebsocketHandler expone /ws/screens/:screen y valida el JWT localmente.
func NewWebsocketHandler(hub *infrastructure.Hub, openUC *usecase.OpenScreenUseCase, opts WebsocketOptions) echo.HandlerFunc {
	if opts.Mapper == nil {
		opts.Mapper = usecase.NewErrorMapper()
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 10 * time.Second
	}

	return func(c echo.Context) error {
		screenName := strings.TrimSpace(c.Param("screen"))
		token := auth.ExtractToken(c.Request(), "token")
		logger := c.Logger()
		requestID := c.Response().Header().Get(echo.HeaderXRequestID)
		peerIP := c.RealIP()

		relay := &clientRelay{}
		session, err := openUC.Execute(c.Request().Context(), usecase.OpenScreenInput{
			Screen:    screenName,
			Token:     token,
			Publisher: relay,
			Notifier:  infrastructure.NewClientNotifier(relay, screenName),
		})
		if err != nil {
			info := opts.Mapper.Map(err)
			slog.Warn("ws handler open screen failed", slog.String("screen", screenName), slog.Int("status", info.Status), slog.Int("tokenLen", len(token)), slog.Any("error", err))
			logger.Warnf("ws rejected screen=%s ip=%s reqID=%s: %v", screenName, peerIP, requestID, err)
			return echo.NewHTTPError(info.Status, info.Message)
		}

		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			session.Close()
			slog.Error("ws handler upgrade failed", slog.String("screen", screenName), slog.Any("error", err))
			logger.Errorf("ws upgrade failed screen=%s ip=%s reqID=%s: %v", screenName, peerIP, requestID, err)
			return err
		}

		screen := session.Screen()
		claims := session.Session().Claims()
		topics := buildTopics(screen.Entity, opts.EventActions)

		client := infrastructure.NewClient(hub, conn, infrastructure.ClientInfo{
			UserID:        claims.Subject,
			SessionID:     session.ID(),
			Screen:        screen.Name,
			AllowedTopics: topics,
		}, opts.SendBuffer, opts.CommandTimeout)
		registerScreenCommands(client, session, opts.Mapper)

		// Either side going away takes the other down.
		client.AddCloseHook(func(*infrastructure.Client) { session.Close() })
		session.OnClose(client.Close)
		relay.client.Store(client)

		hub.AttachClient(client, topics)
		go client.WritePump()
		go client.ReadPump()

		client.SendDomainMessage(domain.SystemMessage(domain.ActionConnected,
			map[string]any{
				"screen":        screen.Name,
				"entity":        screen.Entity,
				"title":         screen.Title,
				"audience":      screen.Audience,
				"actions":       screen.Actions,
				"allowedTopics": topics,
				"roles":         claims.AllRoles(),
				"loginPath":     openUC.LoginPath(),
			},
			domain.Metadata{"userId": claims.Subject, "sessionId": session.ID(), "screen": screen.Name},
			time.Now(),
		))

		query := domain.QueryFromValues(c.QueryParams())
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), opts.CommandTimeout)
			defer cancel()
			_ = session.Load(ctx, query)
		}()

		logger.Infof("ws connected screen=%s user=%s session=%s roles=%v ip=%s reqID=%s",
			screen.Name, claims.Subject, session.ID(), claims.AllRoles(), peerIP, requestID)
		return nil
	}
}
