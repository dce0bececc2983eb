package transport

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"tripDeskWs/internal/modules/screens/application/usecase"
	"tripDeskWs/internal/modules/screens/domain"
	"tripDeskWs/internal/modules/screens/infrastructure"
	"tripDeskWs/internal/shared/auth"
	"tripDeskWs/internal/shared/httputil"
)

type screenSummary struct {
	Name     string              `json:"name"`
	Entity   string              `json:"entity"`
	Title    string              `json:"title"`
	Audience domain.Audience     `json:"audience"`
	Actions  []domain.ActionSpec `json:"actions"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Status    int    `json:"status"`
	LoginPath string `json:"loginPath,omitempty"`
}

// NewScreensHandler lists the catalog.
func NewScreensHandler(catalog *domain.Catalog) echo.HandlerFunc {
	return func(c echo.Context) error {
		screens := catalog.All()
		out := make([]screenSummary, 0, len(screens))
		for _, s := range screens {
			out = append(out, screenSummary{Name: s.Name, Entity: s.Entity, Title: s.Title, Audience: s.Audience, Actions: s.Actions})
		}
		return c.JSON(http.StatusOK, map[string]any{"screens": out})
	}
}

// NewScreenRecordsHandler serves one normalized page of a screen without opening a session.
func NewScreenRecordsHandler(openUC *usecase.OpenScreenUseCase, mapper *httputil.ErrorMapper) echo.HandlerFunc {
	if mapper == nil {
		mapper = usecase.NewErrorMapper()
	}
	return func(c echo.Context) error {
		screenName := strings.TrimSpace(c.Param("screen"))
		token := auth.ExtractToken(c.Request(), "token")
		query := domain.QueryFromValues(c.QueryParams())

		page, err := openUC.FetchRecords(c.Request().Context(), screenName, token, query)
		if err != nil {
			info := mapper.Map(err)
			slog.Warn("records handler failed", slog.String("screen", screenName), slog.Int("status", info.Status), slog.Any("error", err))
			body := errorResponse{Error: info.Message, Status: info.Status}
			if info.Status == http.StatusUnauthorized {
				body.LoginPath = openUC.LoginPath()
			}
			return c.JSON(info.Status, body)
		}
		return c.JSON(http.StatusOK, page)
	}
}

// NewHealthHandler reports liveness with the number of connected clients and open screens.
func NewHealthHandler(hub *infrastructure.Hub, sessions *usecase.SessionRegistry) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":   "ok",
			"clients":  hub.ClientCount(),
			"sessions": sessions.Len(),
		})
	}
}

// RouteDeps groups what RegisterRoutes wires.
type RouteDeps struct {
	Hub       *infrastructure.Hub
	OpenUC    *usecase.OpenScreenUseCase
	Websocket WebsocketOptions
}

func RegisterRoutes(e *echo.Echo, deps RouteDeps) {
	mapper := deps.Websocket.Mapper
	if mapper == nil {
		mapper = usecase.NewErrorMapper()
		deps.Websocket.Mapper = mapper
	}
	e.GET("/healthz", NewHealthHandler(deps.Hub, deps.OpenUC.Sessions))
	e.GET("/api/screens", NewScreensHandler(deps.OpenUC.Catalog))
	e.GET("/api/screens/:screen/records", NewScreenRecordsHandler(deps.OpenUC, mapper))
	e.GET("/ws/screens/:screen", NewWebsocketHandler(deps.Hub, deps.OpenUC, deps.Websocket))
}
