package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripDeskWs/internal/modules/screens/application/port"
	"tripDeskWs/internal/modules/screens/application/usecase"
	"tripDeskWs/internal/modules/screens/domain"
	"tripDeskWs/internal/modules/screens/infrastructure"
	"tripDeskWs/internal/shared/auth"
)

const testSecret = "test-secret"

type fakeAPI struct {
	mu    sync.Mutex
	sends []string
	get   func(session *auth.Session, path string) (any, error)
}

func (f *fakeAPI) Get(_ context.Context, session *auth.Session, path string, _ url.Values) (any, error) {
	if f.get == nil {
		return []any{}, nil
	}
	return f.get(session, path)
}

func (f *fakeAPI) Send(_ context.Context, _ *auth.Session, method, path string, _ any) (any, error) {
	f.mu.Lock()
	f.sends = append(f.sends, method+" "+path)
	f.mu.Unlock()
	return map[string]any{"success": true}, nil
}

func signToken(t *testing.T, subject, role string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func usersEnvelope() any {
	return map[string]any{
		"Success": true,
		"Data": map[string]any{
			"Data": []any{
				map[string]any{"Id": "u-1", "Username": "ana", "IsBlocked": false},
				map[string]any{"Id": "u-2", "Username": "ben", "IsBlocked": true},
			},
			"TotalCount": float64(2),
			"PageNumber": float64(1),
			"TotalPages": float64(1),
		},
	}
}

func newTestEcho(api *fakeAPI) (*echo.Echo, *infrastructure.Hub, *usecase.OpenScreenUseCase) {
	hub := infrastructure.NewHub()
	openUC := usecase.NewOpenScreenUseCase(auth.NewJWTValidator(testSecret), domain.DefaultCatalog(), api, usecase.NewSessionRegistry(), usecase.ScreenOptions{
		LoginPath: "/auth/login",
	})
	e := echo.New()
	RegisterRoutes(e, RouteDeps{
		Hub:       hub,
		OpenUC:    openUC,
		Websocket: WebsocketOptions{SendBuffer: 16, CommandTimeout: 2 * time.Second},
	})
	return e, hub, openUC
}

func serve(e *echo.Echo, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestBuildTopics(t *testing.T) {
	t.Parallel()

	got := buildTopics("hotels", []string{"Created", "created", " ", "status_changed"})
	assert.Equal(t, []string{"hotels.created", "hotels.status_changed"}, got)
	assert.Equal(t, []string{"flights.created", "flights.updated", "flights.deleted"}, buildTopics("flights", nil))
	assert.Nil(t, buildTopics(" ", nil))
}

func TestScreensHandler(t *testing.T) {
	t.Parallel()

	e, _, _ := newTestEcho(&fakeAPI{})
	rec := serve(e, "/api/screens", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Screens []screenSummary `json:"screens"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	names := make([]string, 0, len(body.Screens))
	for _, s := range body.Screens {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "admin-users")
	assert.Contains(t, names, "my-bookings")
}

func TestScreenRecordsHandler(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{get: func(session *auth.Session, path string) (any, error) {
		if path == "/api/bookings/me" {
			session.Unauthorized()
			return nil, fmt.Errorf("%w: GET %s", port.ErrUnauthorized, path)
		}
		return usersEnvelope(), nil
	}}
	e, _, _ := newTestEcho(api)
	admin := signToken(t, "admin-1", "Admin")
	customer := signToken(t, "cust-1", "Customer")

	rec := serve(e, "/api/screens/admin-users/records?page=1&limit=10", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Records    []map[string]any `json:"records"`
		TotalCount int              `json:"totalCount"`
		Paged      bool             `json:"paged"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.Records, 2)
	assert.Equal(t, 2, page.TotalCount)
	assert.True(t, page.Paged)

	cases := []struct {
		name      string
		target    string
		token     string
		status    int
		loginPath string
	}{
		{name: "missing token", target: "/api/screens/admin-users/records", status: http.StatusUnauthorized, loginPath: "/auth/login"},
		{name: "customer on admin screen", target: "/api/screens/admin-users/records", token: customer, status: http.StatusForbidden},
		{name: "unknown screen", target: "/api/screens/nope/records", token: admin, status: http.StatusNotFound},
		{name: "upstream rejects token", target: "/api/screens/my-bookings/records", token: customer, status: http.StatusUnauthorized, loginPath: "/auth/login"},
	}
	for _, tc := range cases {
		rec := serve(e, tc.target, tc.token)
		assert.Equal(t, tc.status, rec.Code, tc.name)
		var body errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), tc.name)
		assert.NotEmpty(t, body.Error, tc.name)
		assert.Equal(t, tc.loginPath, body.LoginPath, tc.name)
	}
}

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	e, _, _ := newTestEcho(&fakeAPI{})
	rec := serve(e, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestWebsocketHandler_RejectsBeforeUpgrade(t *testing.T) {
	t.Parallel()

	e, hub, openUC := newTestEcho(&fakeAPI{})
	assert.Equal(t, http.StatusUnauthorized, serve(e, "/ws/screens/admin-users", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(e, "/ws/screens/admin-users", signToken(t, "c", "customer")).Code)
	assert.Equal(t, http.StatusNotFound, serve(e, "/ws/screens/unknown", signToken(t, "a", "admin")).Code)
	assert.Zero(t, hub.ClientCount())
	assert.Zero(t, openUC.Sessions.Len())
}

func dialScreen(t *testing.T, server *httptest.Server, screen, token string) *websocket.Conn {
	t.Helper()
	target := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/screens/" + screen + "?token=" + url.QueryEscape(token)
	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads messages until one arrives on topic and returns it.
func readUntil(t *testing.T, conn *websocket.Conn, topic string) domain.Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var seen []string
	for {
		var msg domain.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s, saw %v: %v", topic, seen, err)
		}
		if msg.Topic == topic {
			return msg
		}
		seen = append(seen, msg.Topic)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebsocketHandler_ScreenLifecycle(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{get: func(*auth.Session, string) (any, error) { return usersEnvelope(), nil }}
	e, hub, openUC := newTestEcho(api)
	server := httptest.NewServer(e)
	defer server.Close()

	conn := dialScreen(t, server, "admin-users", signToken(t, "admin-1", "admin"))

	connected := readUntil(t, conn, domain.TopicSystemConnected)
	assert.Equal(t, "admin-1", connected.Metadata["userId"])

	snapshot := readUntil(t, conn, "admin-users.snapshot")
	data := snapshot.Data.(map[string]any)
	assert.Len(t, data["records"], 2)

	require.NoError(t, conn.WriteJSON(infrastructure.Command{
		Action:  "action",
		Payload: json.RawMessage(`{"name":"block","id":"u-1"}`),
	}))
	patched := readUntil(t, conn, "admin-users.patched")
	assert.Equal(t, "u-1", patched.ResourceID)

	ack := readUntil(t, conn, "admin-users.action")
	assert.Equal(t, "confirmed", ack.Data.(map[string]any)["status"])

	require.NoError(t, conn.WriteJSON(infrastructure.Command{
		Action:  "action",
		Payload: json.RawMessage(`{"name":"teleport","id":"u-1"}`),
	}))
	rejected := readUntil(t, conn, domain.TopicSystemError)
	assert.Equal(t, "action", rejected.Metadata["action"])

	api.mu.Lock()
	assert.Equal(t, []string{"PUT /api/admin/users/u-1/block"}, api.sends)
	api.mu.Unlock()

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	waitFor(t, func() bool { return hub.ClientCount() == 0 && openUC.Sessions.Len() == 0 })
}

func TestWebsocketHandler_UnauthorizedClosesScreen(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{get: func(session *auth.Session, path string) (any, error) {
		session.Unauthorized()
		return nil, fmt.Errorf("%w: GET %s", port.ErrUnauthorized, path)
	}}
	e, hub, openUC := newTestEcho(api)
	server := httptest.NewServer(e)
	defer server.Close()

	conn := dialScreen(t, server, "my-bookings", signToken(t, "cust-1", "customer"))
	msg := readUntil(t, conn, domain.TopicSystemUnauthorized)
	assert.Equal(t, "/auth/login", msg.Data.(map[string]any)["loginPath"])

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "expected normal close, got %v", err)
	waitFor(t, func() bool { return hub.ClientCount() == 0 && openUC.Sessions.Len() == 0 })
}
