package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tripDeskWs/internal/modules/screens/domain"
	"tripDeskWs/internal/shared/optimistic"
)

func drain(t *testing.T, c *Client) []domain.Message {
	t.Helper()
	var out []domain.Message
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return out
			}
			var msg domain.Message
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("decode queued message: %v", err)
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestHub_BroadcastHonoursTopicsAndTargets(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	alice := NewClient(hub, nil, ClientInfo{UserID: "alice", SessionID: "s-1", Screen: "admin-hotels"}, 4, 0)
	bob := NewClient(hub, nil, ClientInfo{UserID: "bob", SessionID: "s-2", Screen: "hotels"}, 4, 0)
	hub.AttachClient(alice, []string{"hotels.updated", " "})
	hub.AttachClient(bob, []string{"hotels.updated", "hotels.deleted"})

	if hub.ClientCount() != 2 {
		t.Fatalf("expected 2 clients, got %d", hub.ClientCount())
	}

	hub.Broadcast(context.Background(), &domain.Message{Topic: "hotels.updated", Entity: "hotels", Action: "updated"})
	hub.Broadcast(context.Background(), &domain.Message{Topic: "hotels.deleted", Entity: "hotels", Action: "deleted"})
	hub.Broadcast(context.Background(), &domain.Message{Topic: "hotels.updated", Metadata: domain.Metadata{"userId": "bob"}})
	hub.Broadcast(context.Background(), &domain.Message{Topic: "hotels.updated", Metadata: domain.Metadata{"screen": "ADMIN-HOTELS"}})

	if got := drain(t, alice); len(got) != 2 {
		t.Fatalf("alice expected 2 messages, got %+v", got)
	}
	if got := drain(t, bob); len(got) != 3 {
		t.Fatalf("bob expected 3 messages, got %+v", got)
	}
}

func TestHub_DetachRunsHooksOnceAndUnsubscribes(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	c := NewClient(hub, nil, ClientInfo{UserID: "u"}, 2, 0)
	hub.AttachClient(c, []string{"flights.created"})

	calls := 0
	c.AddCloseHook(func(cl *Client) {
		calls++
		// hooks may close the client again
		cl.Close()
	})

	c.Close()
	c.Close()

	if calls != 1 {
		t.Fatalf("close hook expected once, got %d", calls)
	}
	if !c.Closed() || hub.ClientCount() != 0 {
		t.Fatalf("client must be closed and detached")
	}
	hub.Broadcast(context.Background(), &domain.Message{Topic: "flights.created"})
	c.Publish(context.Background(), &domain.Message{Topic: "system.pong"})
	if got := drain(t, c); len(got) != 0 {
		t.Fatalf("closed client must not receive messages, got %+v", got)
	}
}

func TestClient_FullBufferDetaches(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	c := NewClient(hub, nil, ClientInfo{UserID: "slow"}, 1, 0)
	done := make(chan struct{})
	c.AddCloseHook(func(*Client) { close(done) })
	hub.AttachClient(c, nil)

	c.SendDomainMessage(&domain.Message{Topic: "a"})
	c.SendDomainMessage(&domain.Message{Topic: "b"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("slow client was not detached")
	}
}

func TestCommandProcessor_BuiltinsAndAsync(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	c := NewClient(hub, nil, ClientInfo{UserID: "u", AllowedTopics: []string{"hotels.updated"}}, 8, time.Second)
	hub.AttachClient(c, nil)

	var deadline time.Time
	c.Commands().RegisterAsync("Load", func(ctx context.Context, client *Client, cmd Command) {
		deadline, _ = ctx.Deadline()
		client.SendDomainMessage(&domain.Message{Topic: "loaded", Data: string(cmd.Payload)})
	})

	c.processCommand(Command{Action: "ping"})
	c.processCommand(Command{Action: "subscribe", Topic: "hotels.updated"})
	c.processCommand(Command{Action: "subscribe", Topic: "bookings.created"})
	c.processCommand(Command{Action: " LOAD ", Payload: json.RawMessage(`{"page":2}`)})
	c.processCommand(Command{Action: "dance"})
	c.processCommand(Command{Action: ""})
	c.Commands().Wait()

	hub.Broadcast(context.Background(), &domain.Message{Topic: "hotels.updated"})

	msgs := drain(t, c)
	topics := make([]string, 0, len(msgs))
	for _, m := range msgs {
		topics = append(topics, m.Topic)
	}
	joined := strings.Join(topics, ",")
	for _, want := range []string{domain.TopicSystemPong, domain.TopicSystemError, "loaded", "hotels.updated"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %s in %s", want, joined)
		}
	}
	if strings.Count(joined, domain.TopicSystemError) != 2 {
		t.Fatalf("expected one error for the disallowed topic and one for the unknown command, got %s", joined)
	}
	if deadline.IsZero() {
		t.Fatalf("async command must run under a deadline")
	}

	c.processCommand(Command{Action: "unsubscribe", Topic: "hotels.updated"})
	hub.Broadcast(context.Background(), &domain.Message{Topic: "hotels.updated"})
	if got := drain(t, c); len(got) != 0 {
		t.Fatalf("unsubscribed client received %+v", got)
	}
}

func TestClientNotifier_PublishesNotification(t *testing.T) {
	t.Parallel()

	c := NewClient(nil, nil, ClientInfo{}, 4, 0)
	n := NewClientNotifier(c, "my-bookings")
	n.Notify(context.Background(), optimistic.SeveritySuccess, "Booking cancelled")
	n.Notify(context.Background(), optimistic.SeverityInfo, "  ")

	msgs := drain(t, c)
	if len(msgs) != 1 {
		t.Fatalf("expected one notification, got %+v", msgs)
	}
	msg := msgs[0]
	if msg.Topic != domain.TopicSystemNotification || msg.Metadata["screen"] != "my-bookings" || msg.Metadata["severity"] != "success" {
		t.Fatalf("unexpected notification %+v", msg)
	}
	data, _ := msg.Data.(map[string]any)
	if data["message"] != "Booking cancelled" {
		t.Fatalf("unexpected body %+v", msg.Data)
	}
}

type stubHandler struct {
	topic string
	seen  int
	err   error
}

func (s *stubHandler) Topic() string { return s.topic }

func (s *stubHandler) Handle(context.Context, *domain.Message) error {
	s.seen++
	return s.err
}

func TestHandlerRegistry_Dispatch(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	first := &stubHandler{topic: "travel.bookings"}
	second := &stubHandler{topic: "travel.bookings", err: boom}
	registry := NewHandlerRegistry()
	registry.Register(first)
	registry.Register(second)
	registry.Register(&stubHandler{topic: " "})

	if err := registry.Dispatch(context.Background(), &domain.Message{Topic: "travel.bookings"}); !errors.Is(err, boom) {
		t.Fatalf("expected joined handler error, got %v", err)
	}
	if err := registry.Dispatch(context.Background(), &domain.Message{Topic: "other"}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if first.seen != 1 || second.seen != 1 {
		t.Fatalf("every handler must run, got %d and %d", first.seen, second.seen)
	}
	if topics := registry.Topics(); len(topics) != 1 || topics[0] != "travel.bookings" {
		t.Fatalf("unexpected topics %v", topics)
	}
}

func TestClient_PumpsOverRealConnection(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	upgrader := websocket.Upgrader{}
	attached := make(chan *Client, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		c := NewClient(hub, conn, ClientInfo{UserID: "u", Screen: "flights"}, 8, time.Second)
		hub.AttachClient(c, []string{"flights.created"})
		go c.WritePump()
		go c.ReadPump()
		attached <- c
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	client := <-attached

	if err := conn.WriteJSON(Command{Action: "ping"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var pong domain.Message
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if pong.Topic != domain.TopicSystemPong {
		t.Fatalf("expected pong, got %+v", pong)
	}

	client.Close()
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close, got %v", err)
	}
}
