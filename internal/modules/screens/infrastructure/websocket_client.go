package infrastructure

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tripDeskWs/internal/modules/screens/application/port"
	"tripDeskWs/internal/modules/screens/domain"
)

const (
	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
	writeWait      = 5 * time.Second
	maxCommandSize = 1 << 16
)

// ClientInfo identifies the user and screen behind a websocket connection.
type ClientInfo struct {
	UserID    string
	SessionID string
	Screen    string
	// AllowedTopics restricts subscribe commands. Empty allows any topic.
	AllowedTopics []string
}

type Client struct {
	id         string
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	userID     string
	sessionID  string
	screen     string
	allowed    map[string]struct{}
	commands   *CommandProcessor
	subscribed map[string]struct{}

	sendMu     sync.RWMutex
	closed     atomic.Bool
	hookMu     sync.Mutex
	closeHooks []func(*Client)
}

// NewClient crea el cliente WebSocket de una pantalla con buffer configurable.
func NewClient(hub *Hub, conn *websocket.Conn, info ClientInfo, buf int, commandTimeout time.Duration) *Client {
	if buf <= 0 {
		buf = 8
	}
	allowed := make(map[string]struct{}, len(info.AllowedTopics))
	for _, topic := range info.AllowedTopics {
		if trimmed := strings.TrimSpace(topic); trimmed != "" {
			allowed[trimmed] = struct{}{}
		}
	}
	client := &Client{
		id:         uuid.NewString(),
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, buf),
		userID:     strings.TrimSpace(info.UserID),
		sessionID:  strings.TrimSpace(info.SessionID),
		screen:     strings.TrimSpace(info.Screen),
		allowed:    allowed,
		subscribed: make(map[string]struct{}),
	}
	client.commands = NewCommandProcessor(hub, commandTimeout)
	return client
}

func (c *Client) ID() string { return c.id }

func (c *Client) UserID() string { return c.userID }

func (c *Client) Screen() string { return c.screen }

// Commands exposes the processor so callers can register screen commands before ReadPump starts.
func (c *Client) Commands() *CommandProcessor { return c.commands }

func (c *Client) Closed() bool { return c.closed.Load() }

func (c *Client) allows(topic string) bool {
	if len(c.allowed) == 0 {
		return true
	}
	_, ok := c.allowed[topic]
	return ok
}

// AddCloseHook registers a callback that will be executed once when the client closes.
func (c *Client) AddCloseHook(fn func(*Client)) {
	if fn == nil {
		return
	}
	c.hookMu.Lock()
	c.closeHooks = append(c.closeHooks, fn)
	c.hookMu.Unlock()
}

// Close detaches the client from the hub. The connection itself closes once the write pump drains.
func (c *Client) Close() {
	if c.hub == nil {
		c.close()
		return
	}
	c.hub.detachClient(c)
}

func (c *Client) close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.sendMu.Lock()
	close(c.send)
	c.sendMu.Unlock()
	c.invokeCloseHooks()
}

func (c *Client) invokeCloseHooks() {
	c.hookMu.Lock()
	hooks := append([]func(*Client){}, c.closeHooks...)
	c.closeHooks = nil
	c.hookMu.Unlock()

	for _, hook := range hooks {
		func(h func(*Client)) {
			defer func() {
				if r := recover(); r != nil {
					slog.Warn("ws close hook panic", slog.String("clientId", c.id), slog.Any("error", r))
				}
			}()
			h(c)
		}(hook)
	}
}

// Publish sends msg to this client only.
func (c *Client) Publish(_ context.Context, msg *domain.Message) {
	c.SendDomainMessage(msg)
}

func (c *Client) SendDomainMessage(msg *domain.Message) {
	if msg == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal error", slog.String("topic", msg.Topic), slog.Any("error", err))
		return
	}
	c.enqueue(data)
}

func (c *Client) enqueue(data []byte) bool {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.closed.Load() {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		slog.Warn("websocket send buffer full", slog.String("clientId", c.id), slog.String("userId", c.userID), slog.String("screen", c.screen))
		if c.hub != nil {
			go c.hub.detachClient(c)
		}
		return false
	}
}

func (c *Client) WritePump() {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.Warn("websocket write error", slog.String("clientId", c.id), slog.Any("error", err))
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				slog.Warn("websocket ping error", slog.String("clientId", c.id), slog.Any("error", err))
				return
			}
		}
	}
}

func (c *Client) ReadPump() {
	c.conn.SetReadLimit(maxCommandSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	defer c.Close()
	for {
		var cmd Command
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if err := c.conn.ReadJSON(&cmd); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !c.Closed() {
				slog.Warn("websocket read error", slog.String("clientId", c.id), slog.String("userId", c.userID), slog.String("screen", c.screen), slog.Any("error", err))
			}
			return
		}
		c.processCommand(cmd)
	}
}

func (c *Client) processCommand(cmd Command) {
	if c.commands == nil {
		return
	}
	c.commands.Process(c, cmd)
}

var _ port.Publisher = (*Client)(nil)
