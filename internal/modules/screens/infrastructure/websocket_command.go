package infrastructure

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tripDeskWs/internal/modules/screens/domain"
)

const defaultCommandTimeout = 10 * time.Second

type Command struct {
	Action  string          `json:"action"`
	Topic   string          `json:"topic,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (c Command) actionKey() string {
	return normalizeAction(c.Action)
}

type CommandHandler func(ctx context.Context, client *Client, cmd Command)

// CommandProcessor routes client commands. Built-in commands run inline on the read loop;
// async commands run on their own goroutine under a timeout.
type CommandProcessor struct {
	hub          *Hub
	mu           sync.RWMutex
	handlers     map[string]CommandHandler
	async        map[string]CommandHandler
	asyncTimeout time.Duration
	inflight     sync.WaitGroup
	now          func() time.Time
}

func NewCommandProcessor(hub *Hub, asyncTimeout time.Duration) *CommandProcessor {
	if asyncTimeout <= 0 {
		asyncTimeout = defaultCommandTimeout
	}
	processor := &CommandProcessor{
		hub:          hub,
		handlers:     make(map[string]CommandHandler),
		async:        make(map[string]CommandHandler),
		asyncTimeout: asyncTimeout,
		now:          time.Now,
	}
	processor.Register("subscribe", processor.handleSubscribe)
	processor.Register("unsubscribe", processor.handleUnsubscribe)
	processor.Register("ping", processor.handlePing)
	return processor
}

func (p *CommandProcessor) Register(action string, handler CommandHandler) {
	p.register(p.handlers, action, handler)
}

// RegisterAsync registers a command that calls the travel API.
func (p *CommandProcessor) RegisterAsync(action string, handler CommandHandler) {
	p.register(p.async, action, handler)
}

func (p *CommandProcessor) register(target map[string]CommandHandler, action string, handler CommandHandler) {
	if handler == nil {
		return
	}
	key := normalizeAction(action)
	if key == "" {
		return
	}
	p.mu.Lock()
	target[key] = handler
	p.mu.Unlock()
}

func (p *CommandProcessor) Process(client *Client, cmd Command) {
	if client == nil {
		return
	}

	action := cmd.actionKey()
	if action == "" {
		return
	}

	p.mu.RLock()
	inline, isInline := p.handlers[action]
	async, isAsync := p.async[action]
	p.mu.RUnlock()

	switch {
	case isInline:
		inline(context.Background(), client, cmd)
	case isAsync:
		ctx, cancel := context.WithTimeout(context.Background(), p.asyncTimeout)
		p.inflight.Add(1)
		go func() {
			defer p.inflight.Done()
			defer cancel()
			async(ctx, client, cmd)
		}()
	default:
		slog.Debug("ws command ignored", slog.String("clientId", client.id), slog.String("screen", client.screen), slog.String("action", action))
		client.SendDomainMessage(CommandError(action, "unknown command", p.now()))
	}
}

// Wait blocks until every async command started so far has returned.
func (p *CommandProcessor) Wait() {
	p.inflight.Wait()
}

func (p *CommandProcessor) handleSubscribe(_ context.Context, client *Client, cmd Command) {
	topic := strings.TrimSpace(cmd.Topic)
	if topic == "" {
		slog.Debug("ws subscribe ignored empty topic", slog.String("clientId", client.id), slog.String("screen", client.screen))
		return
	}
	if !p.hub.subscribe(client, topic) {
		client.SendDomainMessage(CommandError("subscribe", "topic not allowed", p.now()))
		return
	}
	slog.Debug("ws subscribe", slog.String("clientId", client.id), slog.String("screen", client.screen), slog.String("topic", topic))
}

func (p *CommandProcessor) handleUnsubscribe(_ context.Context, client *Client, cmd Command) {
	topic := strings.TrimSpace(cmd.Topic)
	if topic == "" {
		return
	}
	p.hub.unsubscribe(client, topic)
}

func (p *CommandProcessor) handlePing(_ context.Context, client *Client, _ Command) {
	client.SendDomainMessage(domain.SystemMessage(domain.ActionPong, nil, nil, p.now()))
}

// CommandError builds the system.error reply to a rejected command.
func CommandError(action, reason string, at time.Time) *domain.Message {
	metadata := domain.Metadata{"action": action}
	if strings.TrimSpace(reason) != "" {
		metadata["reason"] = reason
	}
	return domain.SystemMessage(domain.ActionError, map[string]string{"error": reason}, metadata, at)
}

func normalizeAction(action string) string {
	return strings.ToLower(strings.TrimSpace(action))
}
