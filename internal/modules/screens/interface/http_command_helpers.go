package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"tripDeskWs/internal/modules/screens/application/usecase"
	"tripDeskWs/internal/modules/screens/domain"
	"tripDeskWs/internal/modules/screens/infrastructure"
	"tripDeskWs/internal/shared/httputil"
)

// screenCommands binds the load, refresh and action commands of one client to its session.
type screenCommands struct {
	session *usecase.ScreenSession
	mapper  *httputil.ErrorMapper
	now     func() time.Time
}

func registerScreenCommands(client *infrastructure.Client, session *usecase.ScreenSession, mapper *httputil.ErrorMapper) {
	cmds := &screenCommands{session: session, mapper: mapper, now: time.Now}
	client.Commands().RegisterAsync("load", cmds.load)
	client.Commands().RegisterAsync("refresh", cmds.refresh)
	client.Commands().RegisterAsync("action", cmds.action)
}

func (h *screenCommands) load(ctx context.Context, client *infrastructure.Client, cmd infrastructure.Command) {
	payload, ok := decodePayload[domain.LoadCommand](client, cmd, h.now)
	if !ok {
		return
	}
	// Failures were already notified by the session.
	if err := h.session.Load(ctx, payload.Query()); err != nil && !errors.Is(err, usecase.ErrSessionClosed) {
		slog.Debug("ws load command failed", slog.String("screen", client.Screen()), slog.Any("error", err))
	}
}

func (h *screenCommands) refresh(ctx context.Context, client *infrastructure.Client, _ infrastructure.Command) {
	if err := h.session.Refresh(ctx); err != nil && !errors.Is(err, usecase.ErrSessionClosed) {
		slog.Debug("ws refresh command failed", slog.String("screen", client.Screen()), slog.Any("error", err))
	}
}

func (h *screenCommands) action(ctx context.Context, client *infrastructure.Client, cmd infrastructure.Command) {
	payload, ok := decodePayload[domain.ActionCommand](client, cmd, h.now)
	if !ok {
		return
	}
	outcome, err := h.session.Execute(ctx, payload)
	if err != nil {
		if !errors.Is(err, usecase.ErrSessionClosed) {
			client.SendDomainMessage(infrastructure.CommandError("action", h.mapper.Message(err), h.now()))
		}
		return
	}

	data := map[string]any{
		"mutationId": outcome.MutationID,
		"status":     outcome.Status.String(),
	}
	if outcome.Err != nil {
		data["error"] = h.mapper.Message(outcome.Err)
	}
	screen := h.session.Screen()
	client.SendDomainMessage(&domain.Message{
		Topic:      screen.Name + ".action",
		Entity:     screen.Entity,
		Action:     payload.Name,
		ResourceID: payload.ID,
		Metadata:   domain.Metadata{"screen": screen.Name, "sessionId": h.session.ID()},
		Data:       data,
		Timestamp:  h.now().UTC(),
	})
}

func decodePayload[T any](client *infrastructure.Client, cmd infrastructure.Command, now func() time.Time) (T, bool) {
	var payload T
	if len(cmd.Payload) == 0 {
		return payload, true
	}
	if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
		slog.Warn("ws command payload decode failed", slog.String("screen", client.Screen()), slog.String("action", cmd.Action), slog.Any("error", err))
		client.SendDomainMessage(infrastructure.CommandError(cmd.Action, "invalid payload", now()))
		return payload, false
	}
	return payload, true
}
