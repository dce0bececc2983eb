package infrastructure

import (
	"context"
	"strings"
	"time"

	"tripDeskWs/internal/modules/screens/application/port"
	"tripDeskWs/internal/modules/screens/domain"
	"tripDeskWs/internal/shared/optimistic"
)

// ClientNotifier shows notifications on the client's screen as system.notification messages.
type ClientNotifier struct {
	publisher port.Publisher
	metadata  domain.Metadata
	now       func() time.Time
}

func NewClientNotifier(publisher port.Publisher, screen string) *ClientNotifier {
	return &ClientNotifier{
		publisher: publisher,
		metadata:  domain.Metadata{"screen": strings.TrimSpace(screen)},
		now:       time.Now,
	}
}

func (n *ClientNotifier) Notify(ctx context.Context, severity optimistic.Severity, message string) {
	if n == nil || n.publisher == nil || strings.TrimSpace(message) == "" {
		return
	}
	metadata := make(domain.Metadata, len(n.metadata)+1)
	for k, v := range n.metadata {
		metadata[k] = v
	}
	metadata["severity"] = string(severity)
	n.publisher.Publish(ctx, domain.SystemMessage(
		domain.ActionNotification,
		domain.Notification{Severity: string(severity), Message: message},
		metadata,
		n.now(),
	))
}

var _ optimistic.Notifier = (*ClientNotifier)(nil)
