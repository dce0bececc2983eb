package domain

import (
	"strings"
	"time"
)

// Metadata carries string attributes attached to a message.
type Metadata map[string]string

// Message is the envelope pushed to websocket clients and decoded from broker events.
type Message struct {
	Topic      string    `json:"topic"`
	Entity     string    `json:"entity"`
	Action     string    `json:"action"`
	ResourceID string    `json:"resourceId,omitempty"`
	Metadata   Metadata  `json:"metadata,omitempty"`
	Data       any       `json:"data,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

const (
	SystemEntity = "system"

	ActionConnected    = "connected"
	ActionPong         = "pong"
	ActionError        = "error"
	ActionNotification = "notification"
	ActionUnauthorized = "unauthorized"
	ActionSnapshot     = "snapshot"
	ActionPatched      = "patched"

	TopicSystemConnected    = SystemEntity + "." + ActionConnected
	TopicSystemPong         = SystemEntity + "." + ActionPong
	TopicSystemError        = SystemEntity + "." + ActionError
	TopicSystemNotification = SystemEntity + "." + ActionNotification
	TopicSystemUnauthorized = SystemEntity + "." + ActionUnauthorized
)

// SnapshotTopic returns the topic carrying full record lists of a screen.
func SnapshotTopic(screen string) string {
	return buildTopic(screen, ActionSnapshot)
}

// PatchedTopic returns the topic carrying optimistic updates of a screen.
func PatchedTopic(screen string) string {
	return buildTopic(screen, ActionPatched)
}

func buildTopic(prefix, action string) string {
	cleanPrefix := strings.TrimSpace(prefix)
	cleanAction := strings.TrimSpace(action)
	if cleanPrefix == "" || cleanAction == "" {
		return ""
	}
	return cleanPrefix + "." + cleanAction
}

// SystemMessage builds a message on one of the system topics.
func SystemMessage(action string, data any, metadata Metadata, at time.Time) *Message {
	return &Message{
		Topic:     buildTopic(SystemEntity, action),
		Entity:    SystemEntity,
		Action:    strings.TrimSpace(action),
		Metadata:  metadata,
		Data:      data,
		Timestamp: at.UTC(),
	}
}

// Notification is the body of a system.notification message.
type Notification struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Snapshot is the body of snapshot and patched messages.
type Snapshot struct {
	Records    []map[string]any `json:"records"`
	TotalCount int              `json:"totalCount"`
	PageNumber int              `json:"pageNumber"`
	TotalPages int              `json:"totalPages"`
	PageSize   int              `json:"pageSize"`
	Version    uint64           `json:"version"`
}
