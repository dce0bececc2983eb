package transport

import "strings"

var defaultEventActions = []string{"created", "updated", "deleted"}

// buildTopics lists the broker event topics a screen client may subscribe to.
func buildTopics(entity string, eventActions []string) []string {
	entity = strings.TrimSpace(entity)
	if entity == "" {
		return nil
	}
	if len(eventActions) == 0 {
		eventActions = defaultEventActions
	}
	topics := make([]string, 0, len(eventActions))
	seen := make(map[string]struct{}, len(eventActions))
	for _, action := range eventActions {
		action = strings.TrimSpace(strings.ToLower(action))
		if action == "" {
			continue
		}
		topic := entity + "." + action
		if _, exists := seen[topic]; exists {
			continue
		}
		topics = append(topics, topic)
		seen[topic] = struct{}{}
	}
	return topics
}
