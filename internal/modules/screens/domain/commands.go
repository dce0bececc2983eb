package domain

import "strings"

// LoadCommand is the payload of the websocket "load" command.
type LoadCommand struct {
	Page      int               `json:"page"`
	Limit     int               `json:"limit"`
	Search    string            `json:"search"`
	SortBy    string            `json:"sortBy"`
	SortOrder string            `json:"sortOrder"`
	Filters   map[string]string `json:"filters,omitempty"`
}

func (c LoadCommand) Query() PagedQuery {
	return PagedQuery{
		Page:      c.Page,
		Limit:     c.Limit,
		Search:    c.Search,
		SortBy:    c.SortBy,
		SortOrder: c.SortOrder,
		Filters:   c.Filters,
	}.Normalize()
}

// ActionCommand is the payload of the websocket "action" command.
type ActionCommand struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	// Fields are merged over the action's preset patch, for edit forms.
	Fields map[string]any `json:"fields,omitempty"`
}

func (c ActionCommand) Valid() bool {
	return strings.TrimSpace(c.Name) != "" && strings.TrimSpace(c.ID) != ""
}
