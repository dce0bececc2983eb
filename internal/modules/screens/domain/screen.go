package domain

import (
	"fmt"
	"net/url"
	"strings"

	"tripDeskWs/internal/shared/normalization"
)

// Audience tells who may open a screen.
type Audience string

const (
	AudienceAdmin    Audience = "admin"
	AudienceCustomer Audience = "customer"
)

// ActionKind selects how an action reconciles local state with the API.
type ActionKind string

const (
	// ActionPatch applies fields locally before the call and rolls them back on failure.
	ActionPatch ActionKind = "patch"
	// ActionRemove waits for the API to confirm before dropping the record.
	ActionRemove ActionKind = "remove"
)

// ActionSpec describes one user action available on a screen.
type ActionSpec struct {
	Name string     `json:"name"`
	Kind ActionKind `json:"kind"`
	// Method is the HTTP verb sent to the API.
	Method string `json:"method"`
	// PathFormat contains a single %s replaced by the escaped record id.
	PathFormat string `json:"path"`
	// Patch holds the fields applied optimistically. They are also sent as the request body.
	Patch          map[string]any `json:"patch,omitempty"`
	Refetch        bool           `json:"refetch"`
	SuccessMessage string         `json:"successMessage,omitempty"`
}

// Path renders the request path for the record id.
func (a ActionSpec) Path(id string) string {
	if !strings.Contains(a.PathFormat, "%s") {
		return a.PathFormat
	}
	return fmt.Sprintf(a.PathFormat, url.PathEscape(strings.TrimSpace(id)))
}

// PatchWith returns a fresh map holding the preset patch overlaid with extra fields.
// Extra fields named like one of the protected keys, ignoring case, are dropped.
func (a ActionSpec) PatchWith(extra map[string]any, protected ...string) map[string]any {
	merged := make(map[string]any, len(a.Patch)+len(extra))
	for k, v := range a.Patch {
		merged[k] = v
	}
	for k, v := range extra {
		if strings.TrimSpace(k) == "" || isProtected(k, protected) {
			continue
		}
		merged[k] = v
	}
	return merged
}

func isProtected(key string, protected []string) bool {
	key = strings.TrimSpace(key)
	for _, p := range protected {
		if strings.EqualFold(key, strings.TrimSpace(p)) {
			return true
		}
	}
	return false
}

// Screen is the server side model of one back office or storefront view: which endpoint
// feeds it, how its records are identified, and which actions it offers.
type Screen struct {
	Name      string   `json:"name"`
	Entity    string   `json:"entity"`
	Title     string   `json:"title"`
	Audience  Audience `json:"audience"`
	ListPath  string   `json:"listPath"`
	Paginated bool     `json:"paginated"`
	// ObjectPolicy decides what a bare object response means for this endpoint.
	ObjectPolicy normalization.ObjectPolicy `json:"-"`
	IDKeys       []string                   `json:"-"`
	// ImageKeys lists the record keys holding image data, most specific first. Empty
	// disables image decoration.
	ImageKeys []string     `json:"-"`
	Actions   []ActionSpec `json:"actions"`
}

// Action looks up an action by name, ignoring case.
func (s Screen) Action(name string) (ActionSpec, bool) {
	want := strings.TrimSpace(name)
	for _, action := range s.Actions {
		if strings.EqualFold(action.Name, want) {
			return action, true
		}
	}
	return ActionSpec{}, false
}

// RequiredRole is the role a token needs to open the screen. Empty means any signed-in user.
func (s Screen) RequiredRole() string {
	if s.Audience == AudienceAdmin {
		return "admin"
	}
	return ""
}

func (s Screen) DecoratesImages() bool {
	return len(s.ImageKeys) > 0
}

// ActionNames lists the action names in declaration order.
func (s Screen) ActionNames() []string {
	names := make([]string, 0, len(s.Actions))
	for _, a := range s.Actions {
		names = append(names, a.Name)
	}
	return names
}
