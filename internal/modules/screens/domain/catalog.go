package domain

import (
	"net/http"
	"sort"
	"strings"

	"tripDeskWs/internal/shared/normalization"
)

var hotelImageKeys = []string{"Images", "images", "ImageUrls", "imageUrls", "ImageUrl", "imageUrl", "Image", "image"}

var roomImageKeys = []string{"Images", "images", "RoomImages", "roomImages", "ImageUrl", "imageUrl"}

var builtinScreens = []Screen{
	{
		Name:         "admin-users",
		Entity:       "users",
		Title:        "Users",
		Audience:     AudienceAdmin,
		ListPath:     "/api/admin/users",
		Paginated:    true,
		ObjectPolicy: normalization.ObjectAsFallback,
		Actions: []ActionSpec{
			{Name: "block", Kind: ActionPatch, Method: http.MethodPut, PathFormat: "/api/admin/users/%s/block", Patch: map[string]any{"IsBlocked": true}, SuccessMessage: "User blocked"},
			{Name: "unblock", Kind: ActionPatch, Method: http.MethodPut, PathFormat: "/api/admin/users/%s/unblock", Patch: map[string]any{"IsBlocked": false}, SuccessMessage: "User unblocked"},
			{Name: "delete", Kind: ActionRemove, Method: http.MethodDelete, PathFormat: "/api/admin/users/%s", SuccessMessage: "User deleted"},
		},
	},
	{
		Name:         "admin-hotels",
		Entity:       "hotels",
		Title:        "Hotels",
		Audience:     AudienceAdmin,
		ListPath:     "/api/admin/hotels",
		Paginated:    true,
		ObjectPolicy: normalization.ObjectAsFallback,
		ImageKeys:    hotelImageKeys,
		Actions: []ActionSpec{
			{Name: "activate", Kind: ActionPatch, Method: http.MethodPatch, PathFormat: "/api/admin/hotels/%s/status", Patch: map[string]any{"IsActive": true}, SuccessMessage: "Hotel activated"},
			{Name: "deactivate", Kind: ActionPatch, Method: http.MethodPatch, PathFormat: "/api/admin/hotels/%s/status", Patch: map[string]any{"IsActive": false}, SuccessMessage: "Hotel deactivated"},
			{Name: "update", Kind: ActionPatch, Method: http.MethodPut, PathFormat: "/api/admin/hotels/%s", Refetch: true, SuccessMessage: "Hotel updated"},
			{Name: "delete", Kind: ActionRemove, Method: http.MethodDelete, PathFormat: "/api/admin/hotels/%s", SuccessMessage: "Hotel deleted"},
		},
	},
	{
		Name:         "admin-rooms",
		Entity:       "rooms",
		Title:        "Rooms",
		Audience:     AudienceAdmin,
		ListPath:     "/api/admin/rooms",
		Paginated:    true,
		ObjectPolicy: normalization.ObjectAsFallback,
		ImageKeys:    roomImageKeys,
		Actions: []ActionSpec{
			{Name: "update", Kind: ActionPatch, Method: http.MethodPut, PathFormat: "/api/admin/rooms/%s", Refetch: true, SuccessMessage: "Room updated"},
			{Name: "delete", Kind: ActionRemove, Method: http.MethodDelete, PathFormat: "/api/admin/rooms/%s", SuccessMessage: "Room deleted"},
		},
	},
	{
		Name:         "admin-flights",
		Entity:       "flights",
		Title:        "Flights",
		Audience:     AudienceAdmin,
		ListPath:     "/api/admin/flights",
		Paginated:    true,
		ObjectPolicy: normalization.ObjectAsFallback,
		Actions: []ActionSpec{
			{Name: "delete", Kind: ActionRemove, Method: http.MethodDelete, PathFormat: "/api/admin/flights/%s", SuccessMessage: "Flight deleted"},
		},
	},
	{
		Name:         "admin-bookings",
		Entity:       "bookings",
		Title:        "Bookings",
		Audience:     AudienceAdmin,
		ListPath:     "/api/admin/bookings",
		Paginated:    true,
		ObjectPolicy: normalization.ObjectAsFallback,
		Actions: []ActionSpec{
			{Name: "cancel", Kind: ActionPatch, Method: http.MethodPut, PathFormat: "/api/admin/bookings/%s/cancel", Patch: map[string]any{"Status": "Cancelled"}, Refetch: true, SuccessMessage: "Booking cancelled"},
		},
	},
	{
		Name:         "hotels",
		Entity:       "hotels",
		Title:        "Find a hotel",
		Audience:     AudienceCustomer,
		ListPath:     "/api/hotels",
		ObjectPolicy: normalization.ObjectAsRecord,
		ImageKeys:    hotelImageKeys,
	},
	{
		Name:         "flights",
		Entity:       "flights",
		Title:        "Find a flight",
		Audience:     AudienceCustomer,
		ListPath:     "/api/flights",
		ObjectPolicy: normalization.ObjectAsFallback,
	},
	{
		Name:         "my-bookings",
		Entity:       "bookings",
		Title:        "My bookings",
		Audience:     AudienceCustomer,
		ListPath:     "/api/bookings/me",
		ObjectPolicy: normalization.ObjectAsRecord,
		Actions: []ActionSpec{
			{Name: "cancel", Kind: ActionPatch, Method: http.MethodPut, PathFormat: "/api/bookings/%s/cancel", Patch: map[string]any{"Status": "Cancelled"}, Refetch: true, SuccessMessage: "Your booking was cancelled"},
			{Name: "pay", Kind: ActionPatch, Method: http.MethodPost, PathFormat: "/api/bookings/%s/pay", Patch: map[string]any{"PaymentStatus": "Paid"}, Refetch: true, SuccessMessage: "Payment completed"},
		},
	},
}

// Catalog indexes screen definitions by name.
type Catalog struct {
	screens map[string]Screen
}

// NewCatalog builds a catalog from the given screens. Later duplicates replace earlier ones.
func NewCatalog(screens ...Screen) *Catalog {
	c := &Catalog{screens: make(map[string]Screen, len(screens))}
	for _, s := range screens {
		key := catalogKey(s.Name)
		if key == "" {
			continue
		}
		if entity := normalization.NormalizeEntity(s.Entity); entity != "" {
			s.Entity = entity
		}
		c.screens[key] = s
	}
	return c
}

// DefaultCatalog returns the screens shipped with the gateway.
func DefaultCatalog() *Catalog {
	return NewCatalog(builtinScreens...)
}

func (c *Catalog) Lookup(name string) (Screen, bool) {
	if c == nil {
		return Screen{}, false
	}
	s, ok := c.screens[catalogKey(name)]
	return s, ok
}

// All returns the screens sorted by name.
func (c *Catalog) All() []Screen {
	if c == nil {
		return nil
	}
	out := make([]Screen, 0, len(c.screens))
	for _, s := range c.screens {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ForEntity returns the names of the screens showing records of entity.
func (c *Catalog) ForEntity(entity string) []string {
	canonical := normalization.NormalizeEntity(entity)
	names := make([]string, 0)
	for _, s := range c.All() {
		if s.Entity == canonical {
			names = append(names, s.Name)
		}
	}
	return names
}

func catalogKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
