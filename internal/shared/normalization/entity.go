package normalization

import "strings"

// entityAliases maps the entity names used by the API, event topics and screen
// definitions to their canonical form.
var entityAliases = map[string]string{
	"":        "",
	"-":       "",
	"default": "",

	"hotel":  "hotels",
	"hotels": "hotels",

	"room":        "rooms",
	"rooms":       "rooms",
	"hotel-room":  "rooms",
	"hotel-rooms": "rooms",
	"hotelroom":   "rooms",
	"hotelrooms":  "rooms",

	"flight":  "flights",
	"flights": "flights",

	"booking":         "bookings",
	"bookings":        "bookings",
	"reservation":     "bookings",
	"reservations":    "bookings",
	"hotel-booking":   "bookings",
	"hotel-bookings":  "bookings",
	"flight-booking":  "bookings",
	"flight-bookings": "bookings",

	"user":      "users",
	"users":     "users",
	"customer":  "users",
	"customers": "users",
	"account":   "users",
	"accounts":  "users",

	"payment":  "payments",
	"payments": "payments",

	"review":  "reviews",
	"reviews": "reviews",
}

var validEntities = map[string]struct{}{
	"hotels":   {},
	"rooms":    {},
	"flights":  {},
	"bookings": {},
	"users":    {},
	"payments": {},
	"reviews":  {},
}

// NormalizeEntity converts various entity name formats to their canonical form.
//
// Example:
//
//	NormalizeEntity("Hotel") => "hotels"
//	NormalizeEntity("FLIGHT_BOOKING") => "bookings"
func NormalizeEntity(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	normalized := strings.ReplaceAll(trimmed, "_", "-")

	if canonical, found := entityAliases[normalized]; found {
		return canonical
	}
	if canonical, found := entityAliases[strings.ReplaceAll(normalized, "-", "")]; found {
		return canonical
	}
	return normalized
}

// IsValidEntity checks if the given entity name is a known entity type.
func IsValidEntity(raw string) bool {
	normalized := NormalizeEntity(raw)
	if normalized == "" {
		return false
	}
	_, ok := validEntities[normalized]
	return ok
}

// GetAllValidEntities returns a list of all valid canonical entity names.
func GetAllValidEntities() []string {
	return []string{"hotels", "rooms", "flights", "bookings", "users", "payments", "reviews"}
}
