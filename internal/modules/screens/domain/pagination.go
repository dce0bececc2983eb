package domain

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PagedQuery encapsulates paging, filtering, and sorting preferences shared by list screens.
type PagedQuery struct {
	Page      int               `json:"page"`
	Limit     int               `json:"limit"`
	Search    string            `json:"search"`
	SortBy    string            `json:"sortBy"`
	SortOrder string            `json:"sortOrder"`
	Filters   map[string]string `json:"filters,omitempty"`
}

// Normalize returns a sanitized copy applying defaults and bounds.
func (q PagedQuery) Normalize() PagedQuery {
	normalized := q
	if normalized.Page <= 0 {
		normalized.Page = 1
	}
	if normalized.Limit <= 0 {
		normalized.Limit = DefaultPageSize
	}
	if normalized.Limit > MaxPageSize {
		normalized.Limit = MaxPageSize
	}

	normalized.Search = strings.TrimSpace(normalized.Search)
	normalized.SortBy = strings.TrimSpace(normalized.SortBy)
	normalized.SortOrder = strings.ToLower(strings.TrimSpace(normalized.SortOrder))
	if normalized.SortOrder != "asc" && normalized.SortOrder != "desc" {
		normalized.SortOrder = ""
	}

	normalized.Filters = sanitizeFilters(normalized.Filters)
	return normalized
}

// ToURLValues returns the query parameters understood by the travel API. Non-paginated
// endpoints only receive search, sorting and filters.
func (q PagedQuery) ToURLValues(paginated bool) url.Values {
	normalized := q.Normalize()
	values := url.Values{}
	if paginated {
		values.Set("PageNumber", strconv.Itoa(normalized.Page))
		values.Set("PageSize", strconv.Itoa(normalized.Limit))
	}
	if normalized.Search != "" {
		values.Set("search", normalized.Search)
	}
	if normalized.SortBy != "" {
		values.Set("sortBy", normalized.SortBy)
	}
	if normalized.SortOrder != "" {
		values.Set("sortOrder", normalized.SortOrder)
	}
	for key, value := range normalized.Filters {
		values.Set(key, value)
	}
	return values
}

// Metadata converts the query into the metadata map attached to snapshot messages.
func (q PagedQuery) Metadata() Metadata {
	normalized := q.Normalize()
	metadata := Metadata{
		"page":  strconv.Itoa(normalized.Page),
		"limit": strconv.Itoa(normalized.Limit),
	}
	if normalized.Search != "" {
		metadata["search"] = normalized.Search
	}
	if normalized.SortBy != "" {
		metadata["sortBy"] = normalized.SortBy
	}
	if normalized.SortOrder != "" {
		metadata["sortOrder"] = normalized.SortOrder
	}
	return metadata
}

// QueryFromValues reads a PagedQuery from HTTP query parameters. Unknown keys become
// filters.
func QueryFromValues(values url.Values) PagedQuery {
	q := PagedQuery{Filters: map[string]string{}}
	for key, list := range values {
		if len(list) == 0 {
			continue
		}
		value := list[0]
		switch strings.ToLower(key) {
		case "page", "pagenumber":
			q.Page, _ = strconv.Atoi(strings.TrimSpace(value))
		case "limit", "pagesize":
			q.Limit, _ = strconv.Atoi(strings.TrimSpace(value))
		case "search", "q":
			q.Search = value
		case "sortby":
			q.SortBy = value
		case "sortorder":
			q.SortOrder = value
		case "token", "access_token":
		default:
			q.Filters[key] = value
		}
	}
	return q.Normalize()
}

func sanitizeFilters(filters map[string]string) map[string]string {
	if len(filters) == 0 {
		return nil
	}
	sanitized := make(map[string]string, len(filters))
	for key, value := range filters {
		trimmedKey := strings.TrimSpace(key)
		trimmedValue := strings.TrimSpace(value)
		if trimmedKey == "" || trimmedValue == "" {
			continue
		}
		sanitized[trimmedKey] = trimmedValue
	}
	if len(sanitized) == 0 {
		return nil
	}
	return sanitized
}
