package normalization

var (
	totalCountKeys = []string{"TotalCount", "totalCount", "Total", "total"}
	pageNumberKeys = []string{"PageNumber", "pageNumber", "Page", "page"}
	totalPagesKeys = []string{"TotalPages", "totalPages"}
	pageSizeKeys   = []string{"PageSize", "pageSize", "Limit", "limit"}
)

// Page is the result of a paginated extraction.
type Page struct {
	Records    []Record `json:"records"`
	TotalCount int      `json:"totalCount"`
	PageNumber int      `json:"pageNumber"`
	TotalPages int      `json:"totalPages"`
	PageSize   int      `json:"pageSize,omitempty"`
	// Paged is true when the totals came from the server rather than being derived.
	Paged bool `json:"paged"`
}

// NormalizePage handles the doubly-nested pagination envelope
// {Success, Data: {Data: [...], TotalCount, PageNumber, TotalPages}}. Bodies of any other
// shape go through Normalize and receive derived totals.
func NormalizePage(raw any, opts ...Option) Page {
	shape := DetectShape(raw)

	var container map[string]any
	switch shape.Kind {
	case ShapeEnvelope:
		if shape.Success {
			container = AsMap(shape.Payload)
		}
	case ShapeObject:
		container = shape.Object
	}

	if page, ok := pageFromContainer(container); ok {
		return page
	}

	records := Normalize(raw, nil, opts...)
	return derivedPage(records)
}

func pageFromContainer(container map[string]any) (Page, bool) {
	if container == nil {
		return Page{}, false
	}
	inner, ok := Lookup(container, dataKeys...)
	if !ok {
		return Page{}, false
	}
	items := AsInterfaceSlice(inner)
	if items == nil {
		return Page{}, false
	}
	if !hasAny(container, totalCountKeys, pageNumberKeys, totalPagesKeys, pageSizeKeys) {
		return Page{}, false
	}

	records := recordsFromArray(items)
	page := Page{
		Records:    records,
		TotalCount: intAt(container, totalCountKeys),
		PageNumber: intAt(container, pageNumberKeys),
		TotalPages: intAt(container, totalPagesKeys),
		PageSize:   intAt(container, pageSizeKeys),
		Paged:      true,
	}
	if page.PageNumber <= 0 {
		page.PageNumber = 1
	}
	if page.TotalCount < len(records) {
		page.TotalCount = len(records)
	}
	if page.TotalPages <= 0 && page.TotalCount > 0 {
		page.TotalPages = 1
		if page.PageSize > 0 {
			page.TotalPages = (page.TotalCount + page.PageSize - 1) / page.PageSize
		}
	}
	return page, true
}

func derivedPage(records []Record) Page {
	page := Page{Records: records, TotalCount: len(records), PageNumber: 1}
	if len(records) > 0 {
		page.TotalPages = 1
	}
	return page
}

func hasAny(container map[string]any, keySets ...[]string) bool {
	for _, keys := range keySets {
		if _, ok := Lookup(container, keys...); ok {
			return true
		}
	}
	return false
}

func intAt(container map[string]any, keys []string) int {
	value, _ := Lookup(container, keys...)
	return AsInt(value)
}
