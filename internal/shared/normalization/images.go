package normalization

import (
	"encoding/json"
	"strings"
)

// DefaultPlaceholder is substituted when a record carries no usable image.
const DefaultPlaceholder = "https://placehold.co/600x400?text=No+Image"

const emptyArrayLiteral = "[]"

var imageURLKeys = []string{"ImageUrl", "imageUrl", "Url", "url", "Image", "image"}

type imagePass func(value any) []string

// imagePasses run in order across every candidate key; the first pass producing URLs wins.
var imagePasses = []imagePass{
	imagesFromArray,
	imagesFromJSONString,
	imagesFromCSVString,
	imagesFromSingleString,
}

// ParseImages extracts an ordered list of image URLs from record. It never returns an empty
// slice: when no candidate key yields a URL the result is []string{placeholder}.
func ParseImages(record map[string]any, candidateKeys []string, placeholder string) []string {
	if strings.TrimSpace(placeholder) == "" {
		placeholder = DefaultPlaceholder
	}
	if record != nil {
		for _, pass := range imagePasses {
			for _, key := range candidateKeys {
				value, ok := record[key]
				if !ok || value == nil {
					continue
				}
				if urls := pass(value); len(urls) > 0 {
					return urls
				}
			}
		}
	}
	return []string{placeholder}
}

// PrimaryImage returns the first URL ParseImages would produce.
func PrimaryImage(record map[string]any, candidateKeys []string, placeholder string) string {
	return ParseImages(record, candidateKeys, placeholder)[0]
}

func imagesFromArray(value any) []string {
	items := AsInterfaceSlice(value)
	if items == nil {
		return nil
	}
	return collectURLs(items)
}

func imagesFromJSONString(value any) []string {
	items, ok := jsonArrayString(value)
	if !ok {
		return nil
	}
	return collectURLs(items)
}

func imagesFromCSVString(value any) []string {
	raw, ok := value.(string)
	if !ok || !strings.Contains(raw, ",") {
		return nil
	}
	if _, isJSON := jsonArrayString(value); isJSON {
		return nil
	}
	parts := strings.Split(raw, ",")
	urls := make([]string, 0, len(parts))
	for _, part := range parts {
		if cleaned := cleanImageToken(part); cleaned != "" {
			urls = append(urls, cleaned)
		}
	}
	return urls
}

func imagesFromSingleString(value any) []string {
	raw, ok := value.(string)
	if !ok {
		return nil
	}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == emptyArrayLiteral || strings.Contains(trimmed, ",") {
		return nil
	}
	if _, isJSON := jsonArrayString(value); isJSON {
		return nil
	}
	if cleaned := cleanImageToken(trimmed); cleaned != "" {
		return []string{cleaned}
	}
	return nil
}

// cleanImageToken strips the brackets and quotes left over from a malformed array literal.
func cleanImageToken(raw string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `[]"'`))
}

// jsonArrayString parses value as a JSON array literal. ok is false when value is not a
// string starting with '[' or the parse fails; such values fall through to CSV handling.
func jsonArrayString(value any) ([]any, bool) {
	raw, ok := value.(string)
	if !ok {
		return nil, false
	}
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "[") {
		return nil, false
	}
	var items []any
	if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
		return nil, false
	}
	return items, true
}

func collectURLs(items []any) []string {
	urls := make([]string, 0, len(items))
	for _, item := range items {
		switch typed := item.(type) {
		case string:
			if trimmed := strings.TrimSpace(typed); trimmed != "" {
				urls = append(urls, trimmed)
			}
		case map[string]any:
			if url := LookupString(typed, imageURLKeys...); url != "" {
				urls = append(urls, url)
			}
		}
	}
	return urls
}
