package domain

import "tripDeskWs/internal/shared/normalization"

const (
	ImagesField       = "images"
	PrimaryImageField = "primaryImage"
)

// DecorateImages returns copies of records carrying the parsed image list and the first
// image under ImagesField and PrimaryImageField. Input records are left untouched.
func DecorateImages(records []normalization.Record, keys []string, placeholder string) []normalization.Record {
	if len(keys) == 0 {
		return records
	}
	out := make([]normalization.Record, len(records))
	for i, record := range records {
		images := normalization.ParseImages(record, keys, placeholder)
		decorated := make(normalization.Record, len(record)+2)
		for k, v := range record {
			decorated[k] = v
		}
		decorated[ImagesField] = images
		decorated[PrimaryImageField] = images[0]
		out[i] = decorated
	}
	return out
}
