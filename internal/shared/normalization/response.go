package normalization

import "log/slog"

// ObjectPolicy decides what a bare top-level object (no envelope) means for a call site.
type ObjectPolicy int

const (
	// ObjectAsRecord wraps a bare object as a single-element record list.
	ObjectAsRecord ObjectPolicy = iota
	// ObjectAsFallback treats a bare object as unusable and returns the fallback.
	ObjectAsFallback
)

// Reporter receives the message of an envelope that declared failure.
type Reporter func(message string)

type options struct {
	objectPolicy ObjectPolicy
	reporter     Reporter
}

// Option tunes a single Normalize call.
type Option func(*options)

// WithObjectPolicy selects how bare top-level objects are treated.
func WithObjectPolicy(policy ObjectPolicy) Option {
	return func(o *options) { o.objectPolicy = policy }
}

// WithReporter registers the collaborator notified when an envelope declares failure.
func WithReporter(reporter Reporter) Option {
	return func(o *options) { o.reporter = reporter }
}

func buildOptions(opts []Option) options {
	resolved := options{objectPolicy: ObjectAsRecord}
	for _, opt := range opts {
		if opt != nil {
			opt(&resolved)
		}
	}
	return resolved
}

// Normalize turns a decoded body of unknown shape into a canonical record list. It never
// returns nil and never panics on malformed data; every unusable shape degrades to fallback.
func Normalize(raw any, fallback []Record, opts ...Option) []Record {
	o := buildOptions(opts)
	shape := DetectShape(raw)
	switch shape.Kind {
	case ShapeEnvelope:
		if !shape.Success {
			if o.reporter != nil {
				o.reporter(shape.Message)
			}
			return orEmpty(fallback)
		}
		return payloadRecords(shape.Payload, fallback)
	case ShapeArray:
		return recordsFromArray(shape.Array)
	case ShapeObject:
		if o.objectPolicy == ObjectAsFallback {
			return orEmpty(fallback)
		}
		return []Record{shape.Object}
	default:
		return orEmpty(fallback)
	}
}

// NormalizeOne extracts a single canonical record, used by detail endpoints. The first
// record of a list payload is returned when the API answers with an array.
func NormalizeOne(raw any, opts ...Option) (Record, bool) {
	records := Normalize(raw, nil, opts...)
	if len(records) == 0 {
		return nil, false
	}
	return records[0], true
}

func payloadRecords(payload any, fallback []Record) []Record {
	if items := AsInterfaceSlice(payload); items != nil {
		return recordsFromArray(items)
	}
	if obj := AsMap(payload); obj != nil {
		return []Record{obj}
	}
	return orEmpty(fallback)
}

func recordsFromArray(items []any) []Record {
	records := make([]Record, 0, len(items))
	dropped := 0
	for _, item := range items {
		obj := AsMap(item)
		if obj == nil {
			dropped++
			continue
		}
		records = append(records, obj)
	}
	if dropped > 0 {
		slog.Debug("normalize dropped non-object elements", slog.Int("dropped", dropped), slog.Int("kept", len(records)))
	}
	return records
}

func orEmpty(fallback []Record) []Record {
	if fallback == nil {
		return []Record{}
	}
	return fallback
}
