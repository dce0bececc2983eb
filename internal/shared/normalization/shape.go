package normalization

// Record is a single loosely-typed entity as decoded from the API.
type Record = map[string]any

// ShapeKind tags the top-level form of a decoded response body.
type ShapeKind int

const (
	ShapeEmpty ShapeKind = iota
	ShapeEnvelope
	ShapeArray
	ShapeObject
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeEnvelope:
		return "envelope"
	case ShapeArray:
		return "array"
	case ShapeObject:
		return "object"
	default:
		return "empty"
	}
}

var (
	successKeys = []string{"Success", "success"}
	messageKeys = []string{"Message", "message"}
	dataKeys    = []string{"Data", "data"}
)

// Shape is the tagged union produced by DetectShape. Only the fields relevant to Kind are set.
type Shape struct {
	Kind ShapeKind
	// Envelope fields.
	Success bool
	Message string
	Payload any
	// Array holds the elements for ShapeArray.
	Array []any
	// Object holds the body for ShapeObject.
	Object map[string]any
}

// Failed reports whether the shape is an envelope declaring an application-level failure.
func (s Shape) Failed() bool {
	return s.Kind == ShapeEnvelope && !s.Success
}

// DetectShape classifies a decoded JSON body. Envelope detection runs before array and
// object detection; checking for a bare object first would wrap the whole envelope as a
// single record.
func DetectShape(raw any) Shape {
	if raw == nil {
		return Shape{Kind: ShapeEmpty}
	}
	if obj := AsMap(raw); obj != nil {
		if flag, ok := Lookup(obj, successKeys...); ok {
			payload, _ := Lookup(obj, dataKeys...)
			message, _ := Lookup(obj, messageKeys...)
			return Shape{
				Kind:    ShapeEnvelope,
				Success: Truthy(flag),
				Message: AsString(message),
				Payload: payload,
			}
		}
		return Shape{Kind: ShapeObject, Object: obj}
	}
	if items := AsInterfaceSlice(raw); items != nil {
		return Shape{Kind: ShapeArray, Array: items}
	}
	return Shape{Kind: ShapeEmpty}
}

// EnvelopeMessage returns the message of an envelope body, or "" for any other shape.
func EnvelopeMessage(raw any) string {
	shape := DetectShape(raw)
	if shape.Kind != ShapeEnvelope {
		return ""
	}
	return shape.Message
}
