package localdb

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Well-known document fields.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// TimeLayout is the layout timestamps are stamped with.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// Document is a schemaless record. Values are whatever encoding/json
// produces when decoding into an interface: maps, slices, strings, float64,
// bool and nil.
type Document map[string]any

// ID returns the document identifier, or "" if the document has none.
func (d Document) ID() string {
	switch v := d[FieldID].(type) {
	case string:
		return v
	case nil:
		return ""
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(map[string]any(d)).(map[string]any)
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case Document:
		return Document(cloneValue(map[string]any(val)).(map[string]any))
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}

// Time parses the named field as a timestamp. Strings are accepted in the
// common RFC 3339 variants; numbers are epoch milliseconds.
func (d Document) Time(field string) (time.Time, bool) {
	return ParseTime(d[field])
}

// ParseTime converts a decoded JSON value into a time.
func ParseTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case string:
		if val == "" {
			return time.Time{}, false
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, val); err == nil {
				return t, true
			}
		}
		if ms, err := strconv.ParseInt(val, 10, 64); err == nil {
			return time.UnixMilli(ms), true
		}
	case float64:
		return time.UnixMilli(int64(val)), true
	case int64:
		return time.UnixMilli(val), true
	case int:
		return time.UnixMilli(int64(val)), true
	case json.Number:
		if ms, err := val.Int64(); err == nil {
			return time.UnixMilli(ms), true
		}
	case time.Time:
		return val, true
	}
	return time.Time{}, false
}

// FormatTime renders t the way Put stamps timestamps.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// FromValue converts any JSON-encodable value into a Document.
func FromValue(v any) (Document, error) {
	if doc, ok := v.(Document); ok {
		return doc.Clone(), nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("value is not a JSON object: %w", err)
	}
	return doc, nil
}

// Normalize returns the document as it reads back from storage: numbers
// become float64 and nested values plain JSON types.
func Normalize(d Document) (Document, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}

// Decode converts the document into a typed value.
func (d Document) Decode(out any) error {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	return json.Unmarshal(b, out)
}
