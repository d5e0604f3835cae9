package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

func asString(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		// JSON numbers arrive as float64; render integers without exponent.
		if value == float64(int64(value)) {
			return strconv.FormatInt(int64(value), 10)
		}
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	default:
		return fmt.Sprint(value)
	}
}

func asInt64(v any) int64 {
	switch value := v.(type) {
	case float64:
		return int64(value)
	case int:
		return int64(value)
	case int64:
		return value
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(value), ",", "")
		if s == "" {
			return 0
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f)
		}
		return 0
	default:
		return 0
	}
}

func asBool(v any) bool {
	switch value := v.(type) {
	case bool:
		return value
	case string:
		s := strings.ToLower(strings.TrimSpace(value))
		return s == "true" || s == "1" || s == "y"
	case float64:
		return value != 0
	default:
		return false
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func asTime(v any) time.Time {
	switch value := v.(type) {
	case time.Time:
		return value
	case string:
		s := strings.TrimSpace(value)
		if s == "" {
			return time.Time{}
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
		return time.Time{}
	case float64:
		if value <= 0 {
			return time.Time{}
		}
		// Epoch values above ~2001-09 in milliseconds; everything smaller
		// is treated as seconds.
		if value > 1e12 {
			return time.UnixMilli(int64(value)).UTC()
		}
		return time.Unix(int64(value), 0).UTC()
	default:
		return time.Time{}
	}
}

// list decodes a sub-collection that may arrive as a real JSON list or as a
// JSON-encoded string. Any parse failure or type mismatch yields an empty
// list; a malformed field must never crash a consumer.
func list[T any](v any) []T {
	var raw []byte
	switch value := v.(type) {
	case nil:
		return []T{}
	case string:
		if strings.TrimSpace(value) == "" {
			return []T{}
		}
		raw = []byte(value)
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return []T{}
		}
		raw = b
	}

	var out []T
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return []T{}
	}
	return out
}
