package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var ErrMalformedPayload = errors.New("malformed event payload")

// Encode renders an event as a flat JSON object.
func Encode(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// Payload is a decoded event in generic key/value form. Consumers read it
// field by field and never rely on a shared schema.
type Payload map[string]any

func DecodePayload(b []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var p Payload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedPayload)
	}
	return p, nil
}

func (p Payload) EventID() string   { return p.String("eventId") }
func (p Payload) EventType() string { return p.String("eventType") }

func (p Payload) String(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Int returns 0 for a missing or null field.
func (p Payload) Int(key string) (int64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, nil
	}
	n, err := toInt(v)
	if err != nil {
		return 0, fmt.Errorf("%w: field %s: %v", ErrMalformedPayload, key, err)
	}
	return n, nil
}

// Bool returns false for a missing or null field.
func (p Payload) Bool(key string) (bool, error) {
	switch v := p[key].(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("%w: field %s: %v", ErrMalformedPayload, key, err)
		}
		return b, nil
	default:
		return false, fmt.Errorf("%w: field %s: unexpected %T", ErrMalformedPayload, key, v)
	}
}

// Time parses a timestamp field. A missing or null field yields time.Now().
func (p Payload) Time(key string) (time.Time, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return time.Now().UTC(), nil
	}
	t, err := ParseTimestamp(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: field %s: %v", ErrMalformedPayload, key, err)
	}
	return t, nil
}

// localDateTime is the zone-less layout some producers emit; it is read as UTC.
const localDateTime = "2006-01-02T15:04:05.999999999"

// ParseTimestamp accepts a time.Time, an RFC 3339 or zone-less ISO string, or
// a component array [year, month, day, hour, minute, second?, nanos?].
func ParseTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts.UTC(), nil
		}
		ts, err := time.ParseInLocation(localDateTime, t, time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("unrecognised timestamp %q", t)
		}
		return ts, nil
	case []any:
		return fromComponents(t)
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func fromComponents(parts []any) (time.Time, error) {
	if len(parts) < 5 || len(parts) > 7 {
		return time.Time{}, fmt.Errorf("timestamp array needs 5 to 7 components, got %d", len(parts))
	}
	var c [7]int
	for i, raw := range parts {
		n, err := toInt(raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp component %d: %v", i, err)
		}
		c[i] = int(n)
	}
	if c[1] < 1 || c[1] > 12 || c[2] < 1 || c[2] > 31 || c[3] < 0 || c[3] > 23 || c[4] < 0 || c[4] > 59 || c[5] < 0 || c[5] > 59 {
		return time.Time{}, fmt.Errorf("timestamp components out of range: %v", parts)
	}
	return time.Date(c[0], time.Month(c[1]), c[2], c[3], c[4], c[5], c[6], time.UTC), nil
}

func toInt(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	case float64:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}
