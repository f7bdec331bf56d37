package event

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
)

// Event is an immutable record of a gameplay occurrence.
// Construct it with New or NewAt; the zero value has no type and no payload.
type Event struct {
	id        string
	typ       string
	payload   map[string]interface{}
	timestamp time.Time
}

// New creates an event stamped with the current time.
func New(typ string, payload map[string]interface{}) Event {
	return NewAt(typ, payload, time.Now())
}

// NewAt creates an event with an explicit timestamp. A zero ts falls back to now.
// The payload map is copied so later writes by the caller are not observed.
func NewAt(typ string, payload map[string]interface{}, ts time.Time) Event {
	if ts.IsZero() {
		ts = time.Now()
	}
	cp := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		cp[k] = v
	}
	return Event{
		id:        uuid.New().String(),
		typ:       typ,
		payload:   cp,
		timestamp: ts,
	}
}

func (e Event) ID() string           { return e.id }
func (e Event) Type() string         { return e.typ }
func (e Event) Timestamp() time.Time { return e.timestamp }

// Payload returns a shallow copy of the event data.
func (e Event) Payload() map[string]interface{} {
	out := make(map[string]interface{}, len(e.payload))
	for k, v := range e.payload {
		out[k] = v
	}
	return out
}

// Value returns the raw payload value for key.
func (e Event) Value(key string) (interface{}, bool) {
	v, ok := e.payload[key]
	return v, ok
}

// Int returns payload[key] as an int, or def when missing, not numeric, not
// finite or outside the int range.
func (e Event) Int(key string, def int) int {
	switch n := e.payload[key].(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		if n >= math.MinInt && n <= math.MaxInt {
			return int(n)
		}
		return def
	}
	f, ok := toFloat64(e.payload[key])
	if !ok || math.IsNaN(f) || f < math.MinInt || f >= math.MaxInt {
		return def
	}
	return int(f)
}

// Float returns payload[key] as a float64, or def when missing or not numeric.
func (e Event) Float(key string, def float64) float64 {
	if f, ok := toFloat64(e.payload[key]); ok {
		return f
	}
	return def
}

// String returns payload[key] as a string, or def when missing or not a string.
func (e Event) String(key, def string) string {
	if s, ok := e.payload[key].(string); ok {
		return s
	}
	return def
}

type wireEvent struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}

// MarshalJSON exposes the event for history and API responses.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEvent{
		ID:        e.id,
		Type:      e.typ,
		Payload:   e.payload,
		Timestamp: e.timestamp,
	})
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
