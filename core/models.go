package core

//go:generate go run ../cmd/musgen

import (
	"bytes"
	"encoding/json"
	"time"
)

// TimestampLayout is the ISO-8601 form used for record keys: UTC with
// millisecond precision. Keys in this layout sort lexically in time order.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Record is one timestamped observation snapshot.
// Timestamp is the record's unique key; Payload is never interpreted by storage.
type Record struct {
	Timestamp string  `json:"timestamp"`
	Payload   Payload `json:"payload"`
}

// Payload holds a record's attributes as compact JSON.
type Payload json.RawMessage

// emptyPayload is used when a record is created without attributes.
var emptyPayload = Payload(`{}`)

// NewPayload encodes attrs into a compact JSON payload.
// A nil attrs value produces an empty object.
func NewPayload(attrs any) (Payload, error) {
	if attrs == nil {
		return clonePayload(emptyPayload), nil
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return nil, err
	}
	return Payload(data), nil
}

// CompactPayload validates raw JSON and returns it in compact form.
func CompactPayload(raw []byte) (Payload, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return clonePayload(emptyPayload), nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return Payload(buf.Bytes()), nil
}

// Decode unmarshals the payload into v.
func (p Payload) Decode(v any) error {
	return json.Unmarshal(p, v)
}

// MarshalJSON emits the payload verbatim.
func (p Payload) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return p, nil
}

// UnmarshalJSON stores a compact copy of data.
func (p *Payload) UnmarshalJSON(data []byte) error {
	compact, err := CompactPayload(data)
	if err != nil {
		return err
	}
	*p = compact
	return nil
}

func clonePayload(p Payload) Payload {
	out := make(Payload, len(p))
	copy(out, p)
	return out
}

// NewRecord creates a record keyed by ts with attrs encoded as its payload.
func NewRecord(ts time.Time, attrs any) (*Record, error) {
	payload, err := NewPayload(attrs)
	if err != nil {
		return nil, err
	}
	return &Record{
		Timestamp: FormatTimestamp(ts),
		Payload:   payload,
	}, nil
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	return &Record{
		Timestamp: r.Timestamp,
		Payload:   clonePayload(r.Payload),
	}
}

// Time parses the record's timestamp.
func (r *Record) Time() (time.Time, error) {
	return ParseTimestamp(r.Timestamp)
}

// FormatTimestamp renders t as a record key.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses an ISO-8601 timestamp.
// Any RFC 3339 form is accepted, not just TimestampLayout.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
