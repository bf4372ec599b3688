// ABOUTME: Typed union for date-like values stored in case documents
// ABOUTME: Normalizes raw store timestamps, epoch millis and ISO strings into time.Time
package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"time"
)

// TimestampKind identifies which representation a Timestamp arrived in.
type TimestampKind int

const (
	TimestampAbsent TimestampKind = iota
	TimestampRaw                  // {"seconds": n, "nanoseconds": n}
	TimestampDate                 // epoch milliseconds
	TimestampISO                  // ISO-8601 / RFC3339 string
	TimestampInvalid              // non-null value of no known shape
)

// Normalized times must fit JSON's four-digit years. maxMillis is the
// largest epoch offset a JavaScript Date accepts.
const (
	maxMillis  = 8.64e15
	maxSeconds = maxMillis / 1000
	minYear    = 0
	maxYear    = 9999
)

// RawTimestamp is the document store's native timestamp object.
type RawTimestamp struct {
	Seconds     int64 `json:"seconds"`
	Nanoseconds int64 `json:"nanoseconds"`
}

// Timestamp holds a date-like field exactly as it was stored. Use Time to
// normalize it; a Timestamp never fails to decode.
type Timestamp struct {
	Kind   TimestampKind
	Raw    RawTimestamp
	Millis float64
	ISO    string
	Other  json.RawMessage
}

// isoLayouts are tried in order when normalizing string timestamps.
var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NewTimestamp wraps an already-normalized time as an ISO timestamp.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Kind: TimestampISO, ISO: t.UTC().Format(time.RFC3339Nano)}
}

// Present reports whether the field held a non-null value, parseable or not.
func (ts Timestamp) Present() bool {
	return ts.Kind != TimestampAbsent
}

// Time normalizes the timestamp. Absent, unparseable or out-of-range values
// return false.
func (ts Timestamp) Time() (time.Time, bool) {
	t, ok := ts.normalize()
	if !ok || t.Year() < minYear || t.Year() > maxYear {
		return time.Time{}, false
	}
	return t, true
}

func (ts Timestamp) normalize() (time.Time, bool) {
	switch ts.Kind {
	case TimestampRaw:
		if ts.Raw.Seconds > maxSeconds || ts.Raw.Seconds < -maxSeconds {
			return time.Time{}, false
		}
		return time.Unix(ts.Raw.Seconds, ts.Raw.Nanoseconds).UTC(), true
	case TimestampDate:
		if math.IsNaN(ts.Millis) || math.Abs(ts.Millis) > maxMillis {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(ts.Millis)).UTC(), true
	case TimestampISO:
		s := strings.TrimSpace(ts.ISO)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range isoLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// Ptr returns the normalized time as a pointer, nil when absent.
func (ts Timestamp) Ptr() *time.Time {
	t, ok := ts.Time()
	if !ok {
		return nil
	}
	return &t
}

// IsSet reports whether the timestamp normalizes to a real time.
func (ts Timestamp) IsSet() bool {
	_, ok := ts.Time()
	return ok
}

// UnmarshalJSON accepts every stored representation. Anything else that is
// not null is kept verbatim as TimestampInvalid rather than failing.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	*ts = Timestamp{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	ts.Kind = TimestampInvalid
	ts.Other = append(json.RawMessage(nil), data...)

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			*ts = Timestamp{Kind: TimestampISO, ISO: s}
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil
		}
		secs, okSecs := firstInt(obj, "seconds", "_seconds")
		nanos, _ := firstInt(obj, "nanoseconds", "_nanoseconds")
		if okSecs {
			*ts = Timestamp{Kind: TimestampRaw, Raw: RawTimestamp{Seconds: secs, Nanoseconds: nanos}}
		}
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err == nil {
			*ts = Timestamp{Kind: TimestampDate, Millis: n}
		}
	}
	return nil
}

// MarshalJSON writes timestamps back in their original representation.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	switch ts.Kind {
	case TimestampRaw:
		return json.Marshal(ts.Raw)
	case TimestampDate:
		return json.Marshal(ts.Millis)
	case TimestampISO:
		return json.Marshal(ts.ISO)
	case TimestampInvalid:
		if json.Valid(ts.Other) {
			return ts.Other, nil
		}
	}
	return []byte("null"), nil
}

func firstInt(obj map[string]json.RawMessage, keys ...string) (int64, bool) {
	for _, k := range keys {
		raw, ok := obj[k]
		if !ok {
			continue
		}
		var n float64
		if err := json.Unmarshal(raw, &n); err == nil && math.Abs(n) < math.MaxInt64 {
			return int64(n), true
		}
	}
	return 0, false
}
