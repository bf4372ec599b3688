// ABOUTME: Tests for the Timestamp union and its normalization
// ABOUTME: Covers every stored representation plus malformed inputs
package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamp_Normalize(t *testing.T) {
	want := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	epoch := time.Unix(0, 0).UTC()
	lastDay := time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

	tests := []struct {
		name     string
		input    string
		kind     TimestampKind
		expected *time.Time
	}{
		{"raw store timestamp", `{"seconds": 1741944600, "nanoseconds": 0}`, TimestampRaw, &want},
		{"raw admin timestamp", `{"_seconds": 1741944600, "_nanoseconds": 0}`, TimestampRaw, &want},
		{"epoch millis", `1741944600000`, TimestampDate, &want},
		{"rfc3339", `"2025-03-14T09:30:00Z"`, TimestampISO, &want},
		{"rfc3339 with offset", `"2025-03-14T15:00:00+05:30"`, TimestampISO, &want},
		{"js toISOString", `"2025-03-14T09:30:00.000Z"`, TimestampISO, &want},
		{"null", `null`, TimestampAbsent, nil},
		{"empty string", `""`, TimestampISO, nil},
		{"garbage string", `"next tuesday"`, TimestampISO, nil},
		{"object without seconds", `{"foo": 1}`, TimestampInvalid, nil},
		{"zero raw timestamp", `{"seconds": 0, "nanoseconds": 0}`, TimestampRaw, &epoch},
		{"boolean", `true`, TimestampInvalid, nil},
		{"array", `[1,2]`, TimestampInvalid, nil},
		{"millis past date range", `1e20`, TimestampDate, nil},
		{"millis just past date range", `9e15`, TimestampDate, nil},
		{"negative millis past date range", `-9e15`, TimestampDate, nil},
		{"seconds beyond year 9999", `{"seconds": 400000000000}`, TimestampRaw, nil},
		{"seconds overflowing int64", `{"seconds": 1e20}`, TimestampInvalid, nil},
		{"iso before year zero after offset", `"0000-01-01T00:00:00+05:00"`, TimestampISO, nil},
		{"last representable millis", `253402300799000`, TimestampDate, &lastDay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.input), &ts))
			assert.Equal(t, tt.kind, ts.Kind)

			assert.Equal(t, tt.kind != TimestampAbsent, ts.Present())

			got, ok := ts.Time()
			if tt.expected == nil {
				assert.False(t, ok)
				assert.True(t, got.IsZero())
				assert.Nil(t, ts.Ptr())
				return
			}
			assert.True(t, ok)
			assert.True(t, tt.expected.Equal(got), "expected %v, got %v", tt.expected, got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestTimestamp_DateOnly(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2025-06-01"`), &ts))

	got, ok := ts.Time()
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestTimestamp_InsideStruct(t *testing.T) {
	// A malformed date never fails decoding of the surrounding document.
	var phase RawPhase
	err := json.Unmarshal([]byte(`{"name":"Carpentry","startDate":"soon","endDate":{"seconds":1741944600},"completionPercent":"40"}`), &phase)
	require.NoError(t, err)

	assert.False(t, phase.StartDate.IsSet())
	assert.True(t, phase.EndDate.IsSet())
	assert.Equal(t, Number(40), phase.CompletionPercent)
}

func TestTimestamp_MarshalKeepsRepresentation(t *testing.T) {
	inputs := []string{
		`{"seconds":1741944600,"nanoseconds":5}`,
		`1741944600000`,
		`"2025-03-14T09:30:00Z"`,
		`null`,
		`true`,
		`{"foo":1}`,
	}

	for _, in := range inputs {
		var ts Timestamp
		require.NoError(t, json.Unmarshal([]byte(in), &ts))
		out, err := json.Marshal(ts)
		require.NoError(t, err)
		assert.JSONEq(t, in, string(out))
	}
}

func TestNewTimestamp(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("IST", 19800))
	ts := NewTimestamp(now)

	got, ok := ts.Time()
	require.True(t, ok)
	assert.True(t, now.Equal(got))
}

func TestTimestamp_OutOfRangeMarshalsAsNullTime(t *testing.T) {
	// Normalized values feed encoders that reject years past 9999.
	for _, in := range []string{`1e20`, `9e15`, `{"seconds":400000000000}`} {
		var ts Timestamp
		require.NoError(t, json.Unmarshal([]byte(in), &ts))

		out, err := json.Marshal(struct {
			At *time.Time `json:"at"`
		}{At: ts.Ptr()})
		require.NoError(t, err, in)
		assert.JSONEq(t, `{"at":null}`, string(out), in)
	}
}
