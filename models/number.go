// ABOUTME: Lenient numeric field type for case documents
// ABOUTME: Accepts JSON numbers or numeric strings, defaulting everything else to zero
package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number is a float that decodes from a number or a numeric string.
// Malformed values decode to 0 instead of failing the whole document.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = 0
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var f float64
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		parsed, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
		if err != nil {
			return nil
		}
		f = parsed
	} else if err := json.Unmarshal(data, &f); err != nil {
		return nil
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	*n = Number(f)
	return nil
}

// Float returns the value as a float64.
func (n Number) Float() float64 {
	return float64(n)
}

// Int truncates the value to an int.
func (n Number) Int() int {
	return int(n)
}

// OptionalNumber distinguishes an absent number from zero.
type OptionalNumber struct {
	Value Number
	Set   bool
}

func (o *OptionalNumber) UnmarshalJSON(data []byte) error {
	*o = OptionalNumber{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if err := o.Value.UnmarshalJSON(data); err != nil {
		return nil
	}
	// A malformed value decodes to zero; only count it as set when it parsed.
	if o.Value != 0 || isZeroLiteral(data) {
		o.Set = true
	}
	return nil
}

func (o OptionalNumber) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(float64(o.Value))
}

func isZeroLiteral(data []byte) bool {
	s := strings.Trim(string(data), `" `)
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && f == 0
}
