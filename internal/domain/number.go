package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// OptionalNumber is a leniently decoded numeric field. Requests come from
// browser forms, so numbers may arrive as JSON numbers or numeric strings.
// Anything else decodes without error into an invalid value.
type OptionalNumber struct {
	// Value is the parsed number; meaningful only when Valid is true.
	Value float64

	// Valid reports whether the field held a usable number.
	Valid bool

	// Set reports whether the field was present in the input at all,
	// including explicit null or non-numeric values.
	Set bool
}

// Number returns a valid OptionalNumber holding v.
func Number(v float64) OptionalNumber {
	return OptionalNumber{Value: v, Valid: !math.IsNaN(v), Set: true}
}

// Get returns the value and whether it is usable.
func (n OptionalNumber) Get() (float64, bool) {
	return n.Value, n.Valid
}

// Or returns the value, or def when the number is not usable.
func (n OptionalNumber) Or(def float64) float64 {
	if n.Valid {
		return n.Value
	}
	return def
}

// UnmarshalJSON implements json.Unmarshaler. It never fails.
func (n *OptionalNumber) UnmarshalJSON(data []byte) error {
	*n = OptionalNumber{Set: true}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var v float64
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		v = f
	default:
		if err := json.Unmarshal(data, &v); err != nil {
			return nil
		}
	}

	if math.IsNaN(v) {
		return nil
	}
	n.Value = v
	n.Valid = true
	return nil
}

// MarshalJSON implements json.Marshaler. Invalid numbers encode as null.
func (n OptionalNumber) MarshalJSON() ([]byte, error) {
	if !n.Valid || math.IsInf(n.Value, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}
