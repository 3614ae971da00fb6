package domain

import (
	"encoding/json"
	"math"
	"testing"
)

func TestOptionalNumber_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValue float64
		wantValid bool
	}{
		{name: "integer", input: `72`, wantValue: 72, wantValid: true},
		{name: "float", input: `37.8`, wantValue: 37.8, wantValid: true},
		{name: "negative", input: `-1`, wantValue: -1, wantValid: true},
		{name: "numeric string", input: `"130"`, wantValue: 130, wantValid: true},
		{name: "padded numeric string", input: `" 38.5 "`, wantValue: 38.5, wantValid: true},
		{name: "null", input: `null`, wantValid: false},
		{name: "empty string", input: `""`, wantValid: false},
		{name: "text", input: `"high"`, wantValid: false},
		{name: "NaN string", input: `"NaN"`, wantValid: false},
		{name: "bool", input: `true`, wantValid: false},
		{name: "object", input: `{"v":1}`, wantValid: false},
		{name: "array", input: `[1]`, wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n OptionalNumber
			if err := json.Unmarshal([]byte(tt.input), &n); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if !n.Set {
				t.Error("Set = false, want true for a present field")
			}
			if n.Valid != tt.wantValid {
				t.Fatalf("Valid = %v, want %v", n.Valid, tt.wantValid)
			}
			if tt.wantValid && n.Value != tt.wantValue {
				t.Errorf("Value = %v, want %v", n.Value, tt.wantValue)
			}
		})
	}
}

func TestOptionalNumber_InStruct(t *testing.T) {
	var req struct {
		Age      OptionalNumber `json:"age"`
		Severity OptionalNumber `json:"severity"`
	}

	if err := json.Unmarshal([]byte(`{"age":"70"}`), &req); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if v, ok := req.Age.Get(); !ok || v != 70 {
		t.Errorf("Age.Get() = (%v, %v), want (70, true)", v, ok)
	}
	if req.Severity.Set {
		t.Error("absent field should not be Set")
	}
	if got := req.Severity.Or(3); got != 3 {
		t.Errorf("Severity.Or(3) = %v, want 3", got)
	}
}

func TestOptionalNumber_MarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		n    OptionalNumber
		want string
	}{
		{"valid", Number(12.5), `12.5`},
		{"invalid", OptionalNumber{Set: true}, `null`},
		{"zero value", OptionalNumber{}, `null`},
		{"infinite", Number(math.Inf(1)), `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.n)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Marshal() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNumber_NaN(t *testing.T) {
	if Number(math.NaN()).Valid {
		t.Error("Number(NaN) should be invalid")
	}
}
