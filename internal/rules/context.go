// Package rules provides the rule-based triage engine: it builds an
// evaluation context from a request, tests rule conditions against it,
// aggregates the outputs of matching rules and assembles the final result.
package rules

import (
	"bytes"
	"encoding/json"

	"github.com/health-triage/internal/domain"
)

// Age thresholds and the comorbidity flags they imply.
const (
	SeniorAge     = 65
	PediatricAge  = 5
	FlagSenior    = "C_AGE65P"
	FlagPediatric = "C_AGE5M"
)

// Context is the normalized view of one request that rules are evaluated
// against. It is immutable once built.
type Context struct {
	symptoms      *OrderedSet
	comorbidities *OrderedSet
	vitals        map[string]float64

	severityMap map[string]domain.OptionalNumber
	durationMap map[string]domain.OptionalNumber

	severity      domain.OptionalNumber
	durationHours domain.OptionalNumber
}

// ParseRequest decodes a raw request body. The top level must be a JSON
// object; fields of the wrong shape are treated as absent.
func ParseRequest(raw []byte) (*domain.TriageRequest, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, domain.WrapError("parse_request", domain.ErrInvalidInput)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, domain.WrapError("parse_request", domain.ErrInvalidInput)
	}

	req := &domain.TriageRequest{
		Symptoms:       decodeList[string](fields["symptoms"]),
		Comorbidities:  decodeList[string](fields["comorbidities"]),
		Vitals:         decodeMap[domain.OptionalNumber](fields["vitals"]),
		SeverityMap:    decodeMap[domain.OptionalNumber](fields["severity_map"]),
		DurationMap:    decodeMap[domain.OptionalNumber](fields["duration_map"]),
		SymptomDetails: decodeMap[domain.SymptomDetail](fields["symptom_details"]),
	}
	decodeField(fields, "demographics", &req.Demographics)
	decodeField(fields, "severity", &req.Severity)
	decodeField(fields, "duration_hours", &req.DurationHours)

	return req, nil
}

// decodeList decodes a JSON array element by element. Elements of the wrong
// type are dropped; a value that is not an array yields nil.
func decodeList[T any](raw json.RawMessage) []T {
	if raw == nil {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return nil
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// decodeMap is the object counterpart of decodeList.
func decodeMap[T any](raw json.RawMessage) map[string]T {
	if raw == nil {
		return nil
	}
	var items map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return nil
	}
	out := make(map[string]T, len(items))
	for key, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			continue
		}
		out[key] = v
	}
	return out
}

// decodeField unmarshals fields[key] into dst, leaving dst zeroed when the
// value does not fit.
func decodeField[T any](fields map[string]json.RawMessage, key string, dst *T) {
	raw, ok := fields[key]
	if !ok {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return
	}
	*dst = v
}

// NewContext builds the evaluation context for req.
func NewContext(req *domain.TriageRequest) *Context {
	if req == nil {
		req = &domain.TriageRequest{}
	}

	ctx := &Context{
		symptoms:      NewOrderedSet(req.Symptoms...),
		comorbidities: NewOrderedSet(req.Comorbidities...),
		vitals:        make(map[string]float64, len(req.Vitals)),
		severityMap:   make(map[string]domain.OptionalNumber, len(req.SeverityMap)),
		durationMap:   make(map[string]domain.OptionalNumber, len(req.DurationMap)),
		severity:      req.Severity,
		durationHours: req.DurationHours,
	}

	if age, ok := req.Demographics.Age.Get(); ok {
		if age >= SeniorAge {
			ctx.comorbidities.Add(FlagSenior)
		}
		if age <= PediatricAge {
			ctx.comorbidities.Add(FlagPediatric)
		}
	}

	for field, n := range req.Vitals {
		if v, ok := n.Get(); ok {
			ctx.vitals[field] = v
		}
	}

	for id, n := range req.SeverityMap {
		ctx.severityMap[id] = n
	}
	for id, n := range req.DurationMap {
		ctx.durationMap[id] = n
	}
	for id, detail := range req.SymptomDetails {
		if detail.Severity.Set {
			ctx.severityMap[id] = detail.Severity
		}
		if detail.DurationHours.Set {
			ctx.durationMap[id] = detail.DurationHours
		}
	}

	return ctx
}

// Symptoms returns the reported symptoms in request order.
func (c *Context) Symptoms() []string {
	return c.symptoms.Values()
}

// Comorbidities returns reported and age-derived comorbidities.
func (c *Context) Comorbidities() []string {
	return c.comorbidities.Values()
}

// HasSymptom reports whether id was reported as a symptom.
func (c *Context) HasSymptom(id string) bool {
	return c.symptoms.Has(id)
}

// Selected reports whether id is a reported symptom or comorbidity.
func (c *Context) Selected(id string) bool {
	return c.symptoms.Has(id) || c.comorbidities.Has(id)
}

// Vital returns the numeric value of a vital and whether it was supplied.
func (c *Context) Vital(field string) (float64, bool) {
	v, ok := c.vitals[field]
	return v, ok
}

// SymptomSeverity returns the severity of one symptom, falling back to the
// global severity (0 when absent).
func (c *Context) SymptomSeverity(id string) float64 {
	if v, ok := c.severityMap[id].Get(); ok {
		return v
	}
	return c.severity.Or(0)
}

// SymptomDuration returns the duration in hours of one symptom, falling back
// to the global duration (0 when absent).
func (c *Context) SymptomDuration(id string) float64 {
	if v, ok := c.durationMap[id].Get(); ok {
		return v
	}
	return c.durationHours.Or(0)
}

// Severity returns the global severity, 0 when absent.
func (c *Context) Severity() float64 {
	return c.severity.Or(0)
}

// DurationHours returns the global duration, 0 when absent.
func (c *Context) DurationHours() float64 {
	return c.durationHours.Or(0)
}
