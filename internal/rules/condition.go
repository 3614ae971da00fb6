package rules

import (
	"strconv"
	"strings"

	"github.com/health-triage/internal/domain"
)

// MatchResult is the outcome of testing one rule's conditions.
type MatchResult struct {
	// Matched reports whether every specified clause held.
	Matched bool

	// Hits lists one token per satisfied clause, for the explain trail.
	Hits []string
}

var noMatch = MatchResult{}

// Match tests spec against ctx. Clauses are checked in a fixed order and the
// first failing clause ends evaluation; hits gathered so far are discarded.
func Match(spec domain.ConditionSpec, ctx *Context) MatchResult {
	var hits []string

	if spec.AllOf != nil {
		for _, id := range spec.AllOf {
			if !ctx.Selected(id) {
				return noMatch
			}
		}
		hits = append(hits, "all_of:"+strings.Join(spec.AllOf, ","))
	}

	if spec.AnyOf != nil {
		present := selectedOf(ctx, spec.AnyOf)
		if len(present) == 0 {
			return noMatch
		}
		hits = append(hits, "any_of:"+strings.Join(present, ","))
	}

	if spec.NoneOf != nil {
		for _, id := range spec.NoneOf {
			if ctx.Selected(id) {
				return noMatch
			}
		}
		hits = append(hits, "none_of:ok")
	}

	// Despite the name, a non-empty optional_any_of is a required gate.
	if len(spec.OptionalAnyOf) > 0 {
		present := selectedOf(ctx, spec.OptionalAnyOf)
		if len(present) == 0 {
			return noMatch
		}
		hits = append(hits, "optional_any_of:"+strings.Join(present, ","))
	}

	if len(spec.AnyVitals) > 0 {
		var passed []string
		for _, vc := range spec.AnyVitals {
			if EvalVital(ctx, vc) {
				passed = append(passed, formatVital(vc))
			}
		}
		if len(passed) == 0 {
			return noMatch
		}
		hits = append(hits, "any_vitals:"+strings.Join(passed, ","))
	}

	if len(spec.AllVitals) > 0 {
		for _, vc := range spec.AllVitals {
			if !EvalVital(ctx, vc) {
				return noMatch
			}
		}
		hits = append(hits, "all_vitals:ok")
	}

	for _, vc := range spec.OptionalVitals {
		if _, ok := ctx.Vital(vc.Field); !ok {
			continue
		}
		if !EvalVital(ctx, vc) {
			return noMatch
		}
		hits = append(hits, "optional_vitals:"+formatVital(vc))
	}

	if spec.DurationHoursMin != nil {
		if maxOver(ctx, referencedSymptoms(spec), ctx.SymptomDuration, ctx.DurationHours()) < *spec.DurationHoursMin {
			return noMatch
		}
		hits = append(hits, "duration_hours_min:"+formatNumber(*spec.DurationHoursMin))
	}

	if spec.SeverityMin != nil {
		if maxOver(ctx, referencedSymptoms(spec), ctx.SymptomSeverity, ctx.Severity()) < *spec.SeverityMin {
			return noMatch
		}
		hits = append(hits, "severity_min:"+formatNumber(*spec.SeverityMin))
	}

	if hits == nil {
		hits = []string{}
	}
	return MatchResult{Matched: true, Hits: hits}
}

// EvalVital compares one vital against its threshold. A vital that was not
// supplied as a number never satisfies the comparison.
func EvalVital(ctx *Context, vc domain.VitalCondition) bool {
	if vc.Field == "" {
		return false
	}
	v, ok := ctx.Vital(vc.Field)
	if !ok {
		return false
	}
	return vc.Op.Compare(v, vc.Threshold())
}

// referencedSymptoms returns the identifiers a duration or severity floor
// applies to: all_of when specified, otherwise any_of.
func referencedSymptoms(spec domain.ConditionSpec) []string {
	if spec.AllOf != nil {
		return spec.AllOf
	}
	return spec.AnyOf
}

// maxOver returns the largest per-symptom value among the referenced ids
// that were reported as symptoms, or fallback when none were.
func maxOver(ctx *Context, ids []string, value func(string) float64, fallback float64) float64 {
	found := false
	var best float64
	for _, id := range ids {
		if !ctx.HasSymptom(id) {
			continue
		}
		v := value(id)
		if !found || v > best {
			best = v
			found = true
		}
	}
	if !found {
		return fallback
	}
	return best
}

func selectedOf(ctx *Context, ids []string) []string {
	var out []string
	for _, id := range ids {
		if ctx.Selected(id) {
			out = append(out, id)
		}
	}
	return out
}

func formatVital(vc domain.VitalCondition) string {
	return vc.Field + string(vc.Op) + formatNumber(vc.Threshold())
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
