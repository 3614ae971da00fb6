// Package domain contains the core domain models and types.
// These models represent the business logic contracts and are independent
// of any infrastructure concerns.
package domain

import (
	"math"
	"slices"
	"time"
)

// Level represents the urgency classification of a triage outcome.
type Level string

const (
	LevelL1 Level = "L1"
	LevelL2 Level = "L2"
	LevelL3 Level = "L3"
	LevelL4 Level = "L4"
)

// Rank returns the ordinal urgency of the level. Higher is more urgent;
// unknown levels rank 0.
func (l Level) Rank() int {
	switch l {
	case LevelL1:
		return 4
	case LevelL2:
		return 3
	case LevelL3:
		return 2
	case LevelL4:
		return 1
	default:
		return 0
	}
}

// IsValid checks if the level value is one of the allowed values.
func (l Level) IsValid() bool {
	return l.Rank() > 0
}

// MoreUrgent returns the more urgent of a and b. An empty level loses to any
// valid one.
func MoreUrgent(a, b Level) Level {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// CompareOp is a numeric comparison operator used by vital conditions.
type CompareOp string

const (
	OpLess         CompareOp = "<"
	OpLessEqual    CompareOp = "<="
	OpGreater      CompareOp = ">"
	OpGreaterEqual CompareOp = ">="
	OpEqual        CompareOp = "=="
	OpNotEqual     CompareOp = "!="
)

// IsValid checks if the operator is supported.
func (op CompareOp) IsValid() bool {
	switch op {
	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpEqual, OpNotEqual:
		return true
	default:
		return false
	}
}

// Compare applies the operator to a and b using IEEE semantics. NaN operands
// compare false for everything except !=.
func (op CompareOp) Compare(a, b float64) bool {
	switch op {
	case OpLess:
		return a < b
	case OpLessEqual:
		return a <= b
	case OpGreater:
		return a > b
	case OpGreaterEqual:
		return a >= b
	case OpEqual:
		return a == b
	case OpNotEqual:
		return a != b
	default:
		return false
	}
}

// VitalCondition compares one named vital against a threshold. Value is a
// pointer so a missing threshold is rejected at load time instead of
// decoding as 0.
type VitalCondition struct {
	Field string    `json:"field" yaml:"field" validate:"required"`
	Op    CompareOp `json:"op" yaml:"op" validate:"required,compare_op"`
	Value *float64  `json:"value" yaml:"value" validate:"required"`
}

// Threshold returns the comparison value, NaN when it is missing.
func (vc VitalCondition) Threshold() float64 {
	if vc.Value == nil {
		return math.NaN()
	}
	return *vc.Value
}

// ConditionSpec is the predicate part of a rule. Every specified clause must
// hold for the rule to match.
type ConditionSpec struct {
	AllOf         []string `json:"all_of,omitempty" yaml:"all_of,omitempty" validate:"omitempty,dive,required"`
	AnyOf         []string `json:"any_of,omitempty" yaml:"any_of,omitempty" validate:"omitempty,dive,required"`
	NoneOf        []string `json:"none_of,omitempty" yaml:"none_of,omitempty" validate:"omitempty,dive,required"`
	OptionalAnyOf []string `json:"optional_any_of,omitempty" yaml:"optional_any_of,omitempty" validate:"omitempty,dive,required"`

	AnyVitals      []VitalCondition `json:"any_vitals,omitempty" yaml:"any_vitals,omitempty" validate:"omitempty,dive"`
	AllVitals      []VitalCondition `json:"all_vitals,omitempty" yaml:"all_vitals,omitempty" validate:"omitempty,dive"`
	OptionalVitals []VitalCondition `json:"optional_vitals,omitempty" yaml:"optional_vitals,omitempty" validate:"omitempty,dive"`

	DurationHoursMin *float64 `json:"duration_hours_min,omitempty" yaml:"duration_hours_min,omitempty"`
	SeverityMin      *float64 `json:"severity_min,omitempty" yaml:"severity_min,omitempty"`
}

// RuleOutputs is what a matching rule contributes to the result.
type RuleOutputs struct {
	LevelOverride *Level   `json:"level_override,omitempty" yaml:"level_override,omitempty"`
	Reasons       []string `json:"reasons,omitempty" yaml:"reasons,omitempty"`
	Actions       []string `json:"actions,omitempty" yaml:"actions,omitempty"`
	Departments   []string `json:"departments,omitempty" yaml:"departments,omitempty"`
	DietTags      []string `json:"diet_tags,omitempty" yaml:"diet_tags,omitempty"`
}

// Rule is one entry of the rule set. Rules are immutable once loaded.
type Rule struct {
	// ID is the unique identifier for this rule.
	ID string `json:"id" yaml:"id" validate:"required"`

	// Priority orders evaluation; higher evaluates first.
	Priority int `json:"priority" yaml:"priority"`

	Conditions ConditionSpec `json:"conditions" yaml:"conditions"`
	Outputs    RuleOutputs   `json:"outputs" yaml:"outputs"`
}

// DietTag is a catalog entry referenced by rules through its ID.
type DietTag struct {
	ID          string   `json:"id" yaml:"id" validate:"required"`
	Name        string   `json:"name,omitempty" yaml:"name,omitempty"`
	Description string   `json:"description" yaml:"description" validate:"required"`
	Recommended []string `json:"recommended,omitempty" yaml:"recommended,omitempty"`
	Avoid       []string `json:"avoid,omitempty" yaml:"avoid,omitempty"`
}

// DepartmentMapping maps a symptom to the departments used when no rule
// supplied one.
type DepartmentMapping struct {
	Symptom     string   `json:"symptom" yaml:"symptom" validate:"required"`
	Departments []string `json:"departments" yaml:"departments" validate:"dive,required"`
}

// SymptomDetail carries per-symptom severity and duration.
type SymptomDetail struct {
	Severity      OptionalNumber `json:"severity"`
	DurationHours OptionalNumber `json:"duration_hours"`
}

// Demographics describes the subject of a triage request.
type Demographics struct {
	Age OptionalNumber `json:"age"`
}

// TriageRequest is the parsed form of a raw triage request.
type TriageRequest struct {
	Symptoms       []string                  `json:"symptoms,omitempty"`
	Comorbidities  []string                  `json:"comorbidities,omitempty"`
	Demographics   Demographics              `json:"demographics"`
	Vitals         map[string]OptionalNumber `json:"vitals,omitempty"`
	Severity       OptionalNumber            `json:"severity"`
	DurationHours  OptionalNumber            `json:"duration_hours"`
	SeverityMap    map[string]OptionalNumber `json:"severity_map,omitempty"`
	DurationMap    map[string]OptionalNumber `json:"duration_map,omitempty"`
	SymptomDetails map[string]SymptomDetail  `json:"symptom_details,omitempty"`
}

// ExplainEntry records which clauses of a matched rule were satisfied.
type ExplainEntry struct {
	RuleID    string   `json:"rule_id"`
	Priority  int      `json:"priority"`
	HitFields []string `json:"hit_fields"`
}

// LanguageInfo describes a UI language the result can be rendered in.
type LanguageInfo struct {
	Label string `json:"label"`
}

// TriageResult is the output envelope of one evaluation.
type TriageResult struct {
	Level             Level                   `json:"level"`
	MatchedRules      []string                `json:"matched_rules"`
	Explain           []ExplainEntry          `json:"explain"`
	Reasons           []string                `json:"reasons"`
	Departments       []string                `json:"departments"`
	DietTags          []DietTag               `json:"diet_tags"`
	Actions           []string                `json:"actions"`
	RedFlags          []string                `json:"red_flags"`
	Disclaimer        string                  `json:"disclaimer"`
	EmergencyContacts []string                `json:"emergency_tw"`
	I18nAvailable     map[string]LanguageInfo `json:"i18n_available"`
}

// TriageResponse wraps the triage result with metadata.
type TriageResponse struct {
	// OK indicates whether the evaluation completed successfully.
	OK bool `json:"ok"`

	// Result contains the triage result if successful.
	Result *TriageResult `json:"result,omitempty"`

	// Error is a machine readable error code if the request failed.
	Error string `json:"error,omitempty"`

	// Message contains error details if the request failed.
	Message string `json:"message,omitempty"`

	// SnapshotVersion identifies the configuration the result was computed with.
	SnapshotVersion string `json:"snapshot_version,omitempty"`

	// ProcessedAt is the timestamp when the evaluation was completed.
	ProcessedAt time.Time `json:"processed_at"`
}

// Clone returns a deep copy of r.
func (r Rule) Clone() Rule {
	c := r
	c.Conditions.AllOf = slices.Clone(r.Conditions.AllOf)
	c.Conditions.AnyOf = slices.Clone(r.Conditions.AnyOf)
	c.Conditions.NoneOf = slices.Clone(r.Conditions.NoneOf)
	c.Conditions.OptionalAnyOf = slices.Clone(r.Conditions.OptionalAnyOf)
	c.Conditions.AnyVitals = cloneVitals(r.Conditions.AnyVitals)
	c.Conditions.AllVitals = cloneVitals(r.Conditions.AllVitals)
	c.Conditions.OptionalVitals = cloneVitals(r.Conditions.OptionalVitals)
	c.Conditions.DurationHoursMin = clonePtr(r.Conditions.DurationHoursMin)
	c.Conditions.SeverityMin = clonePtr(r.Conditions.SeverityMin)

	c.Outputs.LevelOverride = clonePtr(r.Outputs.LevelOverride)
	c.Outputs.Reasons = slices.Clone(r.Outputs.Reasons)
	c.Outputs.Actions = slices.Clone(r.Outputs.Actions)
	c.Outputs.Departments = slices.Clone(r.Outputs.Departments)
	c.Outputs.DietTags = slices.Clone(r.Outputs.DietTags)
	return c
}

// Clone returns a deep copy of t.
func (t DietTag) Clone() DietTag {
	c := t
	c.Recommended = slices.Clone(t.Recommended)
	c.Avoid = slices.Clone(t.Avoid)
	return c
}

func cloneVitals(in []VitalCondition) []VitalCondition {
	if in == nil {
		return nil
	}
	out := make([]VitalCondition, len(in))
	for i, vc := range in {
		vc.Value = clonePtr(vc.Value)
		out[i] = vc
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Float64Ptr returns a pointer to v. Handy for building rules in code.
func Float64Ptr(v float64) *float64 {
	return &v
}

// LevelPtr returns a pointer to l.
func LevelPtr(l Level) *Level {
	return &l
}
