package rules

import (
	"slices"

	"github.com/health-triage/internal/domain"
)

// DefaultDepartment is used when neither rules nor the fallback table
// produced a department.
const DefaultDepartment = "家醫科"

// Default reasons, chosen by whether the final level is the self-care level.
const (
	ReasonSelfCare = "目前可先自我照護並觀察"
	ReasonSeekCare = "符合就醫評估條件"
	Disclaimer     = "本系統提供健康資訊與就醫建議，不取代醫師診斷。若症狀惡化請立即就醫。"
)

var redFlags = []string{
	"胸痛/胸悶持續或加重、冒冷汗、放射痛",
	"呼吸困難、喘到無法說完整句子、血氧偏低",
	"意識改變、昏厥、抽搐",
	"口齒不清、單側無力、視力突然改變",
	"大量出血、黑便/吐血",
	"高燒合併頸部僵硬、紫斑或精神混亂",
	"嚴重過敏：喘、喉頭緊、嘴唇腫",
}

var emergencyContacts = []string{
	"119（緊急救護）",
	"1925（安心專線）",
}

// RedFlags returns the warning signs attached to every result.
func RedFlags() []string {
	return slices.Clone(redFlags)
}

// EmergencyContacts returns the emergency numbers attached to every result.
func EmergencyContacts() []string {
	return slices.Clone(emergencyContacts)
}

// Languages returns the UI languages a result can be shown in.
func Languages() map[string]domain.LanguageInfo {
	return map[string]domain.LanguageInfo{
		"zh": {Label: "繁中"},
		"en": {Label: "English"},
	}
}

// Assemble turns an aggregation into the final result, applying department
// and reason defaults and resolving diet tags against cfg.
func Assemble(agg *Aggregation, ctx *Context, cfg Config) *domain.TriageResult {
	level := agg.FinalLevel()

	departments := agg.Departments.Values()
	if len(departments) == 0 {
		fallback := NewOrderedSet()
		for _, symptom := range ctx.Symptoms() {
			fallback.Add(cfg.DepartmentsFor(symptom)...)
		}
		if fallback.Len() == 0 {
			fallback.Add(DefaultDepartment)
		}
		departments = fallback.Values()
	}

	dietTags := make([]domain.DietTag, 0, agg.DietTagIDs.Len())
	for _, id := range agg.DietTagIDs.Values() {
		if tag, ok := cfg.DietTag(id); ok {
			dietTags = append(dietTags, tag)
		}
	}

	reasons := agg.Reasons.Values()
	if len(reasons) == 0 {
		if level == domain.LevelL4 {
			reasons = append(reasons, ReasonSelfCare)
		} else {
			reasons = append(reasons, ReasonSeekCare)
		}
	}

	matched := agg.MatchedRules
	if matched == nil {
		matched = []string{}
	}
	explain := agg.Explain
	if explain == nil {
		explain = []domain.ExplainEntry{}
	}

	return &domain.TriageResult{
		Level:             level,
		MatchedRules:      matched,
		Explain:           explain,
		Reasons:           reasons,
		Departments:       departments,
		DietTags:          dietTags,
		Actions:           agg.Actions.Values(),
		RedFlags:          RedFlags(),
		Disclaimer:        Disclaimer,
		EmergencyContacts: EmergencyContacts(),
		I18nAvailable:     Languages(),
	}
}
