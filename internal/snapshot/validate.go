package snapshot

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/health-triage/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report field names as they appear in config files.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("compare_op", func(fl validator.FieldLevel) bool {
		return domain.CompareOp(fl.Field().String()).IsValid()
	})

	return v
}

// Validate checks every part of a configuration. All problems are reported
// together; the error wraps domain.ErrInvalidConfig.
func Validate(parts Parts) error {
	var errs []error

	ruleIDs := make(map[string]int, len(parts.Rules))
	for i, r := range parts.Rules {
		label := fmt.Sprintf("rules[%d]", i)
		if r.ID != "" {
			label = fmt.Sprintf("rules[%d] (%s)", i, r.ID)
		}

		if err := validate.Struct(r); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", label, err))
		}
		if prev, ok := ruleIDs[r.ID]; ok && r.ID != "" {
			errs = append(errs, fmt.Errorf("%s: duplicate rule id, first defined at rules[%d]", label, prev))
		} else {
			ruleIDs[r.ID] = i
		}
		if r.Conditions.AnyOf != nil && len(r.Conditions.AnyOf) == 0 {
			errs = append(errs, fmt.Errorf("%s: any_of is specified but empty and can never match", label))
		}
		if lvl := r.Outputs.LevelOverride; lvl != nil && !lvl.IsValid() {
			errs = append(errs, fmt.Errorf("%s: level_override must be L1, L2, L3 or L4, got %q", label, *lvl))
		}
	}

	tagIDs := make(map[string]struct{}, len(parts.DietTags))
	for i, tag := range parts.DietTags {
		if err := validate.Struct(tag); err != nil {
			errs = append(errs, fmt.Errorf("diet_tags[%d]: %w", i, err))
		}
		if _, ok := tagIDs[tag.ID]; ok && tag.ID != "" {
			errs = append(errs, fmt.Errorf("diet_tags[%d]: duplicate diet tag id %q", i, tag.ID))
		}
		tagIDs[tag.ID] = struct{}{}
	}

	symptoms := make(map[string]struct{}, len(parts.DepartmentMap))
	for i, m := range parts.DepartmentMap {
		if err := validate.Struct(m); err != nil {
			errs = append(errs, fmt.Errorf("department_map[%d]: %w", i, err))
		}
		if _, ok := symptoms[m.Symptom]; ok && m.Symptom != "" {
			errs = append(errs, fmt.Errorf("department_map[%d]: duplicate symptom %q", i, m.Symptom))
		}
		symptoms[m.Symptom] = struct{}{}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
