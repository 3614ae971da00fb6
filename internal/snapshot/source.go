package snapshot

import (
	"context"
	"encoding/json"

	"github.com/health-triage/internal/domain"
)

// Source supplies the configuration a snapshot is built from.
type Source interface {
	// Version returns a cheap staleness key. It changes whenever any part
	// of the configuration changes.
	Version(ctx context.Context) (string, error)

	// LoadRules returns the rule set in definition order.
	LoadRules(ctx context.Context) ([]domain.Rule, error)

	// LoadDietTags returns the diet tag catalog.
	LoadDietTags(ctx context.Context) ([]domain.DietTag, error)

	// LoadDepartmentMap returns the symptom to department fallback table.
	LoadDepartmentMap(ctx context.Context) ([]domain.DepartmentMapping, error)

	// LoadCatalogs returns the option catalogs keyed by name. Missing
	// catalogs are simply absent from the map.
	LoadCatalogs(ctx context.Context) (map[string]json.RawMessage, error)
}

// StaticSource serves fixed parts. Useful in tests and for embedding a
// configuration in code.
type StaticSource struct {
	// Rev is returned as the version.
	Rev   string
	Parts Parts
}

// Version returns s.Rev.
func (s *StaticSource) Version(context.Context) (string, error) {
	return s.Rev, nil
}

// LoadRules returns the configured rules.
func (s *StaticSource) LoadRules(context.Context) ([]domain.Rule, error) {
	return s.Parts.Rules, nil
}

// LoadDietTags returns the configured diet tags.
func (s *StaticSource) LoadDietTags(context.Context) ([]domain.DietTag, error) {
	return s.Parts.DietTags, nil
}

// LoadDepartmentMap returns the configured department table.
func (s *StaticSource) LoadDepartmentMap(context.Context) ([]domain.DepartmentMapping, error) {
	return s.Parts.DepartmentMap, nil
}

// LoadCatalogs returns the configured catalogs.
func (s *StaticSource) LoadCatalogs(context.Context) (map[string]json.RawMessage, error) {
	return s.Parts.Catalogs, nil
}
