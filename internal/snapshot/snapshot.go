// Package snapshot provides immutable, versioned views of the triage
// configuration (rules, diet tags, department fallbacks and option catalogs)
// together with the sources they are loaded from and a store that swaps in
// fresh snapshots when the backing data changes.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/health-triage/internal/domain"
	"github.com/health-triage/internal/rules"
)

// Known option catalogs served to clients.
const (
	CatalogSymptoms      = "symptoms"
	CatalogComorbidities = "comorbidities"
	CatalogVitals        = "vitals"
)

// Parts is the raw content a snapshot is built from.
type Parts struct {
	Rules         []domain.Rule
	DietTags      []domain.DietTag
	DepartmentMap []domain.DepartmentMapping
	Catalogs      map[string]json.RawMessage
}

// Snapshot is a point-in-time view of the triage configuration. It shares no
// memory with the Parts it was built from, is never modified after New
// returns and is safe for concurrent use.
type Snapshot struct {
	version  string
	loadedAt time.Time

	rules      []domain.Rule
	dietTags   []domain.DietTag
	dietIndex  map[string]int
	deptMap    []domain.DepartmentMapping
	deptIndex  map[string][]string
	catalogs   map[string]json.RawMessage
	unresolved []string
}

// New validates parts and builds a snapshot tagged with version. Rules are
// ordered by priority once here.
func New(version string, parts Parts) (*Snapshot, error) {
	if err := Validate(parts); err != nil {
		return nil, err
	}

	s := &Snapshot{
		version:   version,
		loadedAt:  time.Now().UTC(),
		rules:     rules.SortRules(cloneRules(parts.Rules)),
		dietTags:  cloneDietTags(parts.DietTags),
		dietIndex: make(map[string]int, len(parts.DietTags)),
		deptMap:   cloneDepartmentMap(parts.DepartmentMap),
		deptIndex: make(map[string][]string, len(parts.DepartmentMap)),
		catalogs:  make(map[string]json.RawMessage, len(parts.Catalogs)),
	}

	for i, tag := range s.dietTags {
		s.dietIndex[tag.ID] = i
	}
	for _, m := range s.deptMap {
		s.deptIndex[m.Symptom] = append([]string(nil), m.Departments...)
	}
	for name, body := range parts.Catalogs {
		s.catalogs[name] = append(json.RawMessage(nil), body...)
	}

	seen := rules.NewOrderedSet()
	for _, r := range s.rules {
		for _, id := range r.Outputs.DietTags {
			if _, ok := s.dietIndex[id]; !ok {
				seen.Add(id)
			}
		}
	}
	s.unresolved = seen.Values()

	return s, nil
}

// Build loads every part from src and returns a snapshot. If the source
// changes while it is being read the load is retried, so the result always
// reflects a single version. Failures wrap domain.ErrConfigUnavailable.
func Build(ctx context.Context, src Source) (*Snapshot, error) {
	const maxAttempts = 3

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		before, err := src.Version(ctx)
		if err != nil {
			return nil, unavailable("source_version", err)
		}

		parts, err := loadParts(ctx, src)
		if err != nil {
			return nil, err
		}

		after, err := src.Version(ctx)
		if err != nil {
			return nil, unavailable("source_version", err)
		}
		if before != after {
			lastErr = fmt.Errorf("source changed during load (%s -> %s)", before, after)
			continue
		}

		snap, err := New(after, parts)
		if err != nil {
			return nil, unavailable("validate", err)
		}
		return snap, nil
	}

	return nil, unavailable("build_snapshot", lastErr)
}

func loadParts(ctx context.Context, src Source) (Parts, error) {
	var (
		parts Parts
		err   error
	)
	if parts.Rules, err = src.LoadRules(ctx); err != nil {
		return Parts{}, unavailable("load_rules", err)
	}
	if parts.DietTags, err = src.LoadDietTags(ctx); err != nil {
		return Parts{}, unavailable("load_diet_tags", err)
	}
	if parts.DepartmentMap, err = src.LoadDepartmentMap(ctx); err != nil {
		return Parts{}, unavailable("load_department_map", err)
	}
	if parts.Catalogs, err = src.LoadCatalogs(ctx); err != nil {
		return Parts{}, unavailable("load_catalogs", err)
	}
	return parts, nil
}

func unavailable(op string, err error) error {
	if errors.Is(err, domain.ErrConfigUnavailable) {
		return err
	}
	return domain.WrapError(op, fmt.Errorf("%w: %w", domain.ErrConfigUnavailable, err))
}

// Version returns the staleness key of the source data.
func (s *Snapshot) Version() string {
	return s.version
}

// LoadedAt returns when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}

// Rules returns the rule set ordered by priority. Callers must not modify
// the returned slice.
func (s *Snapshot) Rules() []domain.Rule {
	return s.rules
}

// DietTag resolves a diet tag by ID.
func (s *Snapshot) DietTag(id string) (domain.DietTag, bool) {
	i, ok := s.dietIndex[id]
	if !ok {
		return domain.DietTag{}, false
	}
	return s.dietTags[i], true
}

// DepartmentsFor returns the fallback departments for a symptom.
func (s *Snapshot) DepartmentsFor(symptom string) []string {
	return s.deptIndex[symptom]
}

// Catalog returns the raw option catalog with the given name.
func (s *Snapshot) Catalog(name string) (json.RawMessage, bool) {
	body, ok := s.catalogs[name]
	return body, ok
}

// UnresolvedDietTags lists diet tag IDs referenced by rules but missing from
// the catalog. They are dropped from results.
func (s *Snapshot) UnresolvedDietTags() []string {
	return append([]string(nil), s.unresolved...)
}

// Parts returns a copy of the content the snapshot was built from, in
// priority order.
func (s *Snapshot) Parts() Parts {
	catalogs := make(map[string]json.RawMessage, len(s.catalogs))
	for name, body := range s.catalogs {
		catalogs[name] = append(json.RawMessage(nil), body...)
	}
	return Parts{
		Rules:         cloneRules(s.rules),
		DietTags:      cloneDietTags(s.dietTags),
		DepartmentMap: cloneDepartmentMap(s.deptMap),
		Catalogs:      catalogs,
	}
}

func cloneRules(in []domain.Rule) []domain.Rule {
	if in == nil {
		return nil
	}
	out := make([]domain.Rule, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}

func cloneDietTags(in []domain.DietTag) []domain.DietTag {
	if in == nil {
		return nil
	}
	out := make([]domain.DietTag, len(in))
	for i, t := range in {
		out[i] = t.Clone()
	}
	return out
}

func cloneDepartmentMap(in []domain.DepartmentMapping) []domain.DepartmentMapping {
	if in == nil {
		return nil
	}
	out := make([]domain.DepartmentMapping, len(in))
	for i, m := range in {
		out[i] = domain.DepartmentMapping{
			Symptom:     m.Symptom,
			Departments: append([]string(nil), m.Departments...),
		}
	}
	return out
}

var _ rules.Config = (*Snapshot)(nil)
