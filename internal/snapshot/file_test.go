package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/health-triage/internal/domain"
)

const rulesJSON = `[
  {
    "id": "R_CHEST",
    "priority": 100,
    "conditions": {"any_of": ["S_CHEST_PAIN"], "duration_hours_min": 0},
    "outputs": {"level_override": "L1", "departments": ["急診"]}
  },
  {
    "id": "R_HR",
    "priority": 80,
    "conditions": {"any_vitals": [{"field": "heart_rate", "op": ">", "value": 120}]},
    "outputs": {"level_override": "L2", "diet_tags": ["DT_HYDRATION"]}
  }
]`

const rulesYAML = `
- id: R_CHEST
  priority: 100
  conditions:
    any_of: [S_CHEST_PAIN]
    duration_hours_min: 0
  outputs:
    level_override: L1
    departments: [急診]
- id: R_HR
  priority: 80
  conditions:
    any_vitals:
      - field: heart_rate
        op: ">"
        value: 120
  outputs:
    level_override: L2
    diet_tags: [DT_HYDRATION]
`

const dietTagsYAML = `
- id: DT_HYDRATION
  name: 補充水分
  description: 少量多次補充水分
  recommended: [溫開水]
`

const departmentMapJSON = `[{"symptom": "S_COUGH", "departments": ["耳鼻喉科"]}]`

const vitalsOptionsYAML = `
- field: heart_rate
  unit: bpm
`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func writeConfigDir(t *testing.T, rulesName, rulesContent string) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, rulesName, rulesContent)
	writeFile(t, dir, "diet_tags.yaml", dietTagsYAML)
	writeFile(t, dir, "department_map.json", departmentMapJSON)
	writeFile(t, dir, "symptom_options.json", `[{"id":"S_COUGH","label":{"zh":"咳嗽"}}]`)
	writeFile(t, dir, "vitals_options.yml", vitalsOptionsYAML)
	return dir
}

func TestFileSource_Formats(t *testing.T) {
	tests := []struct {
		name      string
		rulesFile string
		content   string
	}{
		{"json rules", "rules.json", rulesJSON},
		{"yaml rules", "rules.yaml", rulesYAML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeConfigDir(t, tt.rulesFile, tt.content)

			snap, err := Build(context.Background(), NewFileSource(dir))
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}

			rules := snap.Rules()
			if len(rules) != 2 || rules[0].ID != "R_CHEST" {
				t.Fatalf("Rules() = %+v", rules)
			}
			if got := *rules[0].Conditions.DurationHoursMin; got != 0 {
				t.Errorf("duration_hours_min = %v, want 0", got)
			}
			if got := *rules[0].Outputs.LevelOverride; got != domain.LevelL1 {
				t.Errorf("level_override = %v, want L1", got)
			}
			vc := rules[1].Conditions.AnyVitals[0]
			if vc.Field != "heart_rate" || vc.Op != domain.OpGreater || *vc.Value != 120 {
				t.Errorf("any_vitals[0] = %+v", vc)
			}

			if tag, ok := snap.DietTag("DT_HYDRATION"); !ok || !reflect.DeepEqual(tag.Recommended, []string{"溫開水"}) {
				t.Errorf("DietTag() = %+v, %v", tag, ok)
			}
			if got := snap.DepartmentsFor("S_COUGH"); !reflect.DeepEqual(got, []string{"耳鼻喉科"}) {
				t.Errorf("DepartmentsFor() = %v", got)
			}

			body, ok := snap.Catalog(CatalogVitals)
			if !ok {
				t.Fatal("vitals catalog missing")
			}
			var vitals []map[string]any
			if err := json.Unmarshal(body, &vitals); err != nil {
				t.Fatalf("vitals catalog is not JSON: %v (%s)", err, body)
			}
			if vitals[0]["field"] != "heart_rate" {
				t.Errorf("vitals catalog = %s", body)
			}
			if _, ok := snap.Catalog(CatalogComorbidities); ok {
				t.Error("comorbidities catalog should be absent")
			}
		})
	}
}

func TestFileSource_VersionTracksChanges(t *testing.T) {
	dir := writeConfigDir(t, "rules.json", rulesJSON)
	src := NewFileSource(dir)
	ctx := context.Background()

	v1, err := src.Version(ctx)
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if v2, _ := src.Version(ctx); v2 != v1 {
		t.Errorf("Version() changed without edits: %s -> %s", v1, v2)
	}

	writeFile(t, dir, "department_map.json", `[]`)
	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(filepath.Join(dir, "department_map.json"), later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	v3, err := src.Version(ctx)
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if v3 == v1 {
		t.Error("Version() did not change after editing a file")
	}
}

func TestFileSource_MissingRequiredFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "diet_tags.json", `[]`)
	writeFile(t, dir, "department_map.json", `[]`)

	_, err := Build(context.Background(), NewFileSource(dir))
	if !errors.Is(err, domain.ErrConfigUnavailable) {
		t.Fatalf("Build() error = %v, want ErrConfigUnavailable", err)
	}
	var te *domain.TriageError
	if !errors.As(err, &te) || te.Op != "load_rules" {
		t.Errorf("Build() error = %v, want op load_rules", err)
	}
}

func TestFileSource_MalformedFile(t *testing.T) {
	dir := writeConfigDir(t, "rules.json", `[{"id": "R1",`)

	_, err := Build(context.Background(), NewFileSource(dir))
	if !errors.Is(err, domain.ErrConfigUnavailable) {
		t.Fatalf("Build() error = %v, want ErrConfigUnavailable", err)
	}
}

func TestFileSource_RejectsMalformedRules(t *testing.T) {
	tests := []struct {
		name        string
		rulesFile   string
		content     string
		wantErr     string
		wantInvalid bool
	}{
		{
			name:      "misspelled clause in json",
			rulesFile: "rules.json",
			content:   `[{"id":"R_TYPO","priority":1,"conditions":{"al_of":["S_RARE"]},"outputs":{"level_override":"L1"}}]`,
			wantErr:   "al_of",
		},
		{
			name:      "misspelled clause in yaml",
			rulesFile: "rules.yaml",
			content:   "- id: R_TYPO\n  conditions:\n    al_of: [S_RARE]\n  outputs:\n    level_override: L1\n",
			wantErr:   "al_of",
		},
		{
			name:      "unknown top-level rule key",
			rulesFile: "rules.json",
			content:   `[{"id":"R1","conditons":{}}]`,
			wantErr:   "conditons",
		},
		{
			name:        "vital without value in json",
			rulesFile:   "rules.json",
			content:     `[{"id":"R_HR","conditions":{"any_vitals":[{"field":"heart_rate","op":">"}]},"outputs":{"level_override":"L2"}}]`,
			wantErr:     "value",
			wantInvalid: true,
		},
		{
			name:        "vital without value in yaml",
			rulesFile:   "rules.yaml",
			content:     "- id: R_HR\n  conditions:\n    any_vitals:\n      - field: heart_rate\n        op: \">\"\n",
			wantErr:     "value",
			wantInvalid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeConfigDir(t, tt.rulesFile, tt.content)

			snap, err := Build(context.Background(), NewFileSource(dir))
			if err == nil {
				t.Fatalf("Build() loaded %d rules, want an error", len(snap.Rules()))
			}
			if !errors.Is(err, domain.ErrConfigUnavailable) {
				t.Errorf("Build() error = %v, want ErrConfigUnavailable", err)
			}
			if tt.wantInvalid && !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("Build() error = %v, want ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Build() error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestFileSource_JSONPreferredOverYAML(t *testing.T) {
	dir := writeConfigDir(t, "rules.json", rulesJSON)
	writeFile(t, dir, "rules.yaml", `[]`)

	rules, err := NewFileSource(dir).LoadRules(context.Background())
	if err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}
	if len(rules) != 2 {
		t.Errorf("LoadRules() read %d rules, want the JSON file's 2", len(rules))
	}
}

func TestSampleRulesDirectory(t *testing.T) {
	snap, err := Build(context.Background(), NewFileSource(filepath.Join("..", "..", "rules")))
	if err != nil {
		t.Fatalf("Build(rules/) error = %v", err)
	}
	if len(snap.Rules()) == 0 {
		t.Error("sample rules directory has no rules")
	}
	if unresolved := snap.UnresolvedDietTags(); len(unresolved) != 0 {
		t.Errorf("sample rules reference unknown diet tags: %v", unresolved)
	}
	for _, name := range []string{CatalogSymptoms, CatalogComorbidities, CatalogVitals} {
		if _, ok := snap.Catalog(name); !ok {
			t.Errorf("sample catalog %s missing", name)
		}
	}
}
