package rules

import (
	"cmp"
	"slices"

	"github.com/health-triage/internal/domain"
	"go.uber.org/zap"
)

// Config is the read-only configuration an evaluation runs against.
// snapshot.Snapshot implements it.
type Config interface {
	// Rules returns the rule set.
	Rules() []domain.Rule

	// DietTag resolves a diet tag by ID.
	DietTag(id string) (domain.DietTag, bool)

	// DepartmentsFor returns the fallback departments for a symptom.
	DepartmentsFor(symptom string) []string
}

// Aggregation is the accumulated state of one pass over the rule set.
type Aggregation struct {
	// Level is the most urgent level_override among matched rules, empty
	// when no matched rule set one.
	Level domain.Level

	MatchedRules []string
	Explain      []domain.ExplainEntry

	Reasons     *OrderedSet
	Actions     *OrderedSet
	Departments *OrderedSet
	DietTagIDs  *OrderedSet

	// Evaluated counts the rules whose conditions were tested.
	Evaluated int

	// EarlyExit reports whether iteration stopped at an L1 match.
	EarlyExit bool
}

// FinalLevel returns the aggregated level, defaulting to L4.
func (a *Aggregation) FinalLevel() domain.Level {
	if a.Level == "" {
		return domain.LevelL4
	}
	return a.Level
}

// SortRules returns a copy of rules ordered by priority, highest first.
// Rules with equal priority keep their definition order.
func SortRules(rules []domain.Rule) []domain.Rule {
	sorted := slices.Clone(rules)
	slices.SortStableFunc(sorted, byPriority)
	return sorted
}

func byPriority(a, b domain.Rule) int {
	return cmp.Compare(b.Priority, a.Priority)
}

// Aggregate runs every rule against ctx in priority order and merges the
// outputs of the ones that match. Iteration stops once the level reaches L1.
func Aggregate(rules []domain.Rule, ctx *Context) *Aggregation {
	if !slices.IsSortedFunc(rules, byPriority) {
		rules = SortRules(rules)
	}

	agg := &Aggregation{
		Reasons:     NewOrderedSet(),
		Actions:     NewOrderedSet(),
		Departments: NewOrderedSet(),
		DietTagIDs:  NewOrderedSet(),
	}

	for i := range rules {
		rule := &rules[i]
		agg.Evaluated++

		res := Match(rule.Conditions, ctx)
		if !res.Matched {
			continue
		}

		agg.MatchedRules = append(agg.MatchedRules, rule.ID)
		agg.Explain = append(agg.Explain, domain.ExplainEntry{
			RuleID:    rule.ID,
			Priority:  rule.Priority,
			HitFields: res.Hits,
		})

		out := rule.Outputs
		if out.LevelOverride != nil {
			agg.Level = domain.MoreUrgent(agg.Level, *out.LevelOverride)
		}
		agg.Reasons.Add(out.Reasons...)
		agg.Actions.Add(out.Actions...)
		agg.Departments.Add(out.Departments...)
		agg.DietTagIDs.Add(out.DietTags...)

		if agg.Level == domain.LevelL1 {
			agg.EarlyExit = i < len(rules)-1
			break
		}
	}

	return agg
}

// Engine evaluates triage requests against a configuration snapshot.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates a new triage engine.
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{
		logger: logger.Named("rule_engine"),
	}
}

// Evaluate parses a raw request and evaluates it against cfg. It fails only
// with domain.ErrInvalidInput.
func (e *Engine) Evaluate(raw []byte, cfg Config) (*domain.TriageResult, *Aggregation, error) {
	req, err := ParseRequest(raw)
	if err != nil {
		return nil, nil, err
	}
	res, agg := e.EvaluateRequest(req, cfg)
	return res, agg, nil
}

// EvaluateRequest evaluates an already parsed request against cfg.
func (e *Engine) EvaluateRequest(req *domain.TriageRequest, cfg Config) (*domain.TriageResult, *Aggregation) {
	ctx := NewContext(req)
	agg := Aggregate(cfg.Rules(), ctx)

	for _, entry := range agg.Explain {
		e.logger.Debug("rule matched",
			zap.String("rule_id", entry.RuleID),
			zap.Int("priority", entry.Priority),
			zap.Strings("hit_fields", entry.HitFields),
		)
	}

	return Assemble(agg, ctx, cfg), agg
}
