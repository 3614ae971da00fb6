// Package service contains the business logic layer.
package service

import (
	"context"
	"time"

	"github.com/health-triage/internal/domain"
	"github.com/health-triage/internal/rules"
	"github.com/health-triage/internal/snapshot"
	"github.com/health-triage/pkg/sanitizer"
	"go.uber.org/zap"
)

// Evaluation statuses reported to hooks.
const (
	StatusOK                = "ok"
	StatusInvalidInput      = "invalid_input"
	StatusConfigUnavailable = "config_unavailable"
)

// EvaluationEvent describes one finished triage call.
type EvaluationEvent struct {
	Status       string
	Level        domain.Level
	MatchedRules int
	Evaluated    int
	EarlyExit    bool
	Duration     float64 // seconds
}

// Hooks lets callers observe evaluations. All fields are optional.
type Hooks struct {
	OnEvaluate func(e *EvaluationEvent)
}

// SnapshotProvider returns the configuration to evaluate against.
// snapshot.Store implements it.
type SnapshotProvider interface {
	Current(ctx context.Context) (*snapshot.Snapshot, error)
}

// Triager runs requests through the rule engine against the current
// configuration snapshot.
type Triager struct {
	snapshots SnapshotProvider
	engine    *rules.Engine
	sanitizer *sanitizer.Sanitizer
	hooks     Hooks
	logger    *zap.Logger
}

// NewTriager creates a new Triager with all dependencies.
func NewTriager(
	snapshots SnapshotProvider,
	engine *rules.Engine,
	sanitizer *sanitizer.Sanitizer,
	hooks Hooks,
	logger *zap.Logger,
) *Triager {
	return &Triager{
		snapshots: snapshots,
		engine:    engine,
		sanitizer: sanitizer,
		hooks:     hooks,
		logger:    logger.Named("triager"),
	}
}

// Triage evaluates a raw JSON request body. Errors wrap
// domain.ErrInvalidInput or domain.ErrConfigUnavailable.
func (t *Triager) Triage(ctx context.Context, raw []byte) (*domain.TriageResponse, error) {
	startTime := time.Now()

	req, err := rules.ParseRequest(raw)
	if err != nil {
		preview, stats := t.sanitizer.SanitizeWithStats(string(raw))
		t.logger.Debug("rejected triage request",
			zap.Error(err),
			zap.String("body_preview", preview),
			zap.Int("body_size", stats.OriginalSize),
			zap.Int("values_masked", stats.ValuesMasked),
		)
		t.report(&EvaluationEvent{Status: StatusInvalidInput, Duration: time.Since(startTime).Seconds()})
		return nil, err
	}

	snap, err := t.snapshots.Current(ctx)
	if err != nil {
		t.logger.Error("no configuration snapshot available", zap.Error(err))
		t.report(&EvaluationEvent{Status: StatusConfigUnavailable, Duration: time.Since(startTime).Seconds()})
		return nil, err
	}

	result, agg := t.engine.EvaluateRequest(req, snap)
	duration := time.Since(startTime)

	t.logger.Info("triage completed",
		zap.String("level", string(result.Level)),
		zap.Strings("matched_rules", result.MatchedRules),
		zap.Int("symptoms", len(req.Symptoms)),
		zap.Bool("early_exit", agg.EarlyExit),
		zap.String("snapshot_version", snap.Version()),
		zap.Duration("duration", duration),
	)

	t.report(&EvaluationEvent{
		Status:       StatusOK,
		Level:        result.Level,
		MatchedRules: len(result.MatchedRules),
		Evaluated:    agg.Evaluated,
		EarlyExit:    agg.EarlyExit,
		Duration:     duration.Seconds(),
	})

	return &domain.TriageResponse{
		OK:              true,
		Result:          result,
		SnapshotVersion: snap.Version(),
		ProcessedAt:     time.Now(),
	}, nil
}

// Catalog returns a named option catalog from the current snapshot.
func (t *Triager) Catalog(ctx context.Context, name string) ([]byte, bool, error) {
	snap, err := t.snapshots.Current(ctx)
	if err != nil {
		return nil, false, err
	}
	body, ok := snap.Catalog(name)
	return body, ok, nil
}

func (t *Triager) report(e *EvaluationEvent) {
	if t.hooks.OnEvaluate != nil {
		t.hooks.OnEvaluate(e)
	}
}
