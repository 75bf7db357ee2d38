package progress

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/trevorWieland/rentl-sub001/internal/model"
	"github.com/trevorWieland/rentl-sub001/internal/telemetry"
)

// Tracker holds the latest run snapshot and applies the monotonicity
// guard on every update. Snapshots are cloned on the way in and out,
// so callers may keep mutating their own copies freely.
type Tracker struct {
	mu      sync.RWMutex
	current *model.RunProgress
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Update validates next, replaces the tracked snapshot, and reports
// any regression against the previous one. A structurally invalid
// snapshot is rejected and not stored. A monotonicity violation is
// returned as a *model.MonotonicityViolation, but the snapshot is
// stored regardless: the regression is a signal for the caller, not a
// rollback.
func (t *Tracker) Update(next *model.RunProgress) error {
	if next == nil {
		return fmt.Errorf("progress: nil snapshot")
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("progress: invalid snapshot: %w", err)
	}

	t.mu.Lock()
	prev := t.current
	t.current = Clone(next)
	t.mu.Unlock()

	return ValidateMonotonic(prev, next)
}

// Current returns a copy of the latest snapshot, or nil before the
// first update.
func (t *Tracker) Current() *model.RunProgress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Clone(t.current)
}

// RegisterMetrics registers observable gauges over the tracked
// snapshot. Call after the global meter provider is initialized.
func (t *Tracker) RegisterMetrics() {
	meter := telemetry.Meter("rentl/progress")

	_, _ = meter.Float64ObservableGauge("rentl.run.percent_complete",
		metric.WithDescription("Weighted completion percentage across tracked phases"),
		metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
			if s := t.Current(); s != nil && s.Summary.PercentComplete != nil {
				o.Observe(*s.Summary.PercentComplete)
			}
			return nil
		}),
	)

	_, _ = meter.Float64ObservableGauge("rentl.phase.percent_complete",
		metric.WithDescription("Per-phase completion percentage"),
		metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
			s := t.Current()
			if s == nil {
				return nil
			}
			for _, pp := range s.Phases {
				if pp.Summary.PercentComplete != nil {
					o.Observe(*pp.Summary.PercentComplete,
						metric.WithAttributes(attribute.String("phase", string(pp.Phase))))
				}
			}
			return nil
		}),
	)
}

// Clone returns an independent deep copy of r.
func Clone(r *model.RunProgress) *model.RunProgress {
	if r == nil {
		return nil
	}
	c := &model.RunProgress{Summary: cloneSummary(r.Summary)}
	if r.Phases != nil {
		c.Phases = make([]model.PhaseProgress, len(r.Phases))
		for i, pp := range r.Phases {
			cp := pp
			cp.Summary = cloneSummary(pp.Summary)
			if pp.Metrics != nil {
				cp.Metrics = make([]model.ProgressMetric, len(pp.Metrics))
				for j, m := range pp.Metrics {
					cm := m
					cm.TotalUnits = clonePtr(m.TotalUnits)
					cm.PercentComplete = clonePtr(m.PercentComplete)
					cm.ETASeconds = clonePtr(m.ETASeconds)
					cp.Metrics[j] = cm
				}
			}
			c.Phases[i] = cp
		}
	}
	if r.PhaseWeights != nil {
		c.PhaseWeights = make(map[model.Phase]float64, len(r.PhaseWeights))
		for k, v := range r.PhaseWeights {
			c.PhaseWeights[k] = v
		}
	}
	return c
}

func cloneSummary(s model.ProgressSummary) model.ProgressSummary {
	s.PercentComplete = clonePtr(s.PercentComplete)
	s.ETASeconds = clonePtr(s.ETASeconds)
	return s
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
