/*
batch.go - Audit run fan-out across employees

PURPOSE:
  Runs the per-employee pipeline for every employee in an audit run on a
  bounded worker pool, persists results, opens review cases and reduces the
  outcomes into an AuditRun.

CONCURRENCY:
  Each worker writes only its own slot of an index-addressed slice. There
  are no shared counters; aggregates are computed after Wait by the run's
  reduction step.

CANCELLATION:
  The context is checked before each employee. Employees not started when
  it is cancelled are listed in AuditRun.NotRun; every completed outcome is
  kept and persisted, and the run is marked cancelled. Writes for completed
  employees use a context detached from cancellation.

IDEMPOTENCE:
  Before evaluating, the coordinator computes the input hash and looks the
  key up in the store. A hit is reused as a Skipped outcome, so a rerun on
  unchanged inputs evaluates and writes nothing new.

FAILURE POLICY:
  Coverage gaps:      needs_review result, logged as a warning
  Missing documents:  insufficient_data exclusion
  Precision mismatch: precision_failure exclusion, logged as an error
  Store failures are logged against the employee; the run continues.
*/
package compliance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Coordinator fans the pipeline out over an audit run.
type Coordinator struct {
	engine  *Engine
	store   Store
	reviews *ReviewQueue
	workers int
	log     *zap.Logger
	now     func() time.Time
}

// NewCoordinator builds a coordinator. store and reviews may be nil for a
// dry run that neither persists nor opens cases.
func NewCoordinator(engine *Engine, store Store, reviews *ReviewQueue, workers int, log *zap.Logger) *Coordinator {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{engine: engine, store: store, reviews: reviews, workers: workers, log: log, now: time.Now}
}

// WithClock replaces the coordinator's clock.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// Run evaluates every employee and returns the completed run. The returned
// error reports only an invalid period or a failure to save the run itself;
// per-employee failures are outcomes.
func (c *Coordinator) Run(ctx context.Context, org string, period PayPeriod, inputs []EmployeeInput) (*AuditRun, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	run := NewAuditRun(RunID(uuid.NewString()), org, period, c.now())
	log := c.log.With(zap.String("run_id", string(run.ID)), zap.String("pay_period", string(period.ID)))
	log.Info("audit run started", zap.Int("employees", len(inputs)), zap.Int("workers", c.workers))

	outcomes := make([]Outcome, len(inputs))
	started := make([]bool, len(inputs))

	var g errgroup.Group
	g.SetLimit(c.workers)
	for i, in := range inputs {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			started[i] = true
			outcomes[i] = c.evaluate(ctx, run.ID, period, in, log)
			return nil
		})
	}
	_ = g.Wait()

	for i, o := range outcomes {
		if !started[i] {
			run.NotRun = append(run.NotRun, inputs[i].EmployeeID)
			continue
		}
		run.Append(o)
	}
	run.Cancelled = ctx.Err() != nil
	run.CompletedAt = c.now()

	stats := run.Stats()
	log.Info("audit run finished",
		zap.Bool("cancelled", run.Cancelled),
		zap.Int("not_run", len(run.NotRun)),
		zap.Int("ok", stats.ByClass[ClassOK]),
		zap.Int("underpaid", stats.ByClass[ClassUnderpaid]),
		zap.Int("needs_review", stats.ByClass[ClassNeedsReview]),
		zap.Int("skipped", stats.Skipped),
		zap.String("total_liability", stats.TotalLiability.StringFixed(Cents)))

	if c.store != nil {
		if err := c.store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
			return run, fmt.Errorf("save run %s: %w", run.ID, err)
		}
	}
	return run, nil
}

// evaluate produces the single outcome for one employee.
func (c *Coordinator) evaluate(ctx context.Context, runID RunID, period PayPeriod, in EmployeeInput, log *zap.Logger) Outcome {
	log = log.With(zap.String("employee_id", string(in.EmployeeID)))
	wctx := context.WithoutCancel(ctx)

	if c.store != nil {
		if o, ok := c.reuse(wctx, period, in, log); ok {
			return o
		}
	}

	out := c.engine.Evaluate(period, in)
	switch {
	case out.Exclusion != nil:
		ex := out.Exclusion
		if ex.Kind == ExcludedPrecisionFailure {
			log.Error("employee excluded", zap.String("kind", string(ex.Kind)), zap.String("error", ex.Error))
		} else {
			log.Warn("employee excluded", zap.String("kind", string(ex.Kind)), zap.Strings("missing", ex.Missing))
		}
		if c.store != nil {
			if err := c.store.SaveExclusion(wctx, runID, *ex); err != nil {
				log.Error("save exclusion failed", zap.Error(err))
			}
		}
		return out
	case out.Result != nil:
		r := out.Result
		for _, gap := range r.CoverageGaps {
			log.Warn("rule coverage gap", zap.String("reason", gap.Reason), zap.Time("start", gap.Start), zap.Time("end", gap.End))
		}
		log.Debug("employee evaluated",
			zap.String("classification", string(r.Classification)),
			zap.String("shortfall", r.Shortfall().StringFixed(Cents)),
			zap.Int("anomaly_score", r.AnomalyScore),
			zap.String("confidence", r.Confidence.String()))
		if c.store != nil {
			_, err := c.store.SaveResult(wctx, StoredResult{Result: *r, RunID: runID, RecordedAt: c.now()})
			if err != nil && !errors.Is(err, ErrDuplicateResult) {
				log.Error("save result failed", zap.Error(err))
			}
		}
		c.openCase(wctx, runID, *r, log)
	}
	return out
}

// reuse returns the stored outcome for an unchanged input.
func (c *Coordinator) reuse(ctx context.Context, period PayPeriod, in EmployeeInput, log *zap.Logger) (Outcome, bool) {
	hash, err := c.engine.InputHash(period, in)
	if err != nil {
		return Outcome{}, false
	}
	key := ResultKey{EmployeeID: in.EmployeeID, PayPeriodID: period.ID, InputHash: hash}
	exists, err := c.store.ResultExists(ctx, key)
	if err != nil {
		log.Error("result lookup failed", zap.Error(err))
		return Outcome{}, false
	}
	if !exists {
		return Outcome{}, false
	}
	stored, err := c.store.GetResult(ctx, key)
	if err != nil {
		log.Error("result load failed", zap.Error(err))
		return Outcome{}, false
	}
	log.Debug("inputs unchanged, reusing result", zap.String("input_hash", hash), zap.Int("version", stored.Version))
	c.openCase(ctx, stored.RunID, stored.Result, log)
	r := stored.Result
	return Outcome{EmployeeID: in.EmployeeID, Result: &r, Skipped: true}, true
}

// openCase hands the result to the review queue: an open case from an earlier
// run is rescored, otherwise a needs_review result opens one.
func (c *Coordinator) openCase(ctx context.Context, runID RunID, r ComplianceResult, log *zap.Logger) {
	if c.reviews == nil {
		return
	}
	if _, _, err := c.reviews.Track(ctx, runID, "run:"+string(runID), r); err != nil {
		log.Error("review case update failed", zap.Error(err))
	}
}
