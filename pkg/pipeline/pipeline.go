// Package pipeline sequences the ELT stages. The two ingestion branches
// run in parallel; both must complete before the transform starts.
// Stages are idempotent, so the per-stage retry budget re-runs a failed
// stage wholesale without accumulating state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/apppulse/apppulse/pkg/apperrors"
)

// Stage is one idempotent pipeline step.
type Stage struct {
	Name string
	// Retries is the retry budget beyond the first attempt. Only
	// connection-class failures are retried; a malformed source or a
	// schema contract violation will not fix itself.
	Retries int
	// Backoff is the wait between attempts.
	Backoff time.Duration
	Run     func(ctx context.Context) error
}

// StageResult records one stage's outcome.
type StageResult struct {
	Name     string
	Attempts int
	Duration time.Duration
	Err      error
}

// Succeeded reports whether the stage completed.
func (r StageResult) Succeeded() bool {
	return r.Err == nil
}

// Plan is the dependency shape the scheduler supplies:
// every Parallel stage, then every Then stage in order.
type Plan struct {
	Parallel []Stage
	Then     []Stage
}

// Runner executes plans.
type Runner struct {
	mu      sync.Mutex
	results []StageResult
}

// NewRunner creates a runner.
func NewRunner() *Runner {
	return &Runner{}
}

// Execute runs the plan. The returned results cover every stage that was
// attempted; a failed parallel branch cancels its siblings and the Then
// stages never start, leaving prior stages' outputs intact (no rollback
// across stages).
func (r *Runner) Execute(ctx context.Context, plan Plan) ([]StageResult, error) {
	r.mu.Lock()
	r.results = nil
	r.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for i := range plan.Parallel {
		stage := plan.Parallel[i]
		g.Go(func() error {
			res := r.runStage(gctx, stage)
			r.record(res)
			if res.Err != nil {
				return fmt.Errorf("stage %s: %w", stage.Name, res.Err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return r.snapshot(), err
	}

	for i := range plan.Then {
		stage := plan.Then[i]
		res := r.runStage(ctx, stage)
		r.record(res)
		if res.Err != nil {
			return r.snapshot(), fmt.Errorf("stage %s: %w", stage.Name, res.Err)
		}
	}

	return r.snapshot(), nil
}

func (r *Runner) record(res StageResult) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
}

func (r *Runner) snapshot() []StageResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StageResult, len(r.results))
	copy(out, r.results)
	return out
}

// runStage runs one stage through its retry budget, tracing each attempt.
func (r *Runner) runStage(ctx context.Context, stage Stage) StageResult {
	tracer := otel.Tracer("apppulse/pipeline")
	start := time.Now()
	result := StageResult{Name: stage.Name}

	for attempt := 0; attempt <= stage.Retries; attempt++ {
		if attempt > 0 && stage.Backoff > 0 {
			select {
			case <-ctx.Done():
				result.Err = ctx.Err()
				result.Duration = time.Since(start)
				return result
			case <-time.After(stage.Backoff):
			}
		}

		spanCtx, span := tracer.Start(ctx, "stage."+stage.Name)
		span.SetAttributes(attribute.Int("pipeline.attempt", attempt+1))

		result.Attempts = attempt + 1
		err := stage.Run(spanCtx)
		if err == nil {
			span.SetStatus(codes.Ok, "")
			span.End()
			result.Err = nil
			break
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()

		result.Err = err
		if !retryable(err) {
			break
		}
	}

	result.Duration = time.Since(start)
	return result
}

// retryable: connection-class failures and unclassified errors are worth
// another attempt; format and schema failures are deterministic.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch apperrors.CodeOf(err) {
	case apperrors.CodeSourceFormat, apperrors.CodeFileNotFound, apperrors.CodeSchemaMismatch:
		return false
	default:
		return true
	}
}
