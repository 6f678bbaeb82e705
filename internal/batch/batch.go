// Package batch runs groups of steps concurrently, each tracked as an
// in-flight operation for the duration of its run.
package batch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iliamunaev/taskload/internal/apperr"
	"github.com/iliamunaev/taskload/internal/model"
	"github.com/iliamunaev/taskload/internal/service/loading"
	"github.com/iliamunaev/taskload/internal/service/task"
)

// Step is one named unit of work in a batch.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Service runs batches against a shared aggregator.
type Service struct {
	agg *loading.Aggregator
}

// New creates a Service reporting to agg.
func New(agg *loading.Aggregator) *Service {
	if agg == nil {
		panic("batch.New: nil aggregator")
	}
	return &Service{agg: agg}
}

// Run executes all steps concurrently. The first failing step cancels its
// siblings through the shared context. Results are returned in registration
// order, not completion order, together with the first error.
func (s *Service) Run(ctx context.Context, steps []Step) ([]model.StepResult, error) {
	if len(steps) == 0 {
		return nil, nil
	}

	g, ctx := errgroup.WithContext(ctx)

	// Each goroutine writes only its own index.
	results := make([]model.StepResult, len(steps))

	for i, step := range steps {
		g.Go(func() error {
			start := time.Now()
			err := loading.TrackFunc(ctx, s.agg, step.Run)
			results[i] = resultOf(step.Name, time.Since(start), err)
			return err
		})
	}

	err := g.Wait()
	return results, err
}

func resultOf(name string, d time.Duration, err error) model.StepResult {
	r := model.StepResult{
		Name:       name,
		Status:     "ok",
		DurationMS: d.Milliseconds(),
	}
	switch task.Classify(err) {
	case task.Canceled:
		r.Status = "canceled"
	case task.Failed:
		r.Status = "error"
		r.Detail = apperr.Kind(err)
	}
	return r
}
