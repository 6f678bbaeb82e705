// Package registry starts simulated jobs as tracked operations and keeps
// them addressable by id until their retention expires.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliamunaev/taskload/internal/apperr"
	"github.com/iliamunaev/taskload/internal/metrics"
	"github.com/iliamunaev/taskload/internal/model"
	"github.com/iliamunaev/taskload/internal/service/loading"
	"github.com/iliamunaev/taskload/internal/service/pool"
	"github.com/iliamunaev/taskload/internal/service/simulate"
	"github.com/iliamunaev/taskload/internal/service/task"
)

const tracerName = "github.com/iliamunaev/taskload/internal/registry"

// Options configures a Registry.
type Options struct {
	// DefaultDelay is used for jobs that do not set their own delay.
	DefaultDelay time.Duration
	// Retention is how long a finished operation stays visible.
	// Zero or negative keeps finished operations until shutdown.
	Retention time.Duration
	// Tracer defaults to the global otel tracer.
	Tracer trace.Tracer
}

// Registry owns the running operations of the service.
type Registry struct {
	agg     *loading.Aggregator
	pool    *pool.Pool
	metrics *metrics.Metrics
	log     zerolog.Logger
	tracer  trace.Tracer
	opts    Options

	// ctx outlives any single request; it ends on Shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	mu  sync.Mutex
	ops map[string]*entry
}

type entry struct {
	id        string
	name      string
	op        *task.Operation[struct{}]
	startedAt time.Time

	// guarded by Registry.mu
	finished   bool
	finishedAt time.Time
}

// New creates a Registry. m may be nil.
func New(agg *loading.Aggregator, p *pool.Pool, m *metrics.Metrics, log zerolog.Logger, opts Options) *Registry {
	if agg == nil {
		panic("registry.New: nil aggregator")
	}
	if p == nil {
		panic("registry.New: nil pool")
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		agg:     agg,
		pool:    p,
		metrics: m,
		log:     log.With().Str("component", "registry").Logger(),
		tracer:  opts.Tracer,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		ops:     make(map[string]*entry),
	}
}

// Start launches job as a tracked operation and returns its initial view.
func (r *Registry) Start(job model.JobRequest) model.OperationView {
	id := uuid.NewString()
	op := loading.Go(r.ctx, r.agg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.run(ctx, id, job)
	})

	e := &entry{
		id:        id,
		name:      job.Name,
		op:        op,
		startedAt: time.Now(),
	}

	r.mu.Lock()
	r.ops[id] = e
	view := r.viewLocked(e)
	r.mu.Unlock()

	r.log.Debug().Str("id", id).Str("name", job.Name).Int64("delay_ms", job.DelayMS).Msg("operation started")

	go r.finish(e)
	return view
}

func (r *Registry) run(ctx context.Context, id string, job model.JobRequest) error {
	ctx, span := r.tracer.Start(ctx, "taskload.job", trace.WithAttributes(
		attribute.String("operation.id", id),
		attribute.String("job.name", job.Name),
		attribute.Int64("job.delay_ms", job.DelayMS),
	))
	defer span.End()

	err := r.runInSlot(ctx, job)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.Kind(err))
	}
	return err
}

// runInSlot waits for a pool slot; the wait counts as in flight.
func (r *Registry) runInSlot(ctx context.Context, job model.JobRequest) error {
	if err := r.pool.Acquire(ctx); err != nil {
		return err
	}
	defer r.pool.Release()

	return simulate.Run(ctx, job, r.opts.DefaultDelay)
}

func (r *Registry) finish(e *entry) {
	<-e.op.Done()
	outcome := e.op.Outcome()

	r.mu.Lock()
	e.finished = true
	e.finishedAt = time.Now()
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.ObserveOutcome(outcome)
	}

	ev := r.log.Info()
	if outcome == task.Failed {
		ev = r.log.Warn().Err(e.op.Err())
	}
	ev.Str("id", e.id).
		Str("name", e.name).
		Str("outcome", outcome.String()).
		Dur("duration", e.finishedAt.Sub(e.startedAt)).
		Msg("operation finished")

	if r.opts.Retention > 0 {
		time.AfterFunc(r.opts.Retention, func() { r.forget(e.id) })
	}
}

func (r *Registry) forget(id string) {
	r.mu.Lock()
	delete(r.ops, id)
	r.mu.Unlock()
}

// Get returns the view of the operation with the given id.
func (r *Registry) Get(id string) (model.OperationView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.ops[id]
	if !ok {
		return model.OperationView{}, fmt.Errorf("operation %s: %w", id, apperr.ErrNotFound)
	}
	return r.viewLocked(e), nil
}

// List returns all known operations, oldest first.
func (r *Registry) List() []model.OperationView {
	r.mu.Lock()
	out := make([]model.OperationView, 0, len(r.ops))
	for _, e := range r.ops {
		out = append(out, r.viewLocked(e))
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Cancel requests cancellation of the operation with the given id. The
// operation's tracking ends once it has actually stopped.
func (r *Registry) Cancel(id string) (model.OperationView, error) {
	r.mu.Lock()
	e, ok := r.ops[id]
	r.mu.Unlock()
	if !ok {
		return model.OperationView{}, fmt.Errorf("cancel %s: %w", id, apperr.ErrNotFound)
	}

	e.op.Cancel()
	r.log.Debug().Str("id", id).Msg("operation cancel requested")

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewLocked(e), nil
}

// Shutdown cancels every operation and waits until none is in flight.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.cancel()
	return r.agg.WaitIdle(ctx)
}

func (r *Registry) viewLocked(e *entry) model.OperationView {
	v := model.OperationView{
		ID:        e.id,
		Name:      e.name,
		Status:    task.Running.String(),
		StartedAt: e.startedAt,
	}
	if !e.finished {
		return v
	}
	v.Status = e.op.Outcome().String()
	finishedAt := e.finishedAt
	v.FinishedAt = &finishedAt
	if err := e.op.Err(); err != nil {
		v.Error = err.Error()
	}
	return v
}
