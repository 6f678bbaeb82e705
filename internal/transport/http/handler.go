// Package httptransport exposes tracked operations and the aggregated
// loading state over HTTP.
package httptransport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/iliamunaev/taskload/internal/apperr"
	"github.com/iliamunaev/taskload/internal/batch"
	"github.com/iliamunaev/taskload/internal/model"
	"github.com/iliamunaev/taskload/internal/service/observable"
	"github.com/iliamunaev/taskload/internal/service/simulate"
)

// MaxBatchSteps caps the number of steps accepted by POST /batch.
const MaxBatchSteps = 64

type operations interface {
	Start(job model.JobRequest) model.OperationView
	Get(id string) (model.OperationView, error)
	List() []model.OperationView
	Cancel(id string) (model.OperationView, error)
}

type batchRunner interface {
	Run(ctx context.Context, steps []batch.Step) ([]model.StepResult, error)
}

// loadingSource is the aggregated loading flag, satisfied by *loading.Aggregator.
type loadingSource interface {
	observable.Source[bool]
	IsLoading() bool
}

// Config wires a Handler to its dependencies.
type Config struct {
	Operations operations
	Batch      batchRunner
	Loading    loadingSource
	Log        zerolog.Logger

	// RequestTimeout bounds POST /batch. Non-positive means 2s.
	RequestTimeout time.Duration
	// DefaultDelay is used for batch steps that do not set their own delay.
	DefaultDelay time.Duration
}

// Handler serves the HTTP API.
type Handler struct {
	ops            operations
	batch          batchRunner
	loading        loadingSource
	log            zerolog.Logger
	requestTimeout time.Duration
	defaultDelay   time.Duration

	status    *loadingStatus
	statusSub *observable.Subscription[bool]

	upgrader websocket.Upgrader
	closing  chan struct{}
}

// New returns a Handler for cfg.
//
// It panics if a dependency is nil. If RequestTimeout is non-positive,
// a default timeout is applied.
func New(cfg Config) *Handler {
	if cfg.Operations == nil {
		panic("httptransport.New: nil operations")
	}
	if cfg.Batch == nil {
		panic("httptransport.New: nil batch runner")
	}
	if cfg.Loading == nil {
		panic("httptransport.New: nil loading source")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 2 * time.Second
	}

	h := &Handler{
		ops:            cfg.Operations,
		batch:          cfg.Batch,
		loading:        cfg.Loading,
		log:            cfg.Log.With().Str("component", "http").Logger(),
		requestTimeout: cfg.RequestTimeout,
		defaultDelay:   cfg.DefaultDelay,
		status:         newLoadingStatus(cfg.Loading.IsLoading(), time.Now()),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		closing: make(chan struct{}),
	}
	h.statusSub = observable.AssignWeakly[bool, loadingStatus](cfg.Loading, h.status, (*loadingStatus).observe)
	return h
}

// Routes returns the API router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", h.HandleHealth)

	r.Route("/operations", func(r chi.Router) {
		r.Post("/", h.HandleStart)
		r.Get("/", h.HandleList)
		r.Get("/{id}", h.HandleGet)
		r.Delete("/{id}", h.HandleCancel)
	})

	r.Get("/loading", h.HandleLoading)
	r.Get("/loading/ws", h.HandleLoadingStream)
	r.Post("/batch", h.HandleBatch)

	return r
}

// Close ends open loading streams and detaches the status view.
func (h *Handler) Close() {
	select {
	case <-h.closing:
		return
	default:
		close(h.closing)
	}
	h.statusSub.Unsubscribe()
}

func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleStart starts a job and answers 202 with its initial view.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var job model.JobRequest
	if err := decodeJSON(r.Body, &job); err != nil {
		writeError(w, err)
		return
	}
	if job.DelayMS < 0 {
		writeError(w, fmt.Errorf("delay_ms must not be negative: %w", apperr.ErrInvalidRequest))
		return
	}

	view := h.ops.Start(job)
	w.Header().Set("Location", "/operations/"+view.ID)
	writeJSON(w, http.StatusAccepted, view)
}

func (h *Handler) HandleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.ops.List())
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	view, err := h.ops.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleCancel requests cancellation; the operation stops asynchronously.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	view, err := h.ops.Cancel(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, view)
}

// HandleLoading reports the current loading state, read from the source so
// it reflects every Begin and End that returned before the request. When it
// last changed and how many times it has come from the status view.
func (h *Handler) HandleLoading(w http.ResponseWriter, _ *http.Request) {
	resp := h.status.snapshot()
	resp.Loading = h.loading.IsLoading()
	writeJSON(w, http.StatusOK, resp)
}

// HandleBatch runs every step concurrently under the request timeout.
// The response always contains a structured BatchResponse.
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	var req model.BatchRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.BatchResponse{
			Status: "error",
			Error:  errorPayload(err, "invalid JSON"),
		})
		return
	}
	if n := len(req.Steps); n == 0 || n > MaxBatchSteps {
		err := fmt.Errorf("batch needs 1..%d steps, got %d: %w", MaxBatchSteps, n, apperr.ErrInvalidRequest)
		writeJSON(w, http.StatusBadRequest, model.BatchResponse{
			Status: "error",
			Error:  errorPayload(err, err.Error()),
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	steps, err := h.batch.Run(ctx, h.stepsFor(req.Steps))

	resp := model.BatchResponse{
		Status: "ok",
		Steps:  steps,
	}
	if err != nil {
		resp.Status = "error"
		resp.Error = errorPayload(err, "batch failed")
	}
	writeJSON(w, apperr.HTTPStatus(err), resp)
}

func (h *Handler) stepsFor(jobs []model.JobRequest) []batch.Step {
	steps := make([]batch.Step, len(jobs))
	for i, job := range jobs {
		name := job.Name
		if name == "" {
			name = fmt.Sprintf("step-%d", i+1)
		}
		steps[i] = batch.Step{
			Name: name,
			Run: func(ctx context.Context) error {
				return simulate.Run(ctx, job, h.defaultDelay)
			},
		}
	}
	return steps
}

// decodeJSON decodes exactly one JSON value into v, rejecting unknown fields.
func decodeJSON(body io.Reader, v any) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %v: %w", err, apperr.ErrInvalidRequest)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("decode body: trailing data: %w", apperr.ErrInvalidRequest)
	}
	return nil
}
