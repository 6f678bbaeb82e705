package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliamunaev/taskload/internal/batch"
	"github.com/iliamunaev/taskload/internal/metrics"
	"github.com/iliamunaev/taskload/internal/model"
	"github.com/iliamunaev/taskload/internal/registry"
	"github.com/iliamunaev/taskload/internal/service/loading"
	"github.com/iliamunaev/taskload/internal/service/pool"
)

type fixture struct {
	agg     *loading.Aggregator
	handler *Handler
	router  http.Handler
}

func newFixture(t *testing.T, requestTimeout time.Duration) *fixture {
	t.Helper()

	agg := loading.New()
	reg := registry.New(agg, pool.New(4), metrics.New(prometheus.NewRegistry()), zerolog.Nop(), registry.Options{
		DefaultDelay: 5 * time.Millisecond,
	})
	h := New(Config{
		Operations:     reg,
		Batch:          batch.New(agg),
		Loading:        agg,
		Log:            zerolog.Nop(),
		RequestTimeout: requestTimeout,
		DefaultDelay:   5 * time.Millisecond,
	})
	t.Cleanup(func() {
		h.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = reg.Shutdown(ctx)
	})
	return &fixture{agg: agg, handler: h, router: h.Routes()}
}

func (f *fixture) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out
}

func TestNewPanicsOnNilDeps(t *testing.T) {
	t.Parallel()

	agg := loading.New()
	reg := registry.New(agg, pool.New(1), nil, zerolog.Nop(), registry.Options{})

	assert.Panics(t, func() { New(Config{Batch: batch.New(agg), Loading: agg}) })
	assert.Panics(t, func() { New(Config{Operations: reg, Loading: agg}) })
	assert.Panics(t, func() { New(Config{Operations: reg, Batch: batch.New(agg)}) })
}

func TestHealth(t *testing.T) {
	t.Parallel()

	f := newFixture(t, time.Second)
	w := f.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestStartValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "invalid_json", body: `{"name":`},
		{name: "unknown_field", body: `{"nme":"x"}`},
		{name: "trailing_data", body: `{} {}`},
		{name: "negative_delay", body: `{"delay_ms":-1}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, time.Second)
			w := f.do(t, http.MethodPost, "/operations", []byte(tt.body))

			require.Equal(t, http.StatusBadRequest, w.Code)
			out := decode[model.ErrorPayload](t, w)
			assert.Equal(t, "bad_request", out.Kind)
			assert.False(t, f.agg.IsLoading())
		})
	}
}

func TestOperationLifecycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, time.Second)

	w := f.do(t, http.MethodPost, "/operations", []byte(`{"name":"report","delay_ms":20}`))
	require.Equal(t, http.StatusAccepted, w.Code)
	started := decode[model.OperationView](t, w)
	assert.Equal(t, "report", started.Name)
	assert.Equal(t, "running", started.Status)
	assert.Equal(t, "/operations/"+started.ID, w.Header().Get("Location"))

	require.Eventually(t, func() bool {
		w := f.do(t, http.MethodGet, "/operations/"+started.ID, nil)
		return w.Code == http.StatusOK && decode[model.OperationView](t, w).Status == "succeeded"
	}, 2*time.Second, 5*time.Millisecond)

	w = f.do(t, http.MethodGet, "/operations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]model.OperationView](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, started.ID, list[0].ID)
}

func TestFailedOperation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, time.Second)

	w := f.do(t, http.MethodPost, "/operations", []byte(`{"name":"bad","delay_ms":1,"fail":true}`))
	require.Equal(t, http.StatusAccepted, w.Code)
	started := decode[model.OperationView](t, w)

	var final model.OperationView
	require.Eventually(t, func() bool {
		final = decode[model.OperationView](t, f.do(t, http.MethodGet, "/operations/"+started.ID, nil))
		return final.Status != "running"
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, "failed", final.Status)
	assert.Contains(t, final.Error, "job failed")
	require.NoError(t, f.agg.WaitIdle(context.Background()))
}

func TestCancelOperation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, time.Second)

	started := decode[model.OperationView](t, f.do(t, http.MethodPost, "/operations", []byte(`{"delay_ms":10000}`)))
	assert.True(t, f.agg.IsLoading())

	w := f.do(t, http.MethodDelete, "/operations/"+started.ID, nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	require.Eventually(t, func() bool {
		v := decode[model.OperationView](t, f.do(t, http.MethodGet, "/operations/"+started.ID, nil))
		return v.Status == "canceled"
	}, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.agg.WaitIdle(ctx))
}

func TestUnknownOperation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, time.Second)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		w := f.do(t, method, "/operations/nope", nil)
		require.Equal(t, http.StatusNotFound, w.Code, method)
		assert.Equal(t, "not_found", decode[model.ErrorPayload](t, w).Kind, method)
	}
}

func TestBatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		timeout    time.Duration
		body       string
		wantStatus int
		wantKind   string
		wantSteps  []string
	}{
		{
			name:       "success",
			timeout:    time.Second,
			body:       `{"steps":[{"name":"a","delay_ms":10},{"name":"b","delay_ms":1}]}`,
			wantStatus: http.StatusOK,
			wantSteps:  []string{"ok", "ok"},
		},
		{
			name:       "failure_cancels_siblings",
			timeout:    time.Second,
			body:       `{"steps":[{"name":"slow","delay_ms":5000},{"name":"bad","delay_ms":1,"fail":true}]}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "job_failed",
			wantSteps:  []string{"canceled", "error"},
		},
		{
			name:       "timeout",
			timeout:    20 * time.Millisecond,
			body:       `{"steps":[{"name":"slow","delay_ms":5000}]}`,
			wantStatus: http.StatusGatewayTimeout,
			wantKind:   "timeout",
			wantSteps:  []string{"canceled"},
		},
		{
			name:       "empty",
			timeout:    time.Second,
			body:       `{"steps":[]}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   "bad_request",
		},
		{
			name:       "invalid_json",
			timeout:    time.Second,
			body:       `{"steps":`,
			wantStatus: http.StatusBadRequest,
			wantKind:   "bad_request",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, tt.timeout)
			w := f.do(t, http.MethodPost, "/batch", []byte(tt.body))

			require.Equal(t, tt.wantStatus, w.Code)
			out := decode[model.BatchResponse](t, w)

			if tt.wantKind == "" {
				assert.Equal(t, "ok", out.Status)
				assert.Nil(t, out.Error)
			} else {
				assert.Equal(t, "error", out.Status)
				require.NotNil(t, out.Error)
				assert.Equal(t, tt.wantKind, out.Error.Kind)
			}

			got := make([]string, 0, len(out.Steps))
			for _, s := range out.Steps {
				got = append(got, s.Status)
			}
			if len(tt.wantSteps) == 0 {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.wantSteps, got)
			}

			// Every step has ended by the time the response is written.
			assert.False(t, f.agg.IsLoading())
		})
	}
}

func TestBatchMethodNotAllowed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, time.Second)
	w := f.do(t, http.MethodGet, "/batch", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestLoadingEndpoint(t *testing.T) {
	t.Parallel()

	f := newFixture(t, time.Second)

	get := func() model.LoadingResponse {
		return decode[model.LoadingResponse](t, f.do(t, http.MethodGet, "/loading", nil))
	}

	initial := get()
	assert.False(t, initial.Loading)
	assert.Zero(t, initial.Transitions)
	assert.False(t, initial.Since.IsZero())

	f.agg.Begin()
	assert.True(t, get().Loading)
	require.Eventually(t, func() bool { return get().Transitions == 1 }, time.Second, time.Millisecond)

	f.agg.End()
	assert.False(t, get().Loading)
	require.Eventually(t, func() bool {
		r := get()
		return !r.Loading && r.Transitions == 2
	}, time.Second, time.Millisecond)
}

// A read that follows Begin or End sees its effect without waiting for
// the status view to catch up.
func TestLoadingEndpointReflectsLatestCall(t *testing.T) {
	t.Parallel()

	for i := 0; i < 50; i++ {
		f := newFixture(t, time.Second)

		f.agg.Begin()
		r := decode[model.LoadingResponse](t, f.do(t, http.MethodGet, "/loading", nil))
		require.True(t, r.Loading, "round %d", i)

		f.agg.End()
		r = decode[model.LoadingResponse](t, f.do(t, http.MethodGet, "/loading", nil))
		require.False(t, r.Loading, "round %d", i)
	}
}

func dialStream(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/loading/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) model.LoadingEvent {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev model.LoadingEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestLoadingStream(t *testing.T) {
	t.Parallel()

	f := newFixture(t, time.Second)
	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)

	conn := dialStream(t, srv)

	assert.False(t, readEvent(t, conn).Loading, "current value first")

	f.agg.Begin()
	f.agg.Begin()
	assert.True(t, readEvent(t, conn).Loading)

	f.agg.End()
	f.agg.End()
	assert.False(t, readEvent(t, conn).Loading)
}

func TestCloseEndsStreams(t *testing.T) {
	t.Parallel()

	f := newFixture(t, time.Second)
	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)

	conn := dialStream(t, srv)
	readEvent(t, conn)

	f.handler.Close()
	f.handler.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
