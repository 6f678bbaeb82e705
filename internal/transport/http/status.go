package httptransport

import (
	"sync"
	"time"

	"github.com/iliamunaev/taskload/internal/model"
)

// loadingStatus records when the loading flag last changed and how often,
// for GET /loading. It is bound to the aggregator weakly, so the binding
// never keeps it alive. Its own flag lags the source by one delivery.
type loadingStatus struct {
	mu          sync.Mutex
	loading     bool
	since       time.Time
	transitions int64
}

func newLoadingStatus(loading bool, now time.Time) *loadingStatus {
	return &loadingStatus{loading: loading, since: now}
}

// observe records a delivered value. Repeats of the current state, such as
// the value delivered on subscribe, are not transitions.
func (s *loadingStatus) observe(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if loading == s.loading {
		return
	}
	s.loading = loading
	s.since = time.Now()
	s.transitions++
}

func (s *loadingStatus) snapshot() model.LoadingResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	return model.LoadingResponse{
		Loading:     s.loading,
		Since:       s.since,
		Transitions: s.transitions,
	}
}
