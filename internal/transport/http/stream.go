package httptransport

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iliamunaev/taskload/internal/model"
)

const (
	streamWriteWait = 5 * time.Second
	streamBuffer    = 16
)

// HandleLoadingStream upgrades to a websocket and sends the current loading
// state followed by every change. The stream ends when the client goes away
// or the handler is closed.
func (h *Handler) HandleLoadingStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		h.log.Debug().Err(err).Msg("loading stream upgrade failed")
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	events := make(chan bool, streamBuffer)

	sub := h.loading.Subscribe(func(v bool) {
		// Blocking here only delays this subscriber's own queue.
		select {
		case events <- v:
		case <-gone:
		}
	})
	defer sub.Unsubscribe()

	// The server's read timeout must not end a long-lived stream.
	_ = conn.SetReadDeadline(time.Time{})

	// The client never sends anything; reading surfaces its close.
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case v := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(model.LoadingEvent{Loading: v}); err != nil {
				h.log.Debug().Err(err).Msg("loading stream write failed")
				return
			}
		case <-gone:
			return
		case <-h.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(streamWriteWait))
			return
		}
	}
}
