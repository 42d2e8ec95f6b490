package uibridge

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// The bridge binds to loopback for the bundled UI, so cross-origin upgrade
// checks are handled by the CORS settings, not the websocket layer.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamInterval is the cadence at which /ws evaluates state for pushes.
var streamInterval = 500 * time.Millisecond

// SetStreamInterval configures the websocket push cadence.
func SetStreamInterval(d time.Duration) {
	if d <= 0 {
		streamInterval = 500 * time.Millisecond
		return
	}
	streamInterval = d
}

const wsWriteTimeout = 5 * time.Second

// stateStreamHandler pushes the merged state over a websocket whenever it
// changes, so the UI does not have to poll /state while a download runs.
func stateStreamHandler(svc ModelService, gen GenerationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logEvent().Err(err).Msg("websocket upgrade failed")
			return
		}
		defer conn.Close()

		// reader only detects disconnects; the UI sends nothing
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		t := time.NewTicker(streamInterval)
		defer t.Stop()
		var last []byte
		for {
			select {
			case <-done:
				return
			case <-serverBaseCtx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(wsWriteTimeout))
				return
			case <-t.C:
				payload, err := json.Marshal(stateResponse(svc, gen))
				if err != nil {
					return
				}
				if bytes.Equal(payload, last) {
					continue
				}
				last = payload
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					return
				}
			}
		}
	}
}
