package feed

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeSSE streams changes on channel as server-sent events until the
// client disconnects.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request, channel string) {
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	h.logger.Debug().Str("channel", channel).Msg("sse stream open")
	h.SSEHandler(channel)(w, r)
}

// ServeWS upgrades the request and writes every change on channel as a JSON
// text frame. Inbound frames are read only to observe close and pong.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, channel string) {
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("channel", channel).Msg("ws upgrade failed")
		return
	}
	changes, cancel := h.Subscribe(channel)
	defer func() {
		cancel()
		conn.Close()
		h.logger.Debug().Str("channel", channel).Msg("ws stream closed")
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case c, ok := <-changes:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber dropped"))
				return
			}
			payload, err := json.Marshal(c)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
