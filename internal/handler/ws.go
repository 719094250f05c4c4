package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/efreitasn/matchbook/internal/relay"
	"github.com/efreitasn/matchbook/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// StreamHandler serves the per-market websocket event stream.
type StreamHandler struct {
	feed     *relay.Feed
	buffer   int
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewStreamHandler creates a StreamHandler whose clients each get a
// buffer of the given size. A client that falls behind misses events.
func NewStreamHandler(feed *relay.Feed, buffer int, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{
		feed:     feed,
		buffer:   buffer,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		logger:   logger,
	}
}

// Stream handles GET /ws/markets/{market}. Every event of the market is
// sent as one text frame carrying the relay payload.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	market := chi.URLParam(r, "market")
	if err := service.ValidateMarket(market); err != nil {
		mapError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	hub := h.feed.Market(market)
	sub := hub.Subscribe(h.buffer)
	defer hub.Unsubscribe(sub)

	// Client frames are discarded; a read error means the peer is gone.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-sub.C():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug("websocket write failed",
					slog.String("market", market),
					slog.String("error", err.Error()),
				)
				return
			}
		case <-gone:
			return
		}
	}
}
