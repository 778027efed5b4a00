package http

import (
	"net/http"

	"flag-challenge-service/internal/app"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// FeedHandler streams daily completion tallies to websocket subscribers.
type FeedHandler struct {
	feed     *app.CompletionFeed
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewFeedHandler(feed *app.CompletionFeed, logger *zap.Logger) *FeedHandler {
	return &FeedHandler{
		feed:   feed,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage struct {
	Type    string         `json:"type"`
	Payload app.DailyTally `json:"payload"`
}

// ServeWS upgrades the request and pushes tally updates until the client
// disconnects. The feed is push-only; inbound messages are drained solely to
// detect the close.
func (h *FeedHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, cancel := h.feed.Subscribe()
	defer cancel()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case tally, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage{Type: "tally", Payload: tally}); err != nil {
				return
			}
		case <-readerDone:
			return
		}
	}
}
