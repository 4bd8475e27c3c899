package events

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
)

// FeedHandler streams hub events over a WebSocket connection for
// operator dashboards.
type FeedHandler struct {
	hub           *Hub
	allowedOrigin string
	insecureDev   bool
}

// NewFeedHandler creates a feed handler. In development mode origin
// checks are skipped.
func NewFeedHandler(hub *Hub, allowedOrigin string, insecureDev bool) *FeedHandler {
	return &FeedHandler{hub: hub, allowedOrigin: allowedOrigin, insecureDev: insecureDev}
}

// ServeHTTP upgrades the request and forwards events until the client
// disconnects.
func (h *FeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if h.insecureDev {
		opts.InsecureSkipVerify = true
	} else if h.allowedOrigin != "" {
		opts.OriginPatterns = []string{h.allowedOrigin}
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		slog.Warn("activity feed upgrade failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "feed closed")

	ctx := r.Context()
	ch, cancel := h.hub.Subscribe()
	defer cancel()

	slog.Info("activity feed subscriber connected", "remote", r.RemoteAddr)

	// Reads are discarded; the feed is one-way. CloseRead surfaces the
	// client going away through ctx.
	ctx = conn.CloseRead(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				slog.Warn("failed to encode activity event", "error", err)
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
				if ctx.Err() == nil {
					slog.Debug("activity feed write failed", "error", err)
				}
				return
			}
		}
	}
}
