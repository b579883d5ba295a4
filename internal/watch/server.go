package watch

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/park285/Cheese-Xiangqi/internal/domain"
	"github.com/park285/Cheese-Xiangqi/internal/obslog"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Loader returns the current snapshot so a new watcher starts in sync.
type Loader func(ctx context.Context, matchID string) (domain.MatchSnapshot, error)

// Handler serves GET /watch/{id} as a websocket that streams snapshots.
type Handler struct {
	hub          *Hub
	load         Loader
	pingInterval time.Duration
}

func NewHandler(hub *Hub, load Loader) *Handler {
	return &Handler{hub: hub, load: load, pingInterval: 30 * time.Second}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/watch/"), "/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	first, err := h.load(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  []string{"localhost:*", "127.0.0.1:*"},
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("watch_accept_failed", zap.String("match_id", id), zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected exit")

	updates, cancel := h.hub.Subscribe(id)
	defer cancel()
	obslog.L().Info("watch_open", zap.String("match_id", id))

	// Watchers never send; CloseRead handles control frames and cancels ctx on close.
	ctx := conn.CloseRead(r.Context())
	if err := h.write(ctx, conn, first); err != nil {
		return
	}

	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			obslog.L().Info("watch_closed", zap.String("match_id", id))
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case snap := <-updates:
			if err := h.write(ctx, conn, snap); err != nil {
				obslog.L().Debug("watch_write_failed", zap.String("match_id", id), zap.Error(err))
				return
			}
		case <-ping.C:
			pctx, pcancel := context.WithTimeout(ctx, 3*time.Second)
			err := conn.Ping(pctx)
			pcancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *Handler) write(ctx context.Context, conn *websocket.Conn, snap domain.MatchSnapshot) error {
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(wctx, conn, snap)
}
