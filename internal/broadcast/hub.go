package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"warboard.gg/internal/game"
	"warboard.gg/internal/obs"
)

const (
	connectedMessage = "Connected to War Tycoon server"
	writeTimeout     = 5 * time.Second
)

// SnapshotFunc computes the aggregate state pushed on every tick. Injected
// so ticks are testable without timers or a real store.
type SnapshotFunc func(ctx context.Context) (game.Stats, error)

type envelope struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type inbound struct {
	Type string `json:"type"`
}

// Hub owns the live connection registry and the snapshot fan-out. The
// endpoint is deliberately unauthenticated: any transport-level connection
// receives snapshots.
type Hub struct {
	snapshot SnapshotFunc
	origins  []string

	mu    sync.RWMutex
	conns map[int]*websocket.Conn
	next  int
}

// NewHub creates a hub around the given snapshot producer. originPatterns
// feed the upgrade check; empty means same-origin only.
func NewHub(snapshot SnapshotFunc, originPatterns []string) *Hub {
	return &Hub{
		snapshot: snapshot,
		origins:  originPatterns,
		conns:    make(map[int]*websocket.Conn),
	}
}

// ConnectionCount reports the number of currently open connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// ServeHTTP upgrades the request and runs the per-connection read loop:
// acknowledge on open, answer liveness probes, ignore everything else. The
// loop ends when either endpoint closes the transport.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if len(h.origins) > 0 {
		opts.OriginPatterns = h.origins
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		return
	}

	id := h.register(conn)
	obs.WSConnectionOpened()
	defer func() {
		h.unregister(id)
		obs.WSConnectionClosed()
		_ = conn.Close(websocket.StatusNormalClosure, "closed")
	}()

	ctx := r.Context()
	if err := wsjson.Write(ctx, conn, envelope{Type: "connection", Message: connectedMessage}); err != nil {
		return
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			// One bad payload never kills a long-lived connection.
			continue
		}
		if msg.Type == "ping" {
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, envelope{Type: "pong"})
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// BroadcastOnce computes one snapshot, serializes it once and writes the
// identical bytes to every open connection. Connections that fail the write
// are dropped from the registry.
func (h *Hub) BroadcastOnce(ctx context.Context) error {
	stats, err := h.snapshot(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(envelope{Type: "gameStats", Data: stats})
	if err != nil {
		return err
	}

	h.mu.RLock()
	targets := make(map[int]*websocket.Conn, len(h.conns))
	for id, conn := range h.conns {
		targets[id] = conn
	}
	h.mu.RUnlock()

	for id, conn := range targets {
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := conn.Write(writeCtx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			h.unregister(id)
			_ = conn.Close(websocket.StatusNormalClosure, "write_failed")
		}
	}
	obs.BroadcastTick()
	return nil
}

// Run drives BroadcastOnce on the fixed interval until ctx ends. One Run
// loop exists per process regardless of connection count.
func (h *Hub) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.BroadcastOnce(ctx); err != nil {
				obs.LogRequest(map[string]any{
					"level": "error",
					"msg":   "snapshot broadcast failed",
					"error": err.Error(),
				})
			}
		}
	}
}

func (h *Hub) register(conn *websocket.Conn) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	h.conns[id] = conn
	return id
}

func (h *Hub) unregister(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
}
