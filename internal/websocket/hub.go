package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"recapstudio-backend/internal/events"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub pushes run updates to browser connections. One bus subscription is
// held per run while at least one connection watches it.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID][]*conn
	bus         events.Bus
	cancelFuncs map[uuid.UUID]context.CancelFunc
	logger      zerolog.Logger
}

// conn serializes writes; gorilla connections allow one concurrent writer.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func NewHub(bus events.Bus, logger zerolog.Logger) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID][]*conn),
		bus:         bus,
		cancelFuncs: make(map[uuid.UUID]context.CancelFunc),
		logger:      logger.With().Str("component", "ws_hub").Logger(),
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(r.URL.Query().Get("run_id"))
	if err != nil {
		http.Error(w, "run_id is required", http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &conn{ws: ws}
	if err := h.registerConnection(runID, c); err != nil {
		h.logger.Error().Err(err).Str("run_id", runID.String()).Msg("subscribe failed")
		ws.Close()
		return
	}

	// Drain reads until the client goes away.
	go func() {
		defer h.unregisterConnection(runID, c)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) registerConnection(runID uuid.UUID, c *conn) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.connections[runID]) == 0 {
		ctx, cancel := context.WithCancel(context.Background())
		sub, err := h.bus.Subscribe(ctx, runID)
		if err != nil {
			cancel()
			return err
		}
		h.cancelFuncs[runID] = cancel
		go h.forward(runID, sub)
	}
	h.connections[runID] = append(h.connections[runID], c)

	h.logger.Debug().
		Str("run_id", runID.String()).
		Int("connections", len(h.connections[runID])).
		Msg("websocket connected")
	return nil
}

func (h *Hub) unregisterConnection(runID uuid.UUID, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.ws.Close()

	conns := h.connections[runID]
	for i, existing := range conns {
		if existing == c {
			h.connections[runID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	if len(h.connections[runID]) == 0 {
		delete(h.connections, runID)
		if cancel, ok := h.cancelFuncs[runID]; ok {
			cancel()
			delete(h.cancelFuncs, runID)
		}
	}

	h.logger.Debug().Str("run_id", runID.String()).Msg("websocket disconnected")
}

func (h *Hub) forward(runID uuid.UUID, sub <-chan []byte) {
	for data := range sub {
		h.broadcast(runID, data)
	}
}

func (h *Hub) broadcast(runID uuid.UUID, data []byte) {
	h.mu.RLock()
	conns := append([]*conn(nil), h.connections[runID]...)
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.write(data); err != nil {
			h.logger.Debug().Err(err).Str("run_id", runID.String()).Msg("websocket write failed")
		}
	}
}

// Connections reports how many sockets watch a run.
func (h *Hub) Connections(runID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[runID])
}
