package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/dkeye/peercall/internal/adapters/signal"
	"github.com/dkeye/peercall/internal/app/call"
	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// Event is one notification pushed to the presentation layer.
type Event struct {
	Type   string        `json:"type"`
	Peer   domain.UserID `json:"peer,omitempty"`
	State  string        `json:"state,omitempty"`
	Kind   string        `json:"kind,omitempty"`
	Detail string        `json:"detail,omitempty"`
	Reason string        `json:"reason,omitempty"`
	Notice string        `json:"notice,omitempty"`
}

// EventHub fans call notifications out to websocket subscribers.
// Slow subscribers lose events rather than stall the call loop.
type EventHub struct {
	mu       sync.RWMutex
	subs     map[core.SignalConnection]struct{}
	opts     signal.ConnOptions
	upgrader websocket.Upgrader
}

var _ call.Observer = (*EventHub)(nil)

func NewEventHub(opts signal.ConnOptions) *EventHub {
	return &EventHub{
		subs: make(map[core.SignalConnection]struct{}),
		opts: opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *EventHub) OnIncomingCall(peer domain.UserID) {
	h.broadcast(Event{Type: "incoming_call", Peer: peer})
}

func (h *EventHub) OnStateChanged(state webrtc.PeerConnectionState) {
	h.broadcast(Event{Type: "connection_state", State: state.String()})
}

func (h *EventHub) OnError(kind call.ErrorKind, detail string) {
	h.broadcast(Event{Type: "error", Kind: kind.String(), Detail: detail})
}

func (h *EventHub) OnEnded(reason call.EndReason) {
	h.broadcast(Event{Type: "ended", Reason: reason.String(), Notice: reason.Notice()})
}

func (h *EventHub) Subscribe(conn core.SignalConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[conn] = struct{}{}
}

func (h *EventHub) Unsubscribe(conn core.SignalConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, conn)
}

func (h *EventHub) broadcast(ev Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("event marshal")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.subs {
		if err := conn.TrySend(b); err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Str("event", ev.Type).Msg("event dropped")
		}
	}
}

func (h *EventHub) HandleEvents(ctx context.Context, c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("ws upgrade")
		return
	}
	logger := log.With().Str("module", "adapters.http").Str("remote", c.ClientIP()).Logger()
	conn := signal.NewConn(ws, h.opts, logger)
	h.Subscribe(conn)
	logger.Info().Msg("event subscriber connected")

	ctx, cancel := context.WithCancel(ctx)
	go conn.WritePump(ctx)
	go func() {
		defer cancel()
		defer h.Unsubscribe(conn)
		_ = conn.ReadPump(ctx, func([]byte) {})
	}()
}
