package relay

import (
	"context"
	"sync"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type entry struct {
	conn   core.SignalConnection
	cancel context.CancelFunc
	token  string
}

// Registry maps each online user to their one live connection.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.UserID]*entry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[domain.UserID]*entry)}
}

// Bind makes conn the route for uid, closing any connection it replaces.
// The returned token identifies this binding for Unbind.
func (r *Registry) Bind(uid domain.UserID, conn core.SignalConnection, cancel context.CancelFunc) string {
	token := uuid.NewString()
	r.mu.Lock()
	prev := r.conns[uid]
	r.conns[uid] = &entry{conn: conn, cancel: cancel, token: token}
	r.mu.Unlock()

	if prev != nil {
		if prev.cancel != nil {
			prev.cancel()
		}
		prev.conn.Close()
		log.Info().Str("module", "relay.registry").Str("user", string(uid)).Msg("replaced connection")
	}
	log.Info().Str("module", "relay.registry").Str("user", string(uid)).Str("token", token).Msg("bound connection")
	return token
}

// Unbind removes uid only while token is still its current binding.
func (r *Registry) Unbind(uid domain.UserID, token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[uid]
	if !ok || e.token != token {
		return false
	}
	delete(r.conns, uid)
	log.Info().Str("module", "relay.registry").Str("user", string(uid)).Msg("unbound connection")
	return true
}

func (r *Registry) Get(uid domain.UserID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[uid]; ok {
		return e.conn, true
	}
	return nil, false
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
