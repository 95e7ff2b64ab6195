package signal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/peercall/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

type ConnOptions struct {
	ReadLimit  int64
	PingPeriod time.Duration
	WriteWait  time.Duration
	SendQueue  int
}

func (o ConnOptions) withDefaults() ConnOptions {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 << 10
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 30 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 5 * time.Second
	}
	if o.SendQueue <= 0 {
		o.SendQueue = 64
	}
	return o
}

// Conn is one websocket endpoint with a bounded outgoing queue.
type Conn struct {
	conn *websocket.Conn
	send chan core.Frame
	opts ConnOptions
	log  zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

var _ core.SignalConnection = (*Conn)(nil)

func NewConn(ws *websocket.Conn, opts ConnOptions, logger zerolog.Logger) *Conn {
	opts = opts.withDefaults()
	return &Conn{
		conn: ws,
		send: make(chan core.Frame, opts.SendQueue),
		opts: opts,
		log:  logger,
	}
}

func (c *Conn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// WritePump drains the queue to the socket and keeps it alive with pings.
func (c *Conn) WritePump(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("writePump ctx done")
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.opts.WriteWait))
			return
		case data, ok := <-c.send:
			if !ok {
				c.log.Debug().Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
				c.log.Error().Err(err).Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Error().Err(err).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteWait)); err != nil {
				c.log.Warn().Err(err).Msg("writePump ping")
				return
			}
		}
	}
}

// ReadPump hands every text frame to handle until the socket fails or ctx ends.
func (c *Conn) ReadPump(ctx context.Context, handle func([]byte)) error {
	defer func() {
		c.log.Info().Msg("readPump closing")
		c.Close()
	}()

	pongWait := c.opts.PingPeriod * 2
	c.conn.SetReadLimit(c.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("readPump ctx done")
			return ctx.Err()
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return nil
				}
				return err
			}
			_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
			handle(data)
		}
	}
}
