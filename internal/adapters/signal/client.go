package signal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/dkeye/peercall/internal/config"
	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/proto"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrNotConnected = errors.New("not connected to relay")

const (
	minBackoff = 500 * time.Millisecond
	maxBackoff = 15 * time.Second
)

// Client keeps the agent connected to the relay and implements core.Signaler.
type Client struct {
	url     string
	self    domain.UserID
	opts    ConnOptions
	handler func(proto.Message)
	dialer  *websocket.Dialer
	log     zerolog.Logger

	mu   sync.RWMutex
	conn *Conn
}

var _ core.Signaler = (*Client)(nil)

func NewClient(cfg config.SignalConfig, self domain.UserID, handler func(proto.Message)) *Client {
	return &Client{
		url:  cfg.URL,
		self: self,
		opts: ConnOptions{
			ReadLimit:  cfg.ReadLimit,
			PingPeriod: cfg.PingPeriod,
			WriteWait:  cfg.WriteWait,
			SendQueue:  cfg.SendQueue,
		},
		handler: handler,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:     log.With().Str("module", "signal").Str("self", string(self)).Logger(),
	}
}

// Run dials the relay and redials with backoff until ctx ends.
func (c *Client) Run(ctx context.Context) error {
	backoff := minBackoff
	for {
		started := time.Now()
		err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(started) > maxBackoff {
			backoff = minBackoff
		}
		c.log.Warn().Err(err).Dur("retry_in", backoff).Msg("relay connection lost")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return "", fmt.Errorf("parse relay url: %w", err)
	}
	q := u.Query()
	q.Set("user", string(c.self))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// session runs one connection until it drops.
func (c *Client) session(ctx context.Context) error {
	target, err := c.endpoint()
	if err != nil {
		return err
	}
	ws, resp, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return fmt.Errorf("dial relay: user id %q refused: %w", c.self, err)
		}
		return fmt.Errorf("dial relay: %w", err)
	}
	conn := NewConn(ws, c.opts, c.log)
	c.setConn(conn)
	defer c.setConn(nil)
	c.log.Info().Str("url", c.url).Msg("connected to relay")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go conn.WritePump(ctx)
	return conn.ReadPump(ctx, func(data []byte) { c.handle(conn, data) })
}

func (c *Client) handle(conn *Conn, data []byte) {
	msg, err := proto.Decode(data)
	if err != nil {
		c.log.Error().Err(err).Msg("bad frame")
		return
	}
	switch msg.Event {
	case proto.EventPing:
		if b, err := proto.Encode(proto.Message{Event: proto.EventPong}); err == nil {
			_ = conn.TrySend(b)
		}
	case proto.EventPong:
	default:
		c.handler(msg)
	}
}

func (c *Client) setConn(conn *Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

// Send queues msg for the relay; it fails fast when disconnected or backed up.
func (c *Client) Send(ctx context.Context, msg proto.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := proto.Encode(msg)
	if err != nil {
		return err
	}
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.TrySend(b)
}

// Connected reports whether a relay connection is up.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}
