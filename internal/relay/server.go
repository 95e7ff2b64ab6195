// Package relay forwards call events between connected users.
package relay

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkeye/peercall/internal/adapters/signal"
	"github.com/dkeye/peercall/internal/config"
	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/proto"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Server struct {
	cfg      config.RelayConfig
	reg      *Registry
	limiter  *RateLimiter
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewServer(cfg config.RelayConfig) *Server {
	return &Server{
		cfg:     cfg,
		reg:     NewRegistry(),
		limiter: NewRateLimiter(cfg.RateLimit, cfg.RateWindow),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log.With().Str("module", "relay").Logger(),
	}
}

func (s *Server) Router(ctx context.Context, mode string) *gin.Engine {
	if mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	if mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "online": s.reg.Len()})
	})
	r.GET("/ws", func(c *gin.Context) {
		s.HandleWS(ctx, c)
	})
	s.log.Info().Msg("router setup")
	return r
}

func (s *Server) HandleWS(ctx context.Context, c *gin.Context) {
	uid, err := domain.ParseUserID(c.Query("user"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("ws upgrade")
		return
	}

	logger := s.log.With().Str("user", string(uid)).Logger()
	conn := signal.NewConn(ws, signal.ConnOptions{
		ReadLimit:  s.cfg.ReadLimit,
		PingPeriod: s.cfg.PingPeriod,
		WriteWait:  s.cfg.WriteWait,
		SendQueue:  s.cfg.SendQueue,
	}, logger)

	ctx, cancel := context.WithCancel(ctx)
	token := s.reg.Bind(uid, conn, cancel)
	logger.Info().Msg("new WS connection")

	go conn.WritePump(ctx)
	go func() {
		defer cancel()
		err := conn.ReadPump(ctx, func(data []byte) { s.route(uid, conn, data) })
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Info().Err(err).Msg("connection dropped")
		}
		if s.reg.Unbind(uid, token) {
			s.limiter.Forget(uid)
		}
	}()
}

// route stamps the sender and forwards a frame to its addressee.
func (s *Server) route(from domain.UserID, conn core.SignalConnection, data []byte) {
	msg, err := proto.Decode(data)
	if err != nil {
		s.log.Warn().Err(err).Str("from", string(from)).Msg("bad frame")
		return
	}
	switch {
	case msg.Event == proto.EventPing:
		s.reply(conn, proto.Message{Event: proto.EventPong})
		return
	case msg.Event == proto.EventPong:
		return
	case !msg.Event.Routed():
		s.log.Warn().Str("from", string(from)).Str("event", string(msg.Event)).Msg("unknown signal")
		return
	}

	to := msg.Data.To
	fail := func(reason string) {
		s.log.Info().
			Str("from", string(from)).
			Str("to", string(to)).
			Str("event", string(msg.Event)).
			Str("reason", reason).
			Msg("delivery failed")
		s.reply(conn, proto.Message{Event: proto.EventDeliveryFailed, Data: proto.Payload{
			To:          to,
			FailedEvent: msg.Event,
			Reason:      reason,
		}})
	}

	if !s.limiter.Allow(from) {
		fail("rate limited")
		return
	}
	if to == "" {
		fail("missing recipient")
		return
	}
	target, ok := s.reg.Get(to)
	if !ok {
		fail("offline")
		return
	}

	msg.Data.From = from
	b, err := proto.Encode(msg)
	if err != nil {
		fail("encode")
		return
	}
	if err := target.TrySend(b); err != nil {
		fail(err.Error())
		return
	}
	s.log.Debug().Str("from", string(from)).Str("to", string(to)).Str("event", string(msg.Event)).Msg("forwarded")
}

func (s *Server) reply(conn core.SignalConnection, msg proto.Message) {
	b, err := proto.Encode(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("reply encode")
		return
	}
	_ = conn.TrySend(b)
}
