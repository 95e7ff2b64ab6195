package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkeye/peercall/internal/app/call"
	"github.com/dkeye/peercall/internal/config"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type startRequest struct {
	Peer string `json:"peer_id"`
}

type endRequest struct {
	NotifyPeer *bool `json:"notify_peer"`
}

func SetupRouter(ctx context.Context, cfg *config.Config, ctl Controller, hub *EventHub) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/call")
	api.GET("", func(c *gin.Context) {
		st, err := ctl.Status(c.Request.Context())
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	})
	api.POST("/start", func(c *gin.Context) {
		var req startRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid body"})
			return
		}
		peer, err := domain.ParseUserID(req.Peer)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		respond(c, ctl, ctl.StartCall(c.Request.Context(), peer))
	})
	api.POST("/accept", func(c *gin.Context) {
		respond(c, ctl, ctl.AcceptCall(c.Request.Context()))
	})
	api.POST("/reject", func(c *gin.Context) {
		respond(c, ctl, ctl.RejectCall(c.Request.Context()))
	})
	api.POST("/end", func(c *gin.Context) {
		var req endRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
				return
			}
		}
		notify := req.NotifyPeer == nil || *req.NotifyPeer
		respond(c, ctl, ctl.EndCall(c.Request.Context(), notify))
	})
	api.POST("/toggle-audio", func(c *gin.Context) {
		muted, err := ctl.ToggleMute(c.Request.Context())
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"muted": muted})
	})
	api.POST("/toggle-video", func(c *gin.Context) {
		on, err := ctl.ToggleCamera(c.Request.Context())
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"camera_on": on})
	})
	api.POST("/switch-camera", func(c *gin.Context) {
		respond(c, ctl, ctl.SwitchCamera(c.Request.Context()))
	})
	api.GET("/events", func(c *gin.Context) {
		hub.HandleEvents(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}

// respond answers a state-changing request with the resulting status.
func respond(c *gin.Context, ctl Controller, err error) {
	if err != nil {
		abortWithError(c, err)
		return
	}
	st, err := ctl.Status(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func abortWithError(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(code, gin.H{"error": err.Error(), "kind": call.KindOf(err).String()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, call.ErrInvalidPeer):
		return http.StatusBadRequest
	case errors.Is(err, call.ErrAlreadyInCall),
		errors.Is(err, call.ErrInvalidState),
		errors.Is(err, call.ErrCallEnded):
		return http.StatusConflict
	case errors.Is(err, call.ErrTransportDelivery):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, call.ErrManagerClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
