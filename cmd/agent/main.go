package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/peercall/internal/adapters/capture"
	router "github.com/dkeye/peercall/internal/adapters/http"
	"github.com/dkeye/peercall/internal/adapters/rtc"
	sig "github.com/dkeye/peercall/internal/adapters/signal"
	"github.com/dkeye/peercall/internal/app/call"
	"github.com/dkeye/peercall/internal/config"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/proto"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := run(ctx); err != nil {
		log.Fatal().Err(err).Msg("agent failed")
	}
	log.Info().Msg("agent exited gracefully")
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	self, err := domain.ParseUserID(cfg.Signal.UserID)
	if err != nil {
		return fmt.Errorf("signal.user_id: %w", err)
	}

	capturer, err := capture.NewCapturer(cfg.Capture)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	engines, err := rtc.NewFactory(cfg.ICE, capturer)
	if err != nil {
		return fmt.Errorf("webrtc: %w", err)
	}

	connOpts := sig.ConnOptions{
		ReadLimit:  cfg.Signal.ReadLimit,
		PingPeriod: cfg.Signal.PingPeriod,
		WriteWait:  cfg.Signal.WriteWait,
		SendQueue:  cfg.Signal.SendQueue,
	}
	hub := router.NewEventHub(connOpts)

	// the client needs the manager's inbox and the manager needs the client as its signaler
	var manager *call.Manager
	client := sig.NewClient(cfg.Signal, self, func(msg proto.Message) { manager.HandleSignal(msg) })
	manager = call.NewManager(call.Options{
		Self:                self,
		Signaler:            client,
		Capturer:            capturer,
		Engines:             engines,
		Observer:            hub,
		Constraints:         capture.Constraints(cfg.Capture),
		DisconnectGrace:     cfg.Call.DisconnectGrace,
		CandidateFlushDelay: cfg.Call.CandidateFlushDelay,
		StrayCandidateLimit: cfg.Call.StrayCandidateLimit,
		SendTimeout:         cfg.Call.SendTimeout,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router.SetupRouter(ctx, cfg, manager, hub),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return manager.Run(ctx) })
	g.Go(func() error { return client.Run(ctx) })
	g.Go(func() error {
		log.Info().Str("addr", addr).Str("user", string(self)).Msg("call agent started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
