// Package server orchestrates all components: COMMS subscription, channel
// registry, dispatcher, native provider and the HTTP surface.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/channel-gateway/internal/config"
	"github.com/morezero/channel-gateway/pkg/commsutil"
	"github.com/morezero/channel-gateway/pkg/dispatcher"
	"github.com/morezero/channel-gateway/pkg/events"
	"github.com/morezero/channel-gateway/pkg/metrics"
	"github.com/morezero/channel-gateway/pkg/provider"
	"github.com/morezero/channel-gateway/pkg/registry"
)

const logPrefix = "server:server"

// Server is the channel-gateway orchestrator.
type Server struct {
	cfg        *config.Config
	reg        *registry.Registry
	disp       *dispatcher.Dispatcher
	metrics    *metrics.Collector
	nc         *comms.Conn
	sub        *comms.Subscription
	httpServer *http.Server
	closers    []io.Closer
	ready      atomic.Bool
}

// Params holds parameters for New.
type Params struct {
	Config   *config.Config
	Registry *registry.Registry
	Provider provider.Provider
	// Conn is optional. Without it set events are not published and Subscribe
	// is a no-op.
	Conn    *comms.Conn
	Metrics *metrics.Collector
}

// New builds a Server. Nothing is started.
func New(p Params) *Server {
	m := p.Metrics
	if m == nil {
		m = metrics.New()
	}

	var publisher events.EventPublisher = &events.NoOpPublisher{}
	if p.Conn != nil {
		publisher = events.NewCommsPublisher(p.Conn, &events.CommsPublisherOpts{
			GlobalSetSubject: p.Config.SetSubject(),
		})
	}

	return &Server{
		cfg:     p.Config,
		reg:     p.Registry,
		nc:      p.Conn,
		metrics: m,
		disp: dispatcher.NewDispatcher(dispatcher.NewDispatcherParams{
			Registry:  p.Registry,
			Provider:  p.Provider,
			Publisher: publisher,
			Recorder:  m,
		}),
	}
}

// Dispatcher returns the dispatcher shared by every transport.
func (s *Server) Dispatcher() *dispatcher.Dispatcher { return s.disp }

// Subscribe starts serving requests on the COMMS request subject. Gateways
// sharing a service name form one queue group.
func (s *Server) Subscribe() error {
	if s.nc == nil {
		return nil
	}
	subject := s.cfg.Subject()
	sub, err := s.nc.QueueSubscribe(subject, s.cfg.COMMSName, s.handleMessage)
	if err != nil {
		return fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, subject, err)
	}
	s.sub = sub
	slog.Info(fmt.Sprintf("%s - Subscribed to %s (queue %s)", logPrefix, subject, s.cfg.COMMSName))
	return nil
}

// ListenHTTP starts the HTTP server in the background. It does nothing when
// no listen address is configured.
func (s *Server) ListenHTTP() {
	addr := s.cfg.ListenAddr()
	if addr == "" {
		return
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()
}

// MarkReady flips the /ready probe.
func (s *Server) MarkReady() { s.ready.Store(true) }

// Shutdown stops accepting work and releases every resource the server owns.
func (s *Server) Shutdown(ctx context.Context) {
	s.ready.Store(false)
	if s.sub != nil {
		if err := s.sub.Drain(); err != nil {
			slog.Warn(fmt.Sprintf("%s - drain subscription: %v", logPrefix, err))
		}
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - HTTP shutdown: %v", logPrefix, err))
		}
	}
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			slog.Warn(fmt.Sprintf("%s - COMMS drain: %v", logPrefix, err))
		}
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			slog.Warn(fmt.Sprintf("%s - close: %v", logPrefix, err))
		}
	}
}

// Run starts the gateway, blocks until a shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if err := cfg.ValidateForServe(); err != nil {
		return err
	}
	slog.Info(fmt.Sprintf("%s - Starting channel-gateway", logPrefix))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step 1: Load channel definitions
	reg, err := LoadRegistry(ctx, cfg)
	if err != nil {
		return err
	}

	// Step 2: Native provider
	prov, closer, err := BuildProvider(cfg)
	if err != nil {
		return err
	}

	// Step 3: COMMS
	var nc *comms.Conn
	if !cfg.COMMSDisabled {
		nc, err = commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
		if err != nil {
			if closer != nil {
				closer.Close()
			}
			return fmt.Errorf("%s - failed to connect to COMMS: %w", logPrefix, err)
		}
	}

	s := New(Params{Config: cfg, Registry: reg, Provider: prov, Conn: nc})
	if closer != nil {
		s.closers = append(s.closers, closer)
	}

	// Step 4: Transports
	if err := s.Subscribe(); err != nil {
		s.Shutdown(ctx)
		return err
	}
	s.ListenHTTP()
	s.MarkReady()
	slog.Info(fmt.Sprintf("%s - channel-gateway is ready (%d channels)", logPrefix, reg.Len()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
	defer shutdownCancel()
	s.Shutdown(shutdownCtx)

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}
