// Package runner drives zones and the debug server on periodic tickers and
// serves the debugger websocket and the metrics endpoint.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	bt "github.com/joeycumines/go-behaviortree"
	"golang.org/x/sync/errgroup"

	"github.com/vengi-voxel/vengi-sub015/internal/ai"
	"github.com/vengi-voxel/vengi-sub015/internal/debug"
	"github.com/vengi-voxel/vengi-sub015/internal/metrics"
	"github.com/vengi-voxel/vengi-sub015/internal/transport/ws"
)

// DefaultTickInterval is used when Config.TickInterval is not positive.
const DefaultTickInterval = 100 * time.Millisecond

const shutdownTimeout = 5 * time.Second

// Config selects what a Runner serves.
type Config struct {
	TickInterval time.Duration
	// Addr is the listen address of the HTTP endpoint; empty disables it.
	Addr string
	// Debug enables the debug server and its websocket endpoint.
	Debug       bool
	AllowRemote bool
	// RecordPath, if set, records every debugger broadcast.
	RecordPath string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics serves m on /metrics. Zones report to it only if they were
// created with ai.WithObserver(m).
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// Runner owns a set of zones for the duration of Run.
type Runner struct {
	cfg      Config
	logger   *slog.Logger
	registry *ai.Registry
	zones    []*ai.Zone
	metrics  *metrics.Metrics

	hub      *ws.Hub
	server   *debug.Server
	recorder *debug.Recorder
	mux      *http.ServeMux
}

// New wires the debug server, websocket hub and HTTP routes for zones.
func New(cfg Config, registry *ai.Registry, zones []*ai.Zone, opts ...Option) (*Runner, error) {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	r := &Runner{
		cfg:      cfg,
		logger:   slog.Default(),
		registry: registry,
		zones:    zones,
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if cfg.Debug {
		var serverOpts []debug.Option
		serverOpts = append(serverOpts, debug.WithLogger(r.logger))
		if cfg.RecordPath != "" {
			rec, err := debug.CreateRecorder(cfg.RecordPath)
			if err != nil {
				return nil, err
			}
			r.recorder = rec
			serverOpts = append(serverOpts, debug.WithRecorder(rec))
		}
		r.hub = ws.NewHub(ws.WithLogger(r.logger), ws.WithAllowRemote(cfg.AllowRemote))
		r.server = debug.NewServer(registry, r.hub, serverOpts...)
		r.hub.SetHandler(r.server)
		for _, z := range zones {
			r.server.AddZone(z)
		}
		r.mux.Handle("/ws", r.hub)
	}
	if r.metrics != nil {
		r.mux.Handle("/metrics", r.metrics.Handler())
	}
	r.mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r, nil
}

// Server returns the debug server, nil if debugging is disabled.
func (r *Runner) Server() *debug.Server { return r.server }

// Handler returns the HTTP routes.
func (r *Runner) Handler() http.Handler { return r.mux }

// Zones returns the driven zones.
func (r *Runner) Zones() []*ai.Zone { return r.zones }

func (r *Runner) zoneNode(z *ai.Zone) bt.Node {
	millis := r.cfg.TickInterval.Milliseconds()
	return bt.New(func([]bt.Node) (bt.Status, error) {
		z.Update(millis)
		return bt.Running, nil
	})
}

func (r *Runner) serverNode() bt.Node {
	millis := r.cfg.TickInterval.Milliseconds()
	return bt.New(func([]bt.Node) (bt.Status, error) {
		r.server.Update(millis)
		return bt.Running, nil
	})
}

// Run ticks every zone and the debug server until ctx is done or a ticker
// fails. The zones are shut down on return.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer r.close()

	manager := bt.NewManager()
	for _, z := range r.zones {
		if err := manager.Add(bt.NewTicker(ctx, r.cfg.TickInterval, r.zoneNode(z))); err != nil {
			return err
		}
	}
	if r.server != nil {
		if err := manager.Add(bt.NewTicker(ctx, r.cfg.TickInterval, r.serverNode())); err != nil {
			return err
		}
	}
	r.logger.Info("runner started", "zones", len(r.zones), "interval", r.cfg.TickInterval, "debug", r.server != nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-manager.Done()
		if ctx.Err() != nil {
			return nil
		}
		cancel()
		return manager.Err()
	})
	g.Go(func() error {
		<-gctx.Done()
		manager.Stop()
		return nil
	})
	if r.cfg.Addr != "" {
		ln, err := net.Listen("tcp", r.cfg.Addr)
		if err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
		srv := &http.Server{Handler: r.mux, ReadHeaderTimeout: 10 * time.Second}
		r.logger.Info("http endpoint listening", "addr", ln.Addr().String())
		g.Go(func() error {
			if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			if r.hub != nil {
				r.hub.Close()
			}
			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			return srv.Shutdown(sctx)
		})
	}
	err := g.Wait()
	r.logger.Info("runner stopped", "err", err)
	return err
}

func (r *Runner) close() {
	for _, z := range r.zones {
		z.Shutdown()
	}
	if r.recorder != nil {
		if err := r.recorder.Close(); err != nil {
			r.logger.Warn("failed to close recording", "err", err)
		}
	}
}
