package preview

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"git.home.luguber.info/inful/sitegen/internal/events"
	"git.home.luguber.info/inful/sitegen/internal/incremental"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
	"git.home.luguber.info/inful/sitegen/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

// Options configures a DevServer.
type Options struct {
	Host       string
	Port       int
	LiveReload bool
	Debounce   time.Duration
	// RebuildInterval schedules periodic full rebuilds when positive.
	RebuildInterval time.Duration
	// Metrics is mounted at MetricsPath when non-nil.
	Metrics  http.Handler
	Recorder metrics.Recorder
	Bus      *events.Bus
	// Ready is called with the bound address once the server accepts connections.
	Ready func(net.Addr)
}

// DevServer builds the site once, then watches, rebuilds and serves it until
// its context ends. Build failures are logged and never stop the server.
type DevServer struct {
	builder *incremental.Builder
	opts    Options
}

// NewDevServer returns a server driving b.
func NewDevServer(b *incremental.Builder, opts Options) *DevServer {
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	return &DevServer{builder: b, opts: opts}
}

// Run blocks until ctx is canceled or the HTTP server fails.
func (d *DevServer) Run(ctx context.Context) error {
	s := d.builder.Site()
	if err := d.builder.GenerateSite(ctx); err != nil {
		slog.Error("Initial build failed; serving whatever output exists", logfields.Error(err))
	}

	var hub *Hub
	var reload Broadcaster
	if d.opts.LiveReload {
		hub = NewHub(d.opts.Recorder)
		reload = hub
		if _, err := InjectTree(s.OutputRoot); err != nil {
			slog.Warn("Live reload injection failed", logfields.Error(err))
		}
	}

	router := RouterOptions{Root: s.OutputRoot, Metrics: d.opts.Metrics}
	if hub != nil {
		router.Hub = hub
	}
	srv, err := Listen(net.JoinHostPort(d.opts.Host, strconv.Itoa(d.opts.Port)), NewRouter(router))
	if err != nil {
		return err
	}

	watcher, err := NewWatcher(s.ContentRoot, s.ThemeRoot)
	if err != nil {
		_ = srv.Shutdown(context.Background())
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		watcher.Run(runCtx)
	}()

	loop := NewLoop(d.builder, LoopOptions{
		ContentRoot: s.ContentRoot,
		ThemeRoot:   s.ThemeRoot,
		OutputRoot:  s.OutputRoot,
		Debounce:    d.opts.Debounce,
		Reload:      reload,
		Recorder:    d.opts.Recorder,
		Bus:         d.opts.Bus,
	})
	go func() {
		defer wg.Done()
		loop.Run(runCtx, watcher.Events())
	}()

	var sched *Scheduler
	if d.opts.RebuildInterval > 0 {
		if sched, err = NewScheduler(); err != nil {
			slog.Warn("Periodic rebuilds disabled", logfields.Error(err))
		} else if _, err := sched.SchedulePeriodicRebuild(d.opts.RebuildInterval, loop); err != nil {
			slog.Warn("Periodic rebuilds disabled", logfields.Error(err))
			sched = nil
		} else {
			sched.Start()
			slog.Info("Periodic rebuild scheduled", slog.String("interval", d.opts.RebuildInterval.String()))
		}
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve() }()

	for _, u := range ListenURLs(srv.Port()) {
		slog.Info("Preview server listening", logfields.URL(u))
	}
	if d.opts.Ready != nil {
		d.opts.Ready(srv.Addr())
	}

	select {
	case <-ctx.Done():
		err = nil
	case err = <-serveErr:
	}

	slog.Info("Shutting down preview server")
	if sched != nil {
		if stopErr := sched.Stop(); stopErr != nil {
			slog.Warn("Scheduler shutdown failed", logfields.Error(stopErr))
		}
	}
	if hub != nil {
		hub.Shutdown()
	}
	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if stopErr := srv.Shutdown(shutdownCtx); stopErr != nil {
		slog.Warn("HTTP server shutdown failed", logfields.Error(stopErr))
	}
	cancel()
	_ = watcher.Close()
	wg.Wait()
	return err
}
