package preview

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/sitegen/internal/events"
	"git.home.luguber.info/inful/sitegen/internal/fsutil"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
	"git.home.luguber.info/inful/sitegen/internal/metrics"
)

// DefaultDebounce is the settle period that closes a batch of events.
const DefaultDebounce = 250 * time.Millisecond

const publishTimeout = 2 * time.Second

// Rebuilder is the build surface the loop drives.
type Rebuilder interface {
	GenerateSite(ctx context.Context) error
	GenerateIncrementalForPath(ctx context.Context, path string, isRemoved bool) error
	LastBuildID() string
}

// Broadcaster delivers the reload signal and reports how many clients got it.
type Broadcaster interface {
	Broadcast() int
}

// LoopOptions configures a Loop.
type LoopOptions struct {
	ContentRoot string
	ThemeRoot   string
	OutputRoot  string
	Debounce    time.Duration
	// Reload is nil when live reload is off.
	Reload   Broadcaster
	Recorder metrics.Recorder
	Bus      *events.Bus
}

// Loop is the single goroutine that owns the builder. It batches raw events,
// applies them one batch at a time and signals browsers afterwards.
type Loop struct {
	builder Rebuilder
	opts    LoopOptions
	roots   []string
	output  string
	full    chan struct{}
}

// NewLoop returns a loop driving b.
func NewLoop(b Rebuilder, opts LoopOptions) *Loop {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	l := &Loop{builder: b, opts: opts, full: make(chan struct{}, 1)}
	if opts.OutputRoot != "" {
		l.output = fsutil.Canonical(opts.OutputRoot)
	}
	for _, root := range []string{opts.ContentRoot, opts.ThemeRoot} {
		if root != "" {
			l.roots = append(l.roots, fsutil.Canonical(root))
		}
	}
	return l
}

// RequestFullRebuild queues a full rebuild. Requests made while one is already
// queued are coalesced. Safe to call from any goroutine.
func (l *Loop) RequestFullRebuild() {
	select {
	case l.full <- struct{}{}:
	default:
	}
}

// Run processes events until ctx ends or the channel closes. Builds never overlap:
// the next batch is read only after the previous rebuild returned.
func (l *Loop) Run(ctx context.Context, in <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.full:
			l.fullRebuild(ctx, "scheduled")
			l.reload(ctx)
		case ev, ok := <-in:
			if !ok {
				return
			}
			batch, open := collect(ctx, ev, in, l.opts.Debounce)
			l.apply(ctx, batch)
			l.reload(ctx)
			if !open {
				return
			}
		}
	}
}

// batch maps canonical paths to whether any of their events was a removal.
// order keeps first-seen order so rebuilds are deterministic.
type batch struct {
	removed map[string]bool
	order   []string
}

func (b *batch) add(ev Event) {
	p := fsutil.Canonical(ev.Path)
	if prev, ok := b.removed[p]; ok {
		b.removed[p] = prev || ev.Removed
		return
	}
	b.removed[p] = ev.Removed
	b.order = append(b.order, p)
}

// collect drains events until none arrive for debounce. open is false when the
// input channel closed during the drain.
func collect(ctx context.Context, first Event, in <-chan Event, debounce time.Duration) (b *batch, open bool) {
	b = &batch{removed: map[string]bool{}}
	b.add(first)

	timer := time.NewTimer(debounce)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return b, true
		case <-timer.C:
			return b, true
		case ev, ok := <-in:
			if !ok {
				return b, false
			}
			b.add(ev)
			timer.Reset(debounce)
		}
	}
}

func (l *Loop) apply(ctx context.Context, b *batch) {
	actionable := 0
	for _, p := range b.order {
		removed := b.removed[p]
		if !l.watched(p) {
			slog.Debug("Dropping change outside watched roots", logfields.Path(p))
			continue
		}
		actionable++
		slog.Info("Change detected", logfields.Path(p), logfields.Removed(removed))
		if err := l.builder.GenerateIncrementalForPath(ctx, p, removed); err != nil {
			slog.Warn("Incremental build failed, falling back to full rebuild",
				logfields.Path(p), logfields.Error(err))
			l.opts.Recorder.IncFallback()
			l.fullRebuild(ctx, "fallback")
		}
	}
	if actionable == 0 {
		slog.Debug("No actionable change in batch, rebuilding everything")
		l.fullRebuild(ctx, "batch")
	}
}

func (l *Loop) fullRebuild(ctx context.Context, reason string) {
	if err := l.builder.GenerateSite(ctx); err != nil {
		slog.Error("Full rebuild failed", slog.String("reason", reason), logfields.Error(err))
	}
}

// watched reports whether p lies under a watched root. The output tree is never
// watched, even when it sits inside the content root.
func (l *Loop) watched(p string) bool {
	if l.output != "" && fsutil.Within(p, l.output) {
		return false
	}
	for _, root := range l.roots {
		if fsutil.Within(p, root) {
			return true
		}
	}
	return false
}

func (l *Loop) reload(ctx context.Context) {
	if l.opts.Reload == nil {
		return
	}
	if n, err := InjectTree(l.opts.OutputRoot); err != nil {
		slog.Warn("Live reload injection failed", logfields.Error(err))
	} else if n > 0 {
		slog.Debug("Injected live reload script", slog.Int("files", n))
	}
	clients := l.opts.Reload.Broadcast()
	if l.opts.Bus == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	evt := events.ReloadSent{BuildID: l.builder.LastBuildID(), Clients: clients, SentAt: time.Now()}
	if err := l.opts.Bus.Publish(pctx, evt); err != nil {
		slog.Debug("Dropping reload event", logfields.Error(err))
	}
}
