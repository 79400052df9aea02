package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/smith3v/quizsync/pkg/logger"
)

// Background runs full syncs off the caller's goroutine. Local writes call
// RequestSync after saving.
type Background struct {
	engine *Engine
	queue  *TaskQueue
}

func NewBackground(engine *Engine, queue *TaskQueue) *Background {
	return &Background{engine: engine, queue: queue}
}

func (b *Background) RequestSync(reason string) {
	if !b.engine.Online() {
		logger.Debug("offline, sync deferred", "reason", reason)
		return
	}
	err := b.queue.Submit(func(ctx context.Context) {
		if err := b.engine.FullSync(ctx); err != nil {
			logger.Debug("background sync failed", "reason", reason, "error", err)
		}
	})
	switch {
	case errors.Is(err, ErrQueueFull):
		logger.Debug("sync queue full, request dropped", "reason", reason)
	case err != nil:
		logger.Warn("sync request rejected", "reason", reason, "error", err)
	}
}

// Wait blocks until every requested sync has finished.
func (b *Background) Wait(ctx context.Context) error {
	return b.queue.Wait(ctx)
}

type AutoSyncOptions struct {
	Interval     time.Duration
	InitialDelay time.Duration
}

// AutoSync triggers full syncs on a fixed interval and on visibility and
// connectivity signals.
type AutoSync struct {
	engine *Engine
	bg     *Background
	opts   AutoSyncOptions

	mu        sync.Mutex
	scheduler *gocron.Scheduler
}

func NewAutoSync(engine *Engine, bg *Background, opts AutoSyncOptions) *AutoSync {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.InitialDelay < 0 {
		opts.InitialDelay = 0
	}
	return &AutoSync{engine: engine, bg: bg, opts: opts}
}

// Start schedules the first sync after the initial delay and then one per
// interval. Without a remote store it only reports offline. Calling Start
// twice is a no-op.
func (a *AutoSync) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.scheduler != nil {
		return nil
	}
	if a.engine.remote == nil {
		logger.Info("no remote store configured, running offline only")
		a.engine.state.publish(Event{Status: StatusOffline, Message: "no remote store configured"})
		return nil
	}

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	_, err := s.Every(a.opts.Interval).
		StartAt(time.Now().Add(a.opts.InitialDelay)).
		Do(a.tick, ctx)
	if err != nil {
		return fmt.Errorf("schedule auto-sync: %w", err)
	}
	s.StartAsync()
	a.scheduler = s
	logger.Info("auto-sync started", "interval", a.opts.Interval, "initial_delay", a.opts.InitialDelay)
	return nil
}

func (a *AutoSync) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.scheduler == nil {
		return
	}
	a.scheduler.Stop()
	a.scheduler = nil
	logger.Info("auto-sync stopped")
}

func (a *AutoSync) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scheduler != nil
}

func (a *AutoSync) tick(ctx context.Context) {
	if ctx.Err() != nil || !a.engine.Online() {
		return
	}
	a.bg.RequestSync("interval")
}

// HandleVisible reacts to the app returning to the foreground.
func (a *AutoSync) HandleVisible() {
	if !a.engine.Online() {
		return
	}
	a.bg.RequestSync("visible")
}

// HandleOnline marks the remote reachable and syncs right away.
func (a *AutoSync) HandleOnline() {
	if !a.engine.state.SetOnline(true) {
		logger.Info("back online, syncing")
	}
	a.bg.RequestSync("online")
}

// HandleOffline reports offline and suppresses syncs until HandleOnline.
func (a *AutoSync) HandleOffline() {
	if a.engine.state.SetOnline(false) {
		logger.Info("went offline")
	}
}

// Signals carries external events. Nil channels are ignored.
type Signals struct {
	Visible      <-chan struct{}
	Connectivity <-chan bool
}

// Watch dispatches signals until ctx ends. Connectivity values that repeat
// the current state are ignored.
func (a *AutoSync) Watch(ctx context.Context, sig Signals) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sig.Visible:
			if !ok {
				sig.Visible = nil
				continue
			}
			a.HandleVisible()
		case online, ok := <-sig.Connectivity:
			if !ok {
				sig.Connectivity = nil
				continue
			}
			if online == a.engine.state.Online() {
				continue
			}
			if online {
				a.HandleOnline()
			} else {
				a.HandleOffline()
			}
		}
	}
}

// Pinger checks whether the remote store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProbeConnectivity pings the remote every interval and sends the result
// to out until ctx ends. It is the connectivity signal for headless runs.
func ProbeConnectivity(ctx context.Context, p Pinger, every time.Duration, out chan<- bool) {
	if every <= 0 {
		every = 10 * time.Second
	}
	probe := func() {
		err := p.Ping(ctx)
		if err != nil && ctx.Err() == nil {
			logger.Debug("connectivity probe failed", "error", err)
		}
		select {
		case out <- err == nil:
		case <-ctx.Done():
		}
	}

	probe()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}
