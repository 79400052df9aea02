package main

import (
	"context"
	"fmt"
	"time"

	"github.com/smith3v/quizsync/pkg/config"
	"github.com/smith3v/quizsync/pkg/dataset"
	"github.com/smith3v/quizsync/pkg/db"
	"github.com/smith3v/quizsync/pkg/identity"
	"github.com/smith3v/quizsync/pkg/logger"
	"github.com/smith3v/quizsync/pkg/remote"
	"github.com/smith3v/quizsync/pkg/selector"
	"github.com/smith3v/quizsync/pkg/simulation"
	"github.com/smith3v/quizsync/pkg/srs"
	"github.com/smith3v/quizsync/pkg/store"
	"github.com/smith3v/quizsync/pkg/syncer"
	"gorm.io/gorm"
)

// app is the device side: the local store and everything built on it.
type app struct {
	cfg      config.Config
	gdb      *gorm.DB
	store    *store.Store
	resolver *identity.Resolver
	client   *remote.HTTPClient
	engine   *syncer.Engine
	queue    *syncer.TaskQueue
	bg       *syncer.Background
	selector *selector.Selector
	reviews  *srs.Service
	sims     *simulation.Service
}

func openApp(ctx context.Context, cfg config.Config) (*app, error) {
	gdb, err := db.OpenLocal(cfg.Local.Path)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	st := store.New(gdb)
	a := &app{cfg: cfg, gdb: gdb, store: st}

	questions, err := a.pendingDataset(ctx)
	if err != nil {
		_ = db.Close(gdb)
		return nil, err
	}
	if err := st.Initialize(ctx, questions); err != nil {
		_ = db.Close(gdb)
		return nil, fmt.Errorf("initialize local store: %w", err)
	}

	a.resolver = identity.NewResolver(st)
	var rs remote.Store
	if cfg.RemoteEnabled() {
		client, err := remote.NewHTTPClient(cfg.Remote.BaseURL,
			remote.WithTimeout(cfg.Remote.Timeout),
			remote.WithTokenSource(a.token),
		)
		if err != nil {
			_ = db.Close(gdb)
			return nil, err
		}
		a.client = client
		rs = client
	}
	a.engine = syncer.NewEngine(st, rs, a.resolver)
	a.queue = syncer.NewTaskQueue(ctx, cfg.Sync.QueueWorkers, cfg.Sync.QueueSize)
	a.bg = syncer.NewBackground(a.engine, a.queue)
	a.selector = selector.New(st)
	a.reviews = srs.NewService(st, a.bg)
	a.sims = simulation.NewService(st, a.selector, a.reviews, a.bg)
	return a, nil
}

// pendingDataset loads the configured dataset only while the bank is empty.
func (a *app) pendingDataset(ctx context.Context) ([]db.Question, error) {
	if a.cfg.Local.Dataset == "" {
		return nil, nil
	}
	count, err := a.store.CountQuestions(ctx)
	if err != nil || count > 0 {
		return nil, err
	}
	res, err := dataset.LoadFile(a.cfg.Local.Dataset)
	if err != nil {
		return nil, err
	}
	return res.Questions, nil
}

// token prefers the configured token over one saved by the login command.
func (a *app) token(ctx context.Context) (string, error) {
	if a.cfg.Remote.Token != "" {
		return a.cfg.Remote.Token, nil
	}
	token, _, err := a.store.GetKV(ctx, store.KeyRemoteToken)
	return token, err
}

// Close lets requested syncs finish, bounded by the remote timeout, then
// closes the store.
func (a *app) Close() {
	wait := a.cfg.Remote.Timeout
	if wait <= 0 {
		wait = remote.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	if err := a.bg.Wait(ctx); err != nil {
		logger.Warn("pending sync did not finish before exit", "error", err)
	}
	a.queue.Close()
	if err := db.Close(a.gdb); err != nil {
		logger.Error("failed to close local store", "error", err)
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format(time.DateTime)
}
