// Package syncer reconciles the local store with the remote store. Each
// entity type is pulled, merged and pushed on its own; a full sync runs all
// of them concurrently and reports one status.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smith3v/quizsync/pkg/db"
	"github.com/smith3v/quizsync/pkg/logger"
	"github.com/smith3v/quizsync/pkg/remote"
	"github.com/smith3v/quizsync/pkg/store"
	"golang.org/x/sync/errgroup"
)

// UserSource yields the user id remote rows are scoped by.
type UserSource interface {
	ActiveUserID(ctx context.Context) (string, error)
}

type Engine struct {
	store  *store.Store
	remote remote.Store
	users  UserSource
	state  *State
	now    func() time.Time
}

type EngineOption func(*Engine)

func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine wires the engine. A nil remote keeps the engine permanently
// offline.
func NewEngine(st *store.Store, rs remote.Store, users UserSource, opts ...EngineOption) *Engine {
	e := &Engine{
		store:  st,
		remote: rs,
		users:  users,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	e.state = NewState(e.now)
	return e
}

func (e *Engine) State() *State {
	return e.state
}

func (e *Engine) Snapshot() Snapshot {
	return e.state.Snapshot()
}

func (e *Engine) Subscribe(fn func(Event)) (unsubscribe func()) {
	return e.state.Subscribe(fn)
}

// Online reports whether the engine may talk to the remote store.
func (e *Engine) Online() bool {
	return e.remote != nil && e.state.Online()
}

type entitySync struct {
	name string
	run  func(ctx context.Context, userID string) error
}

func (e *Engine) entities() []entitySync {
	return []entitySync{
		{name: "simulations", run: e.SyncSimulations},
		{name: "user_progress", run: e.SyncUserProgress},
		{name: "seen_questions", run: e.SyncSeenQuestions},
		{name: "flashcard_progress", run: e.SyncFlashcardProgress},
		{name: "custom_flashcards", run: e.SyncCustomFlashcards},
	}
}

// FullSync runs every entity sync concurrently. Offline it only publishes an
// offline event. A call made while another run is in flight returns at once.
// Entity failures do not stop their siblings and come back joined.
func (e *Engine) FullSync(ctx context.Context) error {
	if !e.Online() {
		e.state.publish(Event{Status: StatusOffline, Message: "offline, changes are kept on this device"})
		return nil
	}
	if !e.state.begin() {
		logger.Debug("sync already in progress, skipping")
		return nil
	}

	err := e.fullSync(ctx)
	message := "data synchronized"
	if err != nil {
		message = failureMessage(err)
		logger.Warn("sync finished with errors", "error", err)
	} else {
		logger.Debug("sync finished")
	}
	e.state.finish(err, message)
	return err
}

func (e *Engine) fullSync(ctx context.Context) error {
	userID, err := e.users.ActiveUserID(ctx)
	if err != nil {
		return fmt.Errorf("resolve user: %w", err)
	}

	entities := e.entities()
	errs := make([]error, len(entities))
	var g errgroup.Group
	for i, entity := range entities {
		g.Go(func() error {
			if err := entity.run(ctx, userID); err != nil {
				logger.Warn("entity sync failed", "entity", entity.name, "error", err)
				errs[i] = fmt.Errorf("%s: %w", entity.name, err)
			}
			return errs[i]
		})
	}
	// Siblings keep running after a failure; report all of them.
	if err := g.Wait(); err == nil {
		return nil
	}
	return errors.Join(errs...)
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, remote.ErrTimeout):
		return "sync timed out, the server took too long to respond"
	case errors.Is(err, remote.ErrOffline):
		return "sync failed, the server could not be reached"
	case errors.Is(err, remote.ErrUnauthorized):
		return "sync failed, the session is no longer authorized"
	default:
		return "sync failed: " + err.Error()
	}
}

// PushAll uploads every local record under userID without pulling. Identity
// migration uses it to move anonymous data to an account.
func (e *Engine) PushAll(ctx context.Context, userID string) error {
	if e.remote == nil {
		return remote.ErrOffline
	}
	pushes := []func(context.Context, string) error{
		e.pushSimulations,
		e.pushUserProgress,
		e.pushSeenQuestions,
		e.pushFlashcardProgress,
		e.pushCustomFlashcards,
	}
	errs := make([]error, len(pushes))
	var g errgroup.Group
	for i, push := range pushes {
		g.Go(func() error {
			errs[i] = push(ctx, userID)
			return errs[i]
		})
	}
	if err := g.Wait(); err == nil {
		return nil
	}
	return errors.Join(errs...)
}

// MergeSimulation picks the copy to keep when both sides hold a simulation.
// When both carry a write clock the newer clock wins and ties keep local.
// Otherwise remote wins if it is completed and local is not, if it has more
// answers, or if answers tie and both are completed with remote completed
// later. It reports whether remote was chosen.
func MergeSimulation(local, remoteSim db.Simulation) (db.Simulation, bool) {
	if local.ModifiedAt != nil && remoteSim.ModifiedAt != nil {
		if remoteSim.ModifiedAt.After(*local.ModifiedAt) {
			return remoteSim, true
		}
		return local, false
	}

	localAnswered, remoteAnswered := local.AnsweredCount(), remoteSim.AnsweredCount()
	switch {
	case !local.Completed() && remoteSim.Completed():
		return remoteSim, true
	case remoteAnswered > localAnswered:
		return remoteSim, true
	case remoteAnswered == localAnswered && local.Completed() && remoteSim.Completed() &&
		remoteSim.CompletedAt.After(*local.CompletedAt):
		return remoteSim, true
	}
	return local, false
}
