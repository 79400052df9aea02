// Package identity decides which user id local data syncs under and moves
// anonymous data to an account on first sign-in.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/smith3v/quizsync/pkg/logger"
	"github.com/smith3v/quizsync/pkg/store"
)

type State string

const (
	Anonymous     State = "anonymous"
	Authenticated State = "authenticated"
)

// Pusher uploads every local record under the given user id.
type Pusher interface {
	PushAll(ctx context.Context, userID string) error
}

type Resolver struct {
	store *store.Store
	mu    sync.Mutex
}

func NewResolver(st *store.Store) *Resolver {
	return &Resolver{store: st}
}

// AnonymousID returns the device's anonymous id, generating and persisting
// it on first use.
func (r *Resolver) AnonymousID(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok, err := r.store.GetKV(ctx, store.KeyAnonymousUserID)
	if err != nil {
		return "", err
	}
	if ok && id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := r.store.SetKV(ctx, store.KeyAnonymousUserID, id); err != nil {
		return "", fmt.Errorf("persist anonymous id: %w", err)
	}
	logger.Info("generated anonymous user id", "user_id", id)
	return id, nil
}

// AuthenticatedID returns the signed-in account id, if any.
func (r *Resolver) AuthenticatedID(ctx context.Context) (string, bool, error) {
	id, ok, err := r.store.GetKV(ctx, store.KeyAuthUserID)
	if err != nil || !ok || id == "" {
		return "", false, err
	}
	return id, true, nil
}

// ActiveUserID is the id remote rows are scoped by: the account when signed
// in, the anonymous device id otherwise.
func (r *Resolver) ActiveUserID(ctx context.Context) (string, error) {
	id, ok, err := r.AuthenticatedID(ctx)
	if err != nil {
		return "", err
	}
	if ok {
		return id, nil
	}
	return r.AnonymousID(ctx)
}

func (r *Resolver) State(ctx context.Context) (State, error) {
	_, ok, err := r.AuthenticatedID(ctx)
	if err != nil {
		return "", err
	}
	if ok {
		return Authenticated, nil
	}
	return Anonymous, nil
}

// SignIn records the account id and migrates anonymous data to it. A failed
// migration is logged and does not fail the sign-in; it is retried on the
// next sign-in and the next full sync pushes the same data anyway.
func (r *Resolver) SignIn(ctx context.Context, authID string, pusher Pusher) error {
	authID = strings.TrimSpace(authID)
	if authID == "" {
		return errors.New("authenticated user id is empty")
	}
	anonID, err := r.AnonymousID(ctx)
	if err != nil {
		return err
	}
	if err := r.store.SetKV(ctx, store.KeyAuthUserID, authID); err != nil {
		return fmt.Errorf("persist authenticated id: %w", err)
	}
	logger.Info("signed in", "user_id", authID)

	if _, err := r.Migrate(ctx, anonID, authID, pusher); err != nil {
		logger.Warn("anonymous data migration failed", "from", anonID, "to", authID, "error", err)
	}
	return nil
}

func (r *Resolver) SignOut(ctx context.Context) error {
	if err := r.store.DeleteKV(ctx, store.KeyAuthUserID); err != nil {
		return fmt.Errorf("clear authenticated id: %w", err)
	}
	logger.Info("signed out")
	return nil
}

// Migrate pushes local data under authID once per anonID/authID pair. It
// reports whether a push happened.
func (r *Resolver) Migrate(ctx context.Context, anonID, authID string, pusher Pusher) (bool, error) {
	if pusher == nil || anonID == "" || authID == "" || anonID == authID {
		return false, nil
	}
	key := migrationKey(anonID, authID)
	_, done, err := r.store.GetKV(ctx, key)
	if err != nil {
		return false, err
	}
	if done {
		logger.Debug("anonymous data already migrated", "from", anonID, "to", authID)
		return false, nil
	}

	if err := pusher.PushAll(ctx, authID); err != nil {
		return false, fmt.Errorf("push local data: %w", err)
	}
	if err := r.store.SetKV(ctx, key, "1"); err != nil {
		return true, fmt.Errorf("record migration: %w", err)
	}
	logger.Info("migrated anonymous data", "from", anonID, "to", authID)
	return true, nil
}

func migrationKey(anonID, authID string) string {
	return "migrated:" + anonID + ":" + authID
}
