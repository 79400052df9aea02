package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/smith3v/quizsync/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	KeySeenQuestions    = "seen_questions"
	KeyAnonymousUserID  = "anonymous_user_id"
	KeyAuthUserID       = "auth_user_id"
	KeyLegacyFlashcards = "psiq_flashcard_progress_v1"
	KeyRemoteToken      = "remote_token"
)

// GetKV returns the stored value and whether the key exists.
func (s *Store) GetKV(ctx context.Context, key string) (string, bool, error) {
	var entry db.KVEntry
	err := s.db.WithContext(ctx).First(&entry, "kv_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return entry.Value, true, nil
}

func (s *Store) SetKV(ctx context.Context, key, value string) error {
	entry := db.KVEntry{Key: key, Value: value, UpdatedAt: s.now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kv_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *Store) DeleteKV(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("kv_key = ?", key).Delete(&db.KVEntry{}).Error
}

// SeenQuestionIDs returns the seen ledger and whether one was ever written.
func (s *Store) SeenQuestionIDs(ctx context.Context) ([]string, bool, error) {
	raw, ok, err := s.GetKV(ctx, KeySeenQuestions)
	if err != nil || !ok {
		return nil, ok, err
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, true, fmt.Errorf("%w: seen questions: %v", ErrMalformedLocalData, err)
	}
	return ids, true, nil
}

// SetSeenQuestionIDs replaces the seen ledger. Ids that are not in the
// question bank are dropped.
func (s *Store) SetSeenQuestionIDs(ctx context.Context, ids []string) error {
	ids = lo.Uniq(ids)
	known := make([]string, 0, len(ids))
	if len(ids) > 0 {
		var existing []string
		err := s.db.WithContext(ctx).Model(&db.Question{}).Where("id IN ?", ids).Pluck("id", &existing).Error
		if err != nil {
			return fmt.Errorf("filter seen questions: %w", err)
		}
		exists := lo.Associate(existing, func(id string) (string, struct{}) { return id, struct{}{} })
		known = lo.Filter(ids, func(id string, _ int) bool {
			_, ok := exists[id]
			return ok
		})
	}
	payload, err := json.Marshal(known)
	if err != nil {
		return err
	}
	return s.SetKV(ctx, KeySeenQuestions, string(payload))
}

// MarkSeen adds ids to the seen ledger.
func (s *Store) MarkSeen(ctx context.Context, ids []string) error {
	current, _, err := s.SeenQuestionIDs(ctx)
	if err != nil && !errors.Is(err, ErrMalformedLocalData) {
		return err
	}
	return s.SetSeenQuestionIDs(ctx, append(current, ids...))
}

func (s *Store) ClearSeen(ctx context.Context) error {
	return s.SetKV(ctx, KeySeenQuestions, "[]")
}
