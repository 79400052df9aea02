package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/smith3v/quizsync/pkg/db"
	"github.com/smith3v/quizsync/pkg/logger"
	"gorm.io/gorm"
)

// Initialize seeds the question bank when it is empty, creates the progress
// singleton when it is missing and moves legacy flashcard data into its table.
func (s *Store) Initialize(ctx context.Context, questions []db.Question) error {
	count, err := s.CountQuestions(ctx)
	if err != nil {
		return fmt.Errorf("count questions: %w", err)
	}
	if count == 0 && len(questions) > 0 {
		if err := s.db.WithContext(ctx).CreateInBatches(questions, 200).Error; err != nil {
			return fmt.Errorf("seed questions: %w", err)
		}
		logger.Info("seeded question bank", "count", len(questions))
	}

	if _, err := s.Progress(ctx); errors.Is(err, ErrNotFound) {
		now := s.now()
		initial := db.UserProgress{
			ID:      db.UserProgressID,
			ByTheme: db.ThemeRollup{},
			Trends: db.TrendAnalysis{
				OverallTrend:    db.TrendStable,
				StrongThemes:    []string{},
				WeakThemes:      []string{},
				Recommendations: []string{},
			},
			LastActivityDate: &now,
			LastUpdated:      now,
		}
		if err := s.PutProgress(ctx, initial); err != nil {
			return fmt.Errorf("create user progress: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("load user progress: %w", err)
	}

	if _, err := s.MigrateLegacyFlashcardProgress(ctx); err != nil {
		if !errors.Is(err, ErrMalformedLocalData) {
			return err
		}
		logger.Warn("legacy flashcard data left in place", "error", err)
	}
	return nil
}

type legacyFlashcard struct {
	QuestionID   string         `json:"questionId"`
	Interval     int            `json:"interval"`
	Repetition   int            `json:"repetition"`
	EFactor      *float64       `json:"efactor"`
	EaseFactor   *float64       `json:"easeFactor"`
	DueDate      int64          `json:"dueDate"`
	LastReviewed *int64         `json:"lastReviewed"`
	History      []legacyReview `json:"history"`
}

type legacyReview struct {
	Date  int64 `json:"date"`
	Grade int   `json:"grade"`
}

// MigrateLegacyFlashcardProgress moves the flat key-value flashcard blob into
// the flashcard_progress table. It only runs while that table is empty, and
// removes the blob once the rows are written. Malformed blobs are reported
// with ErrMalformedLocalData and left untouched.
func (s *Store) MigrateLegacyFlashcardProgress(ctx context.Context) (int, error) {
	raw, ok, err := s.GetKV(ctx, KeyLegacyFlashcards)
	if err != nil || !ok {
		return 0, err
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&db.FlashcardProgress{}).Count(&existing).Error; err != nil {
		return 0, fmt.Errorf("count flashcard progress: %w", err)
	}
	if existing > 0 {
		return 0, nil
	}

	records, err := decodeLegacyFlashcards(raw)
	if err != nil {
		return 0, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(records) > 0 {
			if err := tx.CreateInBatches(records, 200).Error; err != nil {
				return err
			}
		}
		return tx.Where("kv_key = ?", KeyLegacyFlashcards).Delete(&db.KVEntry{}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("migrate legacy flashcards: %w", err)
	}
	logger.Info("migrated legacy flashcard progress", "count", len(records))
	return len(records), nil
}

func decodeLegacyFlashcards(raw string) ([]db.FlashcardProgress, error) {
	var blob map[string]legacyFlashcard
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return nil, fmt.Errorf("%w: legacy flashcards: %v", ErrMalformedLocalData, err)
	}

	records := make([]db.FlashcardProgress, 0, len(blob))
	for key, item := range blob {
		id := item.QuestionID
		if id == "" {
			id = key
		}
		if id == "" {
			return nil, fmt.Errorf("%w: legacy flashcard without question id", ErrMalformedLocalData)
		}
		if item.Interval < 0 || item.Repetition < 0 {
			return nil, fmt.Errorf("%w: legacy flashcard %s has negative counters", ErrMalformedLocalData, id)
		}

		ease := db.DefaultEase
		switch {
		case item.EaseFactor != nil:
			ease = *item.EaseFactor
		case item.EFactor != nil:
			ease = *item.EFactor
		}

		record := db.FlashcardProgress{
			QuestionID: id,
			Interval:   item.Interval,
			Repetition: item.Repetition,
			EaseFactor: ease,
			DueAt:      time.UnixMilli(item.DueDate).UTC(),
			History:    make(db.ReviewHistory, 0, len(item.History)),
		}
		if item.LastReviewed != nil {
			last := time.UnixMilli(*item.LastReviewed).UTC()
			record.LastReviewedAt = &last
		}
		for _, h := range item.History {
			record.History = append(record.History, db.ReviewEvent{
				At:    time.UnixMilli(h.Date).UTC(),
				Grade: h.Grade,
			})
		}
		records = append(records, record)
	}
	return records, nil
}
