// Package store is the typed access layer over the local sqlite tables.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smith3v/quizsync/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrMalformedLocalData = errors.New("malformed local data")
)

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

type Option func(*Store)

// WithClock overrides the time source used to stamp writes.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(gdb *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:  gdb,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Now() time.Time {
	return s.now()
}

// QuestionQuery narrows the question bank. Zero values match everything.
type QuestionQuery struct {
	Theme      string
	Difficulty int
	Tier       int
	ExcludeIDs []string
}

func (s *Store) Questions(ctx context.Context, q QuestionQuery) ([]db.Question, error) {
	tx := s.db.WithContext(ctx).Model(&db.Question{})
	if q.Theme != "" {
		tx = tx.Where("theme = ?", q.Theme)
	}
	if q.Difficulty > 0 {
		tx = tx.Where("difficulty = ?", q.Difficulty)
	}
	if q.Tier > 0 {
		tx = tx.Where("tier = ?", q.Tier)
	}
	if len(q.ExcludeIDs) > 0 {
		tx = tx.Where("id NOT IN ?", q.ExcludeIDs)
	}
	var questions []db.Question
	if err := tx.Order("id").Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return questions, nil
}

func (s *Store) Question(ctx context.Context, id string) (*db.Question, error) {
	var q db.Question
	if err := s.db.WithContext(ctx).First(&q, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &q, nil
}

func (s *Store) CountQuestions(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&db.Question{}).Count(&n).Error
	return n, err
}

// SaveSimulation persists a locally edited simulation and stamps its write clock.
func (s *Store) SaveSimulation(ctx context.Context, sim *db.Simulation) error {
	if err := sim.Validate(); err != nil {
		return err
	}
	now := s.now()
	sim.ModifiedAt = &now
	if sim.CreatedAt.IsZero() {
		sim.CreatedAt = now
	}
	return s.upsert(ctx, sim)
}

// PutSimulation stores a simulation exactly as given, e.g. adopted from the remote.
func (s *Store) PutSimulation(ctx context.Context, sim db.Simulation) error {
	if err := sim.Validate(); err != nil {
		return err
	}
	return s.upsert(ctx, &sim)
}

func (s *Store) Simulation(ctx context.Context, id string) (*db.Simulation, error) {
	var sim db.Simulation
	if err := s.db.WithContext(ctx).First(&sim, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &sim, nil
}

// Simulations returns every simulation, newest first.
func (s *Store) Simulations(ctx context.Context) ([]db.Simulation, error) {
	var sims []db.Simulation
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&sims).Error; err != nil {
		return nil, fmt.Errorf("load simulations: %w", err)
	}
	return sims, nil
}

// CompletedSimulations returns completed simulations, oldest first.
func (s *Store) CompletedSimulations(ctx context.Context) ([]db.Simulation, error) {
	var sims []db.Simulation
	err := s.db.WithContext(ctx).
		Where("completed_at IS NOT NULL").
		Order("created_at ASC").
		Find(&sims).Error
	if err != nil {
		return nil, fmt.Errorf("load completed simulations: %w", err)
	}
	return sims, nil
}

// AnsweredQuestionIDs collects every question id answered in any simulation.
func (s *Store) AnsweredQuestionIDs(ctx context.Context) (map[string]struct{}, error) {
	sims, err := s.Simulations(ctx)
	if err != nil {
		return nil, err
	}
	answered := make(map[string]struct{})
	for _, sim := range sims {
		for _, q := range sim.Questions {
			if q.Answered() {
				answered[q.QuestionID] = struct{}{}
			}
		}
	}
	return answered, nil
}

func (s *Store) Progress(ctx context.Context) (*db.UserProgress, error) {
	var p db.UserProgress
	if err := s.db.WithContext(ctx).First(&p, "id = ?", db.UserProgressID).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) PutProgress(ctx context.Context, p db.UserProgress) error {
	p.ID = db.UserProgressID
	return s.upsert(ctx, &p)
}

func (s *Store) FlashcardProgress(ctx context.Context, questionID string) (*db.FlashcardProgress, error) {
	var p db.FlashcardProgress
	if err := s.db.WithContext(ctx).First(&p, "question_id = ?", questionID).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) AllFlashcardProgress(ctx context.Context) ([]db.FlashcardProgress, error) {
	var records []db.FlashcardProgress
	if err := s.db.WithContext(ctx).Order("question_id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load flashcard progress: %w", err)
	}
	return records, nil
}

// DueFlashcards returns records due at or before now, earliest first.
// A non-positive limit returns all of them.
func (s *Store) DueFlashcards(ctx context.Context, now time.Time, limit int) ([]db.FlashcardProgress, error) {
	tx := s.db.WithContext(ctx).Where("due_at <= ?", now).Order("due_at ASC").Order("question_id")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var records []db.FlashcardProgress
	if err := tx.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load due flashcards: %w", err)
	}
	return records, nil
}

func (s *Store) PutFlashcardProgress(ctx context.Context, p db.FlashcardProgress) error {
	return s.upsert(ctx, &p)
}

func (s *Store) CustomFlashcards(ctx context.Context) ([]db.CustomFlashcard, error) {
	var cards []db.CustomFlashcard
	if err := s.db.WithContext(ctx).Order("created_at").Order("id").Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("load custom flashcards: %w", err)
	}
	return cards, nil
}

func (s *Store) CustomFlashcard(ctx context.Context, id string) (*db.CustomFlashcard, error) {
	var card db.CustomFlashcard
	if err := s.db.WithContext(ctx).First(&card, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &card, nil
}

func (s *Store) PutCustomFlashcard(ctx context.Context, card db.CustomFlashcard) error {
	if card.CreatedAt.IsZero() {
		card.CreatedAt = s.now()
	}
	return s.upsert(ctx, &card)
}

func (s *Store) upsert(ctx context.Context, value any) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(value).Error
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
