package srs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/smith3v/quizsync/pkg/db"
	"github.com/smith3v/quizsync/pkg/logger"
	"github.com/smith3v/quizsync/pkg/store"
)

// SyncRequester schedules a background sync after a local write.
type SyncRequester interface {
	RequestSync(reason string)
}

var ErrEmptyCard = errors.New("custom card needs a theme, a front and a back")

type Service struct {
	store *store.Store
	sync  SyncRequester
	newID func() (string, error)
}

func NewService(st *store.Store, sync SyncRequester) *Service {
	return &Service{
		store: st,
		sync:  sync,
		newID: func() (string, error) { return gonanoid.New() },
	}
}

// SubmitReview grades a card, persists the new schedule and appends the
// review to its history. Cards are created on their first review.
func (s *Service) SubmitReview(ctx context.Context, cardID string, grade Grade) (*db.FlashcardProgress, error) {
	if !grade.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGrade, grade)
	}
	now := s.store.Now()

	record, err := s.store.FlashcardProgress(ctx, cardID)
	if errors.Is(err, store.ErrNotFound) {
		record = newRecord(cardID, now)
	} else if err != nil {
		return nil, err
	}

	item := Review(Item{
		Interval:   record.Interval,
		Repetition: record.Repetition,
		EFactor:    record.EaseFactor,
	}, grade)

	record.Interval = item.Interval
	record.Repetition = item.Repetition
	record.EaseFactor = item.EFactor
	record.DueAt = NextReviewDate(now, item.Interval)
	record.LastReviewedAt = &now
	record.History = append(record.History, db.ReviewEvent{At: now, Grade: int(grade)})

	if err := s.store.PutFlashcardProgress(ctx, *record); err != nil {
		return nil, fmt.Errorf("save review for %s: %w", cardID, err)
	}
	logger.Debug("flashcard reviewed", "card_id", cardID, "grade", int(grade), "interval", item.Interval)
	s.requestSync("flashcard review")
	return record, nil
}

// AddCardsToReview makes the given cards due now. Unknown cards start from
// the initial schedule.
func (s *Service) AddCardsToReview(ctx context.Context, cardIDs []string) error {
	if len(cardIDs) == 0 {
		return nil
	}
	now := s.store.Now()
	for _, id := range cardIDs {
		record, err := s.store.FlashcardProgress(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			record = newRecord(id, now)
		} else if err != nil {
			return err
		}
		record.DueAt = now
		if err := s.store.PutFlashcardProgress(ctx, *record); err != nil {
			return fmt.Errorf("queue %s for review: %w", id, err)
		}
	}
	s.requestSync("cards added to review")
	return nil
}

// AddCustomCard saves a user-written card and makes it due now.
func (s *Service) AddCustomCard(ctx context.Context, theme, subtheme, front, back string) (*db.CustomFlashcard, error) {
	card := db.CustomFlashcard{
		Theme:    strings.TrimSpace(theme),
		Subtheme: strings.TrimSpace(subtheme),
		Front:    strings.TrimSpace(front),
		Back:     strings.TrimSpace(back),
	}
	if card.Theme == "" || card.Front == "" || card.Back == "" {
		return nil, ErrEmptyCard
	}
	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("generate card id: %w", err)
	}
	card.ID = "custom-" + id
	card.CreatedAt = s.store.Now()
	if err := s.store.PutCustomFlashcard(ctx, card); err != nil {
		return nil, fmt.Errorf("save custom card: %w", err)
	}
	if err := s.store.PutFlashcardProgress(ctx, *newRecord(card.ID, card.CreatedAt)); err != nil {
		return nil, fmt.Errorf("schedule custom card: %w", err)
	}
	s.requestSync("custom card added")
	return &card, nil
}

func (s *Service) DueCards(ctx context.Context, limit int) ([]db.FlashcardProgress, error) {
	return s.store.DueFlashcards(ctx, s.store.Now(), limit)
}

type Stats struct {
	Learned        int
	Due            int
	Tracked        int
	TotalQuestions int64
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	records, err := s.store.AllFlashcardProgress(ctx)
	if err != nil {
		return Stats{}, err
	}
	total, err := s.store.CountQuestions(ctx)
	if err != nil {
		return Stats{}, err
	}
	now := s.store.Now()
	stats := Stats{Tracked: len(records), TotalQuestions: total}
	for _, r := range records {
		if r.Repetition > 0 {
			stats.Learned++
		}
		if !r.DueAt.After(now) {
			stats.Due++
		}
	}
	return stats, nil
}

func (s *Service) requestSync(reason string) {
	if s.sync != nil {
		s.sync.RequestSync(reason)
	}
}

func newRecord(cardID string, now time.Time) *db.FlashcardProgress {
	return &db.FlashcardProgress{
		QuestionID: cardID,
		Interval:   InitialItem.Interval,
		Repetition: InitialItem.Repetition,
		EaseFactor: InitialItem.EFactor,
		DueAt:      now,
		History:    db.ReviewHistory{},
	}
}
