package srs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smith3v/quizsync/pkg/db"
	"github.com/smith3v/quizsync/pkg/internal/testutil"
	"github.com/smith3v/quizsync/pkg/store"
)

type syncRecorder struct {
	reasons []string
}

func (r *syncRecorder) RequestSync(reason string) {
	r.reasons = append(r.reasons, reason)
}

func newTestService(t *testing.T, now time.Time) (*Service, *store.Store, *syncRecorder) {
	t.Helper()
	st := store.New(testutil.SetupTestDB(t), store.WithClock(func() time.Time { return now }))
	rec := &syncRecorder{}
	return NewService(st, rec), st, rec
}

func TestSubmitReviewCreatesAndSchedules(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	svc, st, rec := newTestService(t, now)
	ctx := context.Background()

	got, err := svc.SubmitReview(ctx, "q1", GradeGood)
	if err != nil {
		t.Fatalf("SubmitReview returned error: %v", err)
	}
	if got.Interval != 1 || got.Repetition != 1 {
		t.Fatalf("unexpected schedule %+v", got)
	}
	if !got.DueAt.Equal(now.AddDate(0, 0, 1)) {
		t.Fatalf("DueAt = %v", got.DueAt)
	}

	if _, err := svc.SubmitReview(ctx, "q1", GradeFail); err != nil {
		t.Fatalf("SubmitReview returned error: %v", err)
	}
	stored, err := st.FlashcardProgress(ctx, "q1")
	if err != nil {
		t.Fatalf("FlashcardProgress returned error: %v", err)
	}
	if stored.Repetition != 0 || stored.Interval != 1 {
		t.Fatalf("expected reset after failure, got %+v", stored)
	}
	if len(stored.History) != 2 || stored.History[0].Grade != 4 || stored.History[1].Grade != 0 {
		t.Fatalf("unexpected history %+v", stored.History)
	}
	if stored.LastReviewedAt == nil || !stored.LastReviewedAt.Equal(now) {
		t.Fatalf("LastReviewedAt = %v", stored.LastReviewedAt)
	}
	if len(rec.reasons) != 2 {
		t.Fatalf("expected 2 sync requests, got %d", len(rec.reasons))
	}
}

func TestSubmitReviewRejectsInvalidGrade(t *testing.T) {
	svc, _, rec := newTestService(t, time.Now().UTC())
	if _, err := svc.SubmitReview(context.Background(), "q1", Grade(2)); !errors.Is(err, ErrInvalidGrade) {
		t.Fatalf("expected ErrInvalidGrade, got %v", err)
	}
	if len(rec.reasons) != 0 {
		t.Fatal("expected no sync request for rejected review")
	}
}

func TestAddCardsToReviewAndStats(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	svc, st, _ := newTestService(t, now)
	ctx := context.Background()

	if err := st.Initialize(ctx, []db.Question{
		{ID: "q1", Theme: "t", Statement: "s", CorrectAnswer: "A"},
		{ID: "q2", Theme: "t", Statement: "s", CorrectAnswer: "A"},
		{ID: "q3", Theme: "t", Statement: "s", CorrectAnswer: "A"},
	}); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	if err := st.PutFlashcardProgress(ctx, db.FlashcardProgress{
		QuestionID: "q1", Interval: 6, Repetition: 2, EaseFactor: 2.5, DueAt: now.AddDate(0, 0, 5),
	}); err != nil {
		t.Fatalf("PutFlashcardProgress returned error: %v", err)
	}

	if err := svc.AddCardsToReview(ctx, []string{"q1", "q2"}); err != nil {
		t.Fatalf("AddCardsToReview returned error: %v", err)
	}

	due, err := svc.DueCards(ctx, 0)
	if err != nil {
		t.Fatalf("DueCards returned error: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due cards, got %d", len(due))
	}
	q1, _ := st.FlashcardProgress(ctx, "q1")
	if q1.Interval != 6 || q1.Repetition != 2 {
		t.Fatalf("expected q1 schedule to be kept, got %+v", q1)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.Learned != 1 || stats.Due != 2 || stats.Tracked != 2 || stats.TotalQuestions != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestAddCustomCard(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	svc, st, rec := newTestService(t, now)
	svc.newID = func() (string, error) { return "abc", nil }
	ctx := context.Background()

	card, err := svc.AddCustomCard(ctx, " humor ", "", "Front", "Back")
	if err != nil {
		t.Fatalf("AddCustomCard returned error: %v", err)
	}
	if card.ID != "custom-abc" || card.Theme != "humor" || !card.CreatedAt.Equal(now) {
		t.Fatalf("unexpected card %+v", card)
	}
	if _, err := st.CustomFlashcard(ctx, "custom-abc"); err != nil {
		t.Fatalf("CustomFlashcard returned error: %v", err)
	}
	record, err := st.FlashcardProgress(ctx, "custom-abc")
	if err != nil {
		t.Fatalf("expected schedule for the new card: %v", err)
	}
	if !record.DueAt.Equal(now) || record.Repetition != 0 {
		t.Fatalf("unexpected schedule %+v", record)
	}
	if len(rec.reasons) != 1 {
		t.Fatalf("expected one sync request, got %v", rec.reasons)
	}

	if _, err := svc.AddCustomCard(ctx, "humor", "", " ", "Back"); !errors.Is(err, ErrEmptyCard) {
		t.Fatalf("expected ErrEmptyCard, got %v", err)
	}
}
