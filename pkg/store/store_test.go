package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smith3v/quizsync/pkg/db"
	"github.com/smith3v/quizsync/pkg/internal/testutil"
)

var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	gdb := testutil.SetupTestDB(t)
	return New(gdb, WithClock(func() time.Time { return testNow }))
}

func sampleQuestions() []db.Question {
	return []db.Question{
		{ID: "q1", Theme: "humor", Difficulty: 1, Tier: 1, Statement: "s1", CorrectAnswer: "A", Options: db.Options{"A": "a", "B": "b"}},
		{ID: "q2", Theme: "humor", Difficulty: 2, Tier: 2, Statement: "s2", CorrectAnswer: "B"},
		{ID: "q3", Theme: "ansiedade", Difficulty: 1, Tier: 1, Statement: "s3", CorrectAnswer: "C"},
	}
}

func TestInitializeSeedsOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Initialize(ctx, sampleQuestions()); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	if err := s.Initialize(ctx, []db.Question{{ID: "q9", Theme: "x", Statement: "s", CorrectAnswer: "A"}}); err != nil {
		t.Fatalf("second Initialize returned error: %v", err)
	}

	n, err := s.CountQuestions(ctx)
	if err != nil {
		t.Fatalf("CountQuestions returned error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 questions, got %d", n)
	}

	progress, err := s.Progress(ctx)
	if err != nil {
		t.Fatalf("expected progress singleton: %v", err)
	}
	if progress.ID != db.UserProgressID || progress.Trends.OverallTrend != db.TrendStable {
		t.Fatalf("unexpected progress %+v", progress)
	}
}

func TestQuestionsFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Initialize(ctx, sampleQuestions()); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	cases := []struct {
		name  string
		query QuestionQuery
		want  []string
	}{
		{name: "all", query: QuestionQuery{}, want: []string{"q1", "q2", "q3"}},
		{name: "theme", query: QuestionQuery{Theme: "humor"}, want: []string{"q1", "q2"}},
		{name: "difficulty", query: QuestionQuery{Difficulty: 1}, want: []string{"q1", "q3"}},
		{name: "tier", query: QuestionQuery{Tier: 2}, want: []string{"q2"}},
		{name: "exclude", query: QuestionQuery{ExcludeIDs: []string{"q1", "q3"}}, want: []string{"q2"}},
	}
	for _, tc := range cases {
		got, err := s.Questions(ctx, tc.query)
		if err != nil {
			t.Fatalf("%s: Questions returned error: %v", tc.name, err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("%s: got %d questions, want %d", tc.name, len(got), len(tc.want))
		}
		for i, q := range got {
			if q.ID != tc.want[i] {
				t.Fatalf("%s: got id %s at %d, want %s", tc.name, q.ID, i, tc.want[i])
			}
		}
	}
}

func TestSaveSimulationStampsWriteClock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sim := &db.Simulation{ID: "sim-1", QuestionCount: 1, Questions: db.SimulationQuestions{{QuestionID: "q1"}}}
	if err := s.SaveSimulation(ctx, sim); err != nil {
		t.Fatalf("SaveSimulation returned error: %v", err)
	}
	got, err := s.Simulation(ctx, "sim-1")
	if err != nil {
		t.Fatalf("Simulation returned error: %v", err)
	}
	if got.ModifiedAt == nil || !got.ModifiedAt.Equal(testNow) {
		t.Fatalf("expected ModifiedAt %v, got %v", testNow, got.ModifiedAt)
	}
	if !got.CreatedAt.Equal(testNow) {
		t.Fatalf("expected CreatedAt %v, got %v", testNow, got.CreatedAt)
	}
}

func TestPutSimulationKeepsRecordVerbatim(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := testNow.Add(-48 * time.Hour)
	if err := s.PutSimulation(ctx, db.Simulation{ID: "remote", CreatedAt: created}); err != nil {
		t.Fatalf("PutSimulation returned error: %v", err)
	}
	got, err := s.Simulation(ctx, "remote")
	if err != nil {
		t.Fatalf("Simulation returned error: %v", err)
	}
	if got.ModifiedAt != nil {
		t.Fatalf("expected no write clock, got %v", got.ModifiedAt)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}

	answer := "A"
	bad := db.Simulation{ID: "bad", Questions: db.SimulationQuestions{{QuestionID: "q1", UserAnswer: &answer}}}
	if err := s.PutSimulation(ctx, bad); !errors.Is(err, db.ErrInconsistentAnswer) {
		t.Fatalf("expected ErrInconsistentAnswer, got %v", err)
	}
}

func TestSimulationNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Simulation(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSeenQuestionIDsFiltersUnknown(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Initialize(ctx, sampleQuestions()); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	if _, ok, err := s.SeenQuestionIDs(ctx); err != nil || ok {
		t.Fatalf("expected no seen set yet, ok=%v err=%v", ok, err)
	}

	if err := s.SetSeenQuestionIDs(ctx, []string{"q1", "ghost", "q1", "q3"}); err != nil {
		t.Fatalf("SetSeenQuestionIDs returned error: %v", err)
	}
	ids, ok, err := s.SeenQuestionIDs(ctx)
	if err != nil || !ok {
		t.Fatalf("SeenQuestionIDs ok=%v err=%v", ok, err)
	}
	if len(ids) != 2 || ids[0] != "q1" || ids[1] != "q3" {
		t.Fatalf("unexpected seen ids %v", ids)
	}

	if err := s.MarkSeen(ctx, []string{"q2"}); err != nil {
		t.Fatalf("MarkSeen returned error: %v", err)
	}
	ids, _, _ = s.SeenQuestionIDs(ctx)
	if len(ids) != 3 {
		t.Fatalf("expected 3 seen ids, got %v", ids)
	}

	if err := s.ClearSeen(ctx); err != nil {
		t.Fatalf("ClearSeen returned error: %v", err)
	}
	ids, ok, _ = s.SeenQuestionIDs(ctx)
	if !ok || len(ids) != 0 {
		t.Fatalf("expected empty seen set, got ok=%v ids=%v", ok, ids)
	}
}

func TestMigrateLegacyFlashcardProgress(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	blob := `{"q1":{"questionId":"q1","interval":6,"repetition":2,"efactor":2.36,"dueDate":1715342400000,"lastReviewed":1714824000000,"history":[{"date":1714824000000,"grade":4}]}}`
	if err := s.SetKV(ctx, KeyLegacyFlashcards, blob); err != nil {
		t.Fatalf("SetKV returned error: %v", err)
	}

	n, err := s.MigrateLegacyFlashcardProgress(ctx)
	if err != nil {
		t.Fatalf("MigrateLegacyFlashcardProgress returned error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 migrated record, got %d", n)
	}

	rec, err := s.FlashcardProgress(ctx, "q1")
	if err != nil {
		t.Fatalf("FlashcardProgress returned error: %v", err)
	}
	if rec.Interval != 6 || rec.Repetition != 2 || rec.EaseFactor != 2.36 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if !rec.DueAt.Equal(time.UnixMilli(1715342400000)) {
		t.Fatalf("DueAt = %v", rec.DueAt)
	}
	if len(rec.History) != 1 || rec.History[0].Grade != 4 {
		t.Fatalf("unexpected history %+v", rec.History)
	}
	if _, ok, _ := s.GetKV(ctx, KeyLegacyFlashcards); ok {
		t.Fatal("expected legacy blob to be removed")
	}
}

func TestMigrateLegacyFlashcardProgressMalformed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetKV(ctx, KeyLegacyFlashcards, `{"q1": [1,2,3]}`); err != nil {
		t.Fatalf("SetKV returned error: %v", err)
	}
	if _, err := s.MigrateLegacyFlashcardProgress(ctx); !errors.Is(err, ErrMalformedLocalData) {
		t.Fatalf("expected ErrMalformedLocalData, got %v", err)
	}
	if _, ok, _ := s.GetKV(ctx, KeyLegacyFlashcards); !ok {
		t.Fatal("expected legacy blob to stay in place")
	}
	records, err := s.AllFlashcardProgress(ctx)
	if err != nil {
		t.Fatalf("AllFlashcardProgress returned error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}

	// Initialize reports the problem but keeps going.
	if err := s.Initialize(ctx, sampleQuestions()); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
}

func TestMigrateLegacySkipsWhenTableHasRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.PutFlashcardProgress(ctx, db.FlashcardProgress{QuestionID: "q2", EaseFactor: 2.5, DueAt: testNow}); err != nil {
		t.Fatalf("PutFlashcardProgress returned error: %v", err)
	}
	if err := s.SetKV(ctx, KeyLegacyFlashcards, `{"q1":{"questionId":"q1","dueDate":0}}`); err != nil {
		t.Fatalf("SetKV returned error: %v", err)
	}
	n, err := s.MigrateLegacyFlashcardProgress(ctx)
	if err != nil || n != 0 {
		t.Fatalf("expected no migration, n=%d err=%v", n, err)
	}
	if _, err := s.FlashcardProgress(ctx, "q1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected q1 not migrated, got %v", err)
	}
}

func TestDueFlashcards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	records := []db.FlashcardProgress{
		{QuestionID: "late", EaseFactor: 2.5, DueAt: testNow.Add(24 * time.Hour)},
		{QuestionID: "due", EaseFactor: 2.5, DueAt: testNow.Add(-time.Hour)},
		{QuestionID: "older", EaseFactor: 2.5, DueAt: testNow.Add(-48 * time.Hour)},
	}
	for _, r := range records {
		if err := s.PutFlashcardProgress(ctx, r); err != nil {
			t.Fatalf("PutFlashcardProgress returned error: %v", err)
		}
	}

	due, err := s.DueFlashcards(ctx, testNow, 0)
	if err != nil {
		t.Fatalf("DueFlashcards returned error: %v", err)
	}
	if len(due) != 2 || due[0].QuestionID != "older" || due[1].QuestionID != "due" {
		t.Fatalf("unexpected due cards %+v", due)
	}

	limited, err := s.DueFlashcards(ctx, testNow, 1)
	if err != nil {
		t.Fatalf("DueFlashcards returned error: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 card, got %d", len(limited))
	}
}

func TestPutFlashcardProgressOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := db.FlashcardProgress{QuestionID: "q1", Interval: 6, Repetition: 2, EaseFactor: 2.6, DueAt: testNow}
	if err := s.PutFlashcardProgress(ctx, rec); err != nil {
		t.Fatalf("PutFlashcardProgress returned error: %v", err)
	}
	rec.Interval = 1
	rec.Repetition = 0
	rec.History = db.ReviewHistory{{At: testNow, Grade: 0}}
	if err := s.PutFlashcardProgress(ctx, rec); err != nil {
		t.Fatalf("PutFlashcardProgress returned error: %v", err)
	}
	got, err := s.FlashcardProgress(ctx, "q1")
	if err != nil {
		t.Fatalf("FlashcardProgress returned error: %v", err)
	}
	if got.Interval != 1 || got.Repetition != 0 || len(got.History) != 1 {
		t.Fatalf("expected overwritten record, got %+v", got)
	}
}
