package syncer

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/smith3v/quizsync/pkg/db"
)

func TestEnvelopeRoundTripKeepsTimestamps(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 123456789, time.UTC)
	completed := created.Add(42*time.Minute + 7*time.Nanosecond)
	answered := created.Add(time.Minute)
	answer := "C"
	correct := true
	sim := db.Simulation{
		ID:          "sim-1",
		CreatedAt:   created,
		CompletedAt: &completed,
		ModifiedAt:  &completed,
		Questions: db.SimulationQuestions{
			{QuestionID: "q1", UserAnswer: &answer, IsCorrect: &correct, AnsweredAt: &answered},
		},
	}

	raw, err := Encode(KindSimulation, sim)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("envelope is not JSON: %v", err)
	}
	if env.Kind != KindSimulation || env.Version != EnvelopeVersion {
		t.Fatalf("unexpected envelope header %+v", env)
	}

	var got db.Simulation
	if err := Decode(raw, KindSimulation, &got); err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(completed) {
		t.Fatalf("CompletedAt = %v, want %v", got.CompletedAt, completed)
	}
	if got.ModifiedAt == nil || !got.ModifiedAt.Equal(completed) {
		t.Fatalf("ModifiedAt = %v, want %v", got.ModifiedAt, completed)
	}
	if got.Questions[0].AnsweredAt == nil || !got.Questions[0].AnsweredAt.Equal(answered) {
		t.Fatalf("AnsweredAt = %v, want %v", got.Questions[0].AnsweredAt, answered)
	}
}

func TestDecodeRejectsWrongEnvelopes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want error
	}{
		{name: "kind mismatch", raw: `{"kind":"custom_flashcard","version":1,"data":{}}`, want: ErrKindMismatch},
		{name: "future version", raw: `{"kind":"simulation","version":9,"data":{}}`, want: ErrUnsupportedVersion},
	}
	for _, tc := range cases {
		var sim db.Simulation
		if err := Decode([]byte(tc.raw), KindSimulation, &sim); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	var sim db.Simulation
	if err := Decode([]byte("  "), KindSimulation, &sim); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestDecodeLegacySimulation(t *testing.T) {
	raw := `{
		"id": "legacy-1",
		"createdAt": "2024-11-05T10:00:00.000Z",
		"completedAt": "2024-11-05T10:30:00.250Z",
		"questionCount": 1,
		"questions": [{"questionId": "q1", "userAnswer": "B", "isCorrect": false, "answeredAt": "2024-11-05T10:05:00.000Z"}],
		"stats": {"answered": 1, "incorrect": 1, "totalQuestions": 1}
	}`
	var sim db.Simulation
	if err := Decode([]byte(raw), KindSimulation, &sim); err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	want := time.Date(2024, 11, 5, 10, 30, 0, 250_000_000, time.UTC)
	if sim.CompletedAt == nil || !sim.CompletedAt.Equal(want) {
		t.Fatalf("CompletedAt = %v, want %v", sim.CompletedAt, want)
	}
	if !sim.CreatedAt.Equal(time.Date(2024, 11, 5, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("CreatedAt = %v", sim.CreatedAt)
	}
	if sim.AnsweredCount() != 1 || sim.Stats.Answered != 1 {
		t.Fatalf("unexpected answers %+v", sim)
	}
}

func TestDecodeLegacyFlashcardProgress(t *testing.T) {
	raw := `{"questionId":"q1","interval":6,"repetition":2,"easeFactor":2.6,` +
		`"dueDate":1735689600000,"lastReviewed":1735603200000,"history":[{"date":1735603200000,"grade":4}]}`
	var rec db.FlashcardProgress
	if err := Decode([]byte(raw), KindFlashcardProgress, &rec); err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	due := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	reviewed := due.Add(-24 * time.Hour)
	if !rec.DueAt.Equal(due) {
		t.Fatalf("DueAt = %v, want %v", rec.DueAt, due)
	}
	if rec.LastReviewedAt == nil || !rec.LastReviewedAt.Equal(reviewed) {
		t.Fatalf("LastReviewedAt = %v, want %v", rec.LastReviewedAt, reviewed)
	}
	if len(rec.History) != 1 || !rec.History[0].At.Equal(reviewed) || rec.History[0].Grade != 4 {
		t.Fatalf("unexpected history %+v", rec.History)
	}
	if rec.Interval != 6 || rec.Repetition != 2 || rec.EaseFactor != 2.6 {
		t.Fatalf("unexpected schedule %+v", rec)
	}
}

func TestDecodeLegacySeenQuestions(t *testing.T) {
	var ids []string
	if err := Decode([]byte(`["q1","q2"]`), KindSeenQuestions, &ids); err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "q1" || ids[1] != "q2" {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestDecodeLegacyRejectsBadDates(t *testing.T) {
	var sim db.Simulation
	if err := Decode([]byte(`{"id":"x","createdAt":"yesterday"}`), KindSimulation, &sim); err == nil {
		t.Fatal("expected error for unparsable legacy date")
	}
}
