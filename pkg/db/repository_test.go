package db

import (
	"path/filepath"
	"testing"
	"time"
)

func TestOpenLocalMigratesTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "local.db")
	gdb, err := OpenLocal(path)
	if err != nil {
		t.Fatalf("OpenLocal returned error: %v", err)
	}
	t.Cleanup(func() {
		if err := Close(gdb); err != nil {
			t.Fatalf("failed to close database: %v", err)
		}
	})

	for _, model := range Models() {
		if !gdb.Migrator().HasTable(model) {
			t.Fatalf("expected table for %T", model)
		}
	}
}

func TestOpenLocalRejectsEmptyPath(t *testing.T) {
	if _, err := OpenLocal("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestJSONColumnsRoundTrip(t *testing.T) {
	gdb, err := OpenLocal(filepath.Join(t.TempDir(), "local.db"))
	if err != nil {
		t.Fatalf("OpenLocal returned error: %v", err)
	}
	t.Cleanup(func() { _ = Close(gdb) })

	answer := "B"
	correct := false
	answeredAt := time.Date(2024, 3, 2, 10, 30, 0, 123000000, time.UTC)
	sim := Simulation{
		ID:            "sim-1",
		CreatedAt:     answeredAt.Add(-time.Hour),
		QuestionCount: 2,
		Questions: SimulationQuestions{
			{QuestionID: "q1", UserAnswer: &answer, IsCorrect: &correct, AnsweredAt: &answeredAt},
			{QuestionID: "q2"},
		},
		Stats: SimulationStats{
			TotalQuestions: 2,
			Answered:       1,
			Incorrect:      1,
			ByTheme:        map[string]ThemeScore{"humor": {Total: 1}},
		},
	}
	if err := gdb.Create(&sim).Error; err != nil {
		t.Fatalf("failed to create simulation: %v", err)
	}

	var got Simulation
	if err := gdb.First(&got, "id = ?", "sim-1").Error; err != nil {
		t.Fatalf("failed to load simulation: %v", err)
	}
	if len(got.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(got.Questions))
	}
	if got.Questions[0].UserAnswer == nil || *got.Questions[0].UserAnswer != "B" {
		t.Fatalf("unexpected answer %+v", got.Questions[0])
	}
	if !got.Questions[0].AnsweredAt.Equal(answeredAt) {
		t.Fatalf("answeredAt = %v, want %v", got.Questions[0].AnsweredAt, answeredAt)
	}
	if got.Stats.ByTheme["humor"].Total != 1 {
		t.Fatalf("unexpected stats %+v", got.Stats)
	}
	if got.AnsweredCount() != 1 {
		t.Fatalf("AnsweredCount() = %d, want 1", got.AnsweredCount())
	}
}

func TestSimulationValidate(t *testing.T) {
	answer := "A"
	cases := []struct {
		name    string
		q       SimulationQuestion
		wantErr bool
	}{
		{name: "unanswered", q: SimulationQuestion{QuestionID: "q"}},
		{name: "answered", q: SimulationQuestion{QuestionID: "q", UserAnswer: &answer, IsCorrect: new(bool)}},
		{name: "answer without correctness", q: SimulationQuestion{QuestionID: "q", UserAnswer: &answer}, wantErr: true},
		{name: "correctness without answer", q: SimulationQuestion{QuestionID: "q", IsCorrect: new(bool)}, wantErr: true},
	}
	for _, tc := range cases {
		err := Simulation{ID: "s", Questions: SimulationQuestions{tc.q}}.Validate()
		if (err != nil) != tc.wantErr {
			t.Fatalf("%s: Validate() error = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
	}
}
