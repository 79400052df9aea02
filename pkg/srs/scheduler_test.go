package srs

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestReviewPassingIntervals(t *testing.T) {
	for _, grade := range []Grade{GradeHard, GradeGood, GradeEasy} {
		item := InitialItem
		item = Review(item, grade)
		if item.Interval != 1 || item.Repetition != 1 {
			t.Fatalf("grade %d: first pass = %+v, want interval 1", grade, item)
		}
		item = Review(item, grade)
		if item.Interval != 6 || item.Repetition != 2 {
			t.Fatalf("grade %d: second pass = %+v, want interval 6", grade, item)
		}
		prev := item.Interval
		for i := 0; i < 5; i++ {
			item = Review(item, grade)
			if item.Interval < prev {
				t.Fatalf("grade %d: interval shrank from %d to %d", grade, prev, item.Interval)
			}
			want := int(math.Round(float64(prev) * item.EFactor))
			if grade == GradeGood && item.Interval != want {
				t.Fatalf("grade %d: interval %d, want %d", grade, item.Interval, want)
			}
			prev = item.Interval
		}
	}
}

func TestReviewGoodSequence(t *testing.T) {
	item := InitialItem
	want := []int{1, 6, 15, 38}
	for i, w := range want {
		item = Review(item, GradeGood)
		if item.Interval != w {
			t.Fatalf("review %d: interval %d, want %d", i+1, item.Interval, w)
		}
		if item.EFactor != InitialEase {
			t.Fatalf("review %d: grade 4 should keep ease, got %v", i+1, item.EFactor)
		}
	}
}

func TestReviewFailResets(t *testing.T) {
	got := Review(InitialItem, GradeFail)
	if got.Interval != 1 || got.Repetition != 0 {
		t.Fatalf("Review(initial, 0) = %+v", got)
	}
	if math.Abs(got.EFactor-1.7) > 1e-9 {
		t.Fatalf("expected ease 1.7, got %v", got.EFactor)
	}

	got = Review(Item{Interval: 6, Repetition: 3, EFactor: 2.5}, GradeFail)
	if got.Interval != 1 || got.Repetition != 0 {
		t.Fatalf("Review(mature, 0) = %+v", got)
	}
}

func TestReviewEaseFloor(t *testing.T) {
	item := InitialItem
	for i := 0; i < 20; i++ {
		item = Review(item, GradeFail)
		if item.EFactor < EaseFloor {
			t.Fatalf("ease dropped below floor: %v", item.EFactor)
		}
	}
	if item.EFactor != EaseFloor {
		t.Fatalf("expected ease to settle at floor, got %v", item.EFactor)
	}

	item = Item{Interval: 10, Repetition: 4, EFactor: 1.35}
	item = Review(item, GradeHard)
	if item.EFactor != EaseFloor {
		t.Fatalf("expected pass with hard grade to floor ease, got %v", item.EFactor)
	}
}

func TestParseGrade(t *testing.T) {
	for _, v := range []int{0, 3, 4, 5} {
		if _, err := ParseGrade(v); err != nil {
			t.Fatalf("ParseGrade(%d) returned error: %v", v, err)
		}
	}
	for _, v := range []int{-1, 1, 2, 6} {
		if _, err := ParseGrade(v); !errors.Is(err, ErrInvalidGrade) {
			t.Fatalf("ParseGrade(%d) error = %v, want ErrInvalidGrade", v, err)
		}
	}
}

func TestNextReviewDate(t *testing.T) {
	now := time.Now()
	got := NextReviewDate(now, 7)
	want := now.Add(7 * 24 * time.Hour)
	diff := got.Sub(want)
	// Daylight saving shifts can move a calendar week by an hour.
	if diff < -time.Hour-time.Second || diff > time.Hour+time.Second {
		t.Fatalf("NextReviewDate(7) = %v, want about %v", got, want)
	}

	fixed := time.Date(2025, 1, 30, 9, 0, 0, 0, time.UTC)
	if got := NextReviewDate(fixed, 1); !got.Equal(time.Date(2025, 1, 31, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("NextReviewDate(fixed, 1) = %v", got)
	}
}
