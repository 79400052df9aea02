// Package srs implements the SM-2 style spaced repetition scheduler.
package srs

import (
	"errors"
	"fmt"
	"math"
	"time"
)

type Grade int

const (
	GradeFail Grade = 0
	GradeHard Grade = 3
	GradeGood Grade = 4
	GradeEasy Grade = 5
)

const (
	EaseFloor    = 1.3
	InitialEase  = 2.5
	passingGrade = GradeHard
)

var ErrInvalidGrade = errors.New("invalid review grade")

type Item struct {
	Interval   int
	Repetition int
	EFactor    float64
}

var InitialItem = Item{Interval: 0, Repetition: 0, EFactor: InitialEase}

func ParseGrade(value int) (Grade, error) {
	g := Grade(value)
	if !g.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidGrade, value)
	}
	return g, nil
}

func (g Grade) Valid() bool {
	switch g {
	case GradeFail, GradeHard, GradeGood, GradeEasy:
		return true
	default:
		return false
	}
}

func (g Grade) Passed() bool {
	return g >= passingGrade
}

// Review returns the item state after answering with grade.
func Review(item Item, grade Grade) Item {
	next := item
	if grade.Passed() {
		switch item.Repetition {
		case 0:
			next.Interval = 1
		case 1:
			next.Interval = 6
		default:
			next.Interval = int(math.Round(float64(item.Interval) * item.EFactor))
		}
		next.Repetition = item.Repetition + 1
	} else {
		next.Repetition = 0
		next.Interval = 1
	}

	q := float64(5 - grade)
	next.EFactor = maxEase(item.EFactor + (0.1 - q*(0.08+q*0.02)))
	return next
}

// NextReviewDate is now plus the interval in whole calendar days.
func NextReviewDate(now time.Time, intervalDays int) time.Time {
	return now.AddDate(0, 0, intervalDays)
}

func maxEase(ease float64) float64 {
	if ease < EaseFloor {
		return EaseFloor
	}
	return ease
}
