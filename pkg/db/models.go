// pkg/db/models.go
package db

import (
	"errors"
	"fmt"
	"time"
)

const (
	UserProgressID = "main"
	DefaultEase    = 2.5
)

var ErrInconsistentAnswer = errors.New("answer and correctness must be set together")

type Question struct {
	ID            string       `gorm:"primaryKey" json:"id"`
	Theme         string       `gorm:"index;not null" json:"theme"`
	Subtheme      string       `json:"subtheme,omitempty"`
	Difficulty    int          `gorm:"index;not null;default:1" json:"difficulty"`
	Tier          int          `gorm:"not null;default:0" json:"tier,omitempty"`
	Statement     string       `gorm:"not null" json:"statement"`
	Options       Options      `gorm:"type:text" json:"options"`
	CorrectAnswer string       `gorm:"not null" json:"correctAnswer"`
	Explanation   Explanation  `gorm:"type:text;serializer:json" json:"explanation"`
	ItemAnalysis  ItemAnalysis `gorm:"type:text" json:"itemAnalysis,omitempty"`
	Tags          StringList   `gorm:"type:text" json:"tags"`
	Source        string       `json:"source,omitempty"`
}

type Simulation struct {
	ID            string              `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time           `gorm:"index;not null" json:"createdAt"`
	CompletedAt   *time.Time          `json:"completedAt,omitempty"`
	QuestionCount int                 `gorm:"not null;default:0" json:"questionCount"`
	FocusTheme    string              `json:"focusTheme,omitempty"`
	IsTimedExam   bool                `gorm:"not null;default:false" json:"isTimedExam,omitempty"`
	Questions     SimulationQuestions `gorm:"type:text" json:"questions"`
	Stats         SimulationStats     `gorm:"type:text;serializer:json" json:"stats"`
	// ModifiedAt is stamped on every local write and compared during sync.
	ModifiedAt *time.Time `json:"modifiedAt,omitempty"`
}

type SimulationQuestion struct {
	QuestionID       string     `json:"questionId"`
	UserAnswer       *string    `json:"userAnswer,omitempty"`
	IsCorrect        *bool      `json:"isCorrect,omitempty"`
	TimeSpentSeconds *int       `json:"timeSpentSeconds,omitempty"`
	AnsweredAt       *time.Time `json:"answeredAt,omitempty"`
}

func (q SimulationQuestion) Answered() bool {
	return q.UserAnswer != nil
}

func (q SimulationQuestion) Validate() error {
	if (q.UserAnswer == nil) != (q.IsCorrect == nil) {
		return fmt.Errorf("question %s: %w", q.QuestionID, ErrInconsistentAnswer)
	}
	return nil
}

func (s Simulation) Validate() error {
	for _, q := range s.Questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("simulation %s: %w", s.ID, err)
		}
	}
	return nil
}

func (s Simulation) Completed() bool {
	return s.CompletedAt != nil
}

// AnsweredCount is the number of questions carrying a chosen answer.
func (s Simulation) AnsweredCount() int {
	n := 0
	for _, q := range s.Questions {
		if q.Answered() {
			n++
		}
	}
	return n
}

type ThemeScore struct {
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

type SimulationStats struct {
	TotalQuestions     int                   `json:"totalQuestions"`
	Answered           int                   `json:"answered"`
	Correct            int                   `json:"correct"`
	Incorrect          int                   `json:"incorrect"`
	Accuracy           float64               `json:"accuracy"`
	AvgTimePerQuestion float64               `json:"avgTimePerQuestion"`
	ByTheme            map[string]ThemeScore `json:"byTheme"`
}

type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

type SubthemeStats struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
	Errors  int `json:"errors"`
}

type ThemeProgress struct {
	TotalAttempts  int                      `json:"totalAttempts"`
	CorrectAnswers int                      `json:"correctAnswers"`
	Accuracy       float64                  `json:"accuracy"`
	Trend          Trend                    `json:"trend"`
	RecentAccuracy float64                  `json:"recentAccuracy"`
	Subthemes      map[string]SubthemeStats `json:"subthemeStats,omitempty"`
}

type TrendAnalysis struct {
	OverallTrend    Trend    `json:"overallTrend"`
	StrongThemes    []string `json:"strongThemes"`
	WeakThemes      []string `json:"weakThemes"`
	Recommendations []string `json:"recommendations"`
}

type UserProgress struct {
	ID                     string        `gorm:"primaryKey" json:"id"`
	TotalSimulations       int           `gorm:"not null;default:0" json:"totalSimulations"`
	TotalQuestionsAnswered int           `gorm:"not null;default:0" json:"totalQuestionsAnswered"`
	OverallAccuracy        float64       `gorm:"not null;default:0" json:"overallAccuracy"`
	ByTheme                ThemeRollup   `gorm:"type:text" json:"byTheme"`
	Trends                 TrendAnalysis `gorm:"type:text;serializer:json" json:"trends"`
	Streak                 int           `gorm:"not null;default:0" json:"streak"`
	LastActivityDate       *time.Time    `json:"lastActivityDate,omitempty"`
	LastUpdated            time.Time     `json:"lastUpdated"`
}

func (UserProgress) TableName() string {
	return "user_progress"
}

// HasHistory reports whether any theme has been attempted.
func (p *UserProgress) HasHistory() bool {
	return p != nil && len(p.ByTheme) > 0
}

type ReviewEvent struct {
	At    time.Time `json:"at"`
	Grade int       `json:"grade"`
}

type FlashcardProgress struct {
	QuestionID     string        `gorm:"primaryKey" json:"questionId"`
	Interval       int           `gorm:"not null;default:0" json:"interval"`
	Repetition     int           `gorm:"not null;default:0" json:"repetition"`
	EaseFactor     float64       `gorm:"not null;default:2.5" json:"easeFactor"`
	DueAt          time.Time     `gorm:"index;not null" json:"dueAt"`
	LastReviewedAt *time.Time    `json:"lastReviewedAt,omitempty"`
	History        ReviewHistory `gorm:"type:text" json:"history"`
}

func (FlashcardProgress) TableName() string {
	return "flashcard_progress"
}

type CustomFlashcard struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Theme     string    `gorm:"index;not null" json:"theme"`
	Subtheme  string    `json:"subtheme,omitempty"`
	Front     string    `gorm:"not null" json:"front"`
	Back      string    `gorm:"not null" json:"back"`
	CreatedAt time.Time `json:"createdAt"`
	UserID    string    `json:"userId,omitempty"`
}

// KVEntry holds small values that live outside the main tables.
type KVEntry struct {
	Key       string `gorm:"primaryKey;column:kv_key"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (KVEntry) TableName() string {
	return "kv_entries"
}

// Models lists every local table in migration order.
func Models() []any {
	return []any{
		&Question{},
		&Simulation{},
		&UserProgress{},
		&FlashcardProgress{},
		&CustomFlashcard{},
		&KVEntry{},
	}
}
