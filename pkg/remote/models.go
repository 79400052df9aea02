// Package remote holds the shared backend of the sync protocol: the wire
// rows, a gorm-backed store, the HTTP server exposing it and the client
// devices use to reach it.
package remote

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type Collection string

const (
	Simulations       Collection = "simulations"
	UserProgress      Collection = "user_progress"
	SeenQuestions     Collection = "seen_questions"
	FlashcardProgress Collection = "flashcard_progress"
	CustomFlashcards  Collection = "custom_flashcards"
)

// Collections lists every synced collection.
func Collections() []Collection {
	return []Collection{Simulations, UserProgress, SeenQuestions, FlashcardProgress, CustomFlashcards}
}

func ParseCollection(name string) (Collection, error) {
	c := Collection(name)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	return c, nil
}

func (c Collection) Valid() bool {
	switch c {
	case Simulations, UserProgress, SeenQuestions, FlashcardProgress, CustomFlashcards:
		return true
	}
	return false
}

// ConflictKeys are the columns an upsert into c is keyed on.
func (c Collection) ConflictKeys() []string {
	switch c {
	case Simulations, CustomFlashcards:
		return []string{"user_id", "id"}
	case UserProgress, SeenQuestions:
		return []string{"user_id"}
	case FlashcardProgress:
		return []string{"user_id", "question_id"}
	}
	return nil
}

// Row is the wire shape of every remote record. Data is opaque to the
// remote side.
type Row struct {
	ID         string         `json:"id,omitempty"`
	UserID     string         `json:"user_id"`
	QuestionID string         `json:"question_id,omitempty"`
	Data       datatypes.JSON `json:"data"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Validate checks that r carries the key columns c needs.
func (r Row) Validate(c Collection) error {
	if r.UserID == "" {
		return fmt.Errorf("%w: missing user_id", ErrInvalidRow)
	}
	switch c {
	case Simulations, CustomFlashcards:
		if r.ID == "" {
			return fmt.Errorf("%w: %s row without id", ErrInvalidRow, c)
		}
	case FlashcardProgress:
		if r.QuestionID == "" {
			return fmt.Errorf("%w: %s row without question_id", ErrInvalidRow, c)
		}
	}
	if len(r.Data) == 0 {
		return fmt.Errorf("%w: empty data", ErrInvalidRow)
	}
	return nil
}

// Table models. Names match the collections. Record ids are scoped by user,
// so the same id may exist once per user.

type SimulationRow struct {
	UserID    string         `gorm:"primaryKey"`
	ID        string         `gorm:"primaryKey"`
	Data      datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}

func (SimulationRow) TableName() string { return string(Simulations) }

func (r SimulationRow) Row() Row {
	return Row{ID: r.ID, UserID: r.UserID, Data: r.Data, UpdatedAt: r.UpdatedAt}
}

type UserProgressRow struct {
	UserID    string         `gorm:"primaryKey"`
	Data      datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}

func (UserProgressRow) TableName() string { return string(UserProgress) }

func (r UserProgressRow) Row() Row {
	return Row{UserID: r.UserID, Data: r.Data, UpdatedAt: r.UpdatedAt}
}

type SeenQuestionsRow struct {
	UserID    string         `gorm:"primaryKey"`
	Data      datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}

func (SeenQuestionsRow) TableName() string { return string(SeenQuestions) }

func (r SeenQuestionsRow) Row() Row {
	return Row{UserID: r.UserID, Data: r.Data, UpdatedAt: r.UpdatedAt}
}

type FlashcardProgressRow struct {
	UserID     string         `gorm:"primaryKey"`
	QuestionID string         `gorm:"primaryKey"`
	Data       datatypes.JSON `gorm:"not null"`
	UpdatedAt  time.Time
}

func (FlashcardProgressRow) TableName() string { return string(FlashcardProgress) }

func (r FlashcardProgressRow) Row() Row {
	return Row{UserID: r.UserID, QuestionID: r.QuestionID, Data: r.Data, UpdatedAt: r.UpdatedAt}
}

type CustomFlashcardRow struct {
	UserID    string         `gorm:"primaryKey"`
	ID        string         `gorm:"primaryKey"`
	Data      datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}

func (CustomFlashcardRow) TableName() string { return string(CustomFlashcards) }

func (r CustomFlashcardRow) Row() Row {
	return Row{ID: r.ID, UserID: r.UserID, Data: r.Data, UpdatedAt: r.UpdatedAt}
}

// Models lists the remote tables for migration.
func Models() []any {
	return []any{
		&SimulationRow{},
		&UserProgressRow{},
		&SeenQuestionsRow{},
		&FlashcardProgressRow{},
		&CustomFlashcardRow{},
	}
}
