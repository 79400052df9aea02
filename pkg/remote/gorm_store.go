package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the remote side of the sync protocol. Rows are scoped by user.
type Store interface {
	Fetch(ctx context.Context, c Collection, userID string) ([]Row, error)
	Upsert(ctx context.Context, c Collection, rows []Row) error
}

// GormStore keeps remote rows in a SQL database, Postgres in production.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormStore(gdb *gorm.DB) *GormStore {
	return &GormStore{db: gdb, now: func() time.Time { return time.Now().UTC() }}
}

func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(Models()...)
}

type rowModel interface {
	Row() Row
}

func (s *GormStore) Fetch(ctx context.Context, c Collection, userID string) ([]Row, error) {
	switch c {
	case Simulations:
		return fetch[SimulationRow](ctx, s.db, userID)
	case UserProgress:
		return fetch[UserProgressRow](ctx, s.db, userID)
	case SeenQuestions:
		return fetch[SeenQuestionsRow](ctx, s.db, userID)
	case FlashcardProgress:
		return fetch[FlashcardProgressRow](ctx, s.db, userID)
	case CustomFlashcards:
		return fetch[CustomFlashcardRow](ctx, s.db, userID)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, c)
}

func fetch[T rowModel](ctx context.Context, gdb *gorm.DB, userID string) ([]Row, error) {
	var models []T
	if err := gdb.WithContext(ctx).Where("user_id = ?", userID).Order("updated_at").Find(&models).Error; err != nil {
		return nil, err
	}
	return lo.Map(models, func(m T, _ int) Row { return m.Row() }), nil
}

// Upsert writes rows keyed by the collection's conflict columns. Rows
// without an UpdatedAt are stamped with the current time. Every key
// includes the user id, so one user's rows never overwrite another's.
func (s *GormStore) Upsert(ctx context.Context, c Collection, rows []Row) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, c)
	}
	if len(rows) == 0 {
		return nil
	}
	rows = append([]Row(nil), rows...)
	now := s.now()
	for i := range rows {
		if err := rows[i].Validate(c); err != nil {
			return err
		}
		if rows[i].UpdatedAt.IsZero() {
			rows[i].UpdatedAt = now
		}
	}

	// Rows repeating a key within one batch would make the statement touch
	// the same record twice; the last one wins.
	rows = lastPerKey(c, rows)

	var models any
	switch c {
	case Simulations:
		models = lo.ToPtr(lo.Map(rows, func(r Row, _ int) SimulationRow {
			return SimulationRow{ID: r.ID, UserID: r.UserID, Data: r.Data, UpdatedAt: r.UpdatedAt}
		}))
	case UserProgress:
		models = lo.ToPtr(lo.Map(rows, func(r Row, _ int) UserProgressRow {
			return UserProgressRow{UserID: r.UserID, Data: r.Data, UpdatedAt: r.UpdatedAt}
		}))
	case SeenQuestions:
		models = lo.ToPtr(lo.Map(rows, func(r Row, _ int) SeenQuestionsRow {
			return SeenQuestionsRow{UserID: r.UserID, Data: r.Data, UpdatedAt: r.UpdatedAt}
		}))
	case FlashcardProgress:
		models = lo.ToPtr(lo.Map(rows, func(r Row, _ int) FlashcardProgressRow {
			return FlashcardProgressRow{UserID: r.UserID, QuestionID: r.QuestionID, Data: r.Data, UpdatedAt: r.UpdatedAt}
		}))
	case CustomFlashcards:
		models = lo.ToPtr(lo.Map(rows, func(r Row, _ int) CustomFlashcardRow {
			return CustomFlashcardRow{ID: r.ID, UserID: r.UserID, Data: r.Data, UpdatedAt: r.UpdatedAt}
		}))
	}

	onConflict := clause.OnConflict{
		Columns:   conflictColumns(c),
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}
	return s.db.WithContext(ctx).Clauses(onConflict).Create(models).Error
}

func conflictColumns(c Collection) []clause.Column {
	return lo.Map(c.ConflictKeys(), func(name string, _ int) clause.Column {
		return clause.Column{Name: name}
	})
}

func lastPerKey(c Collection, rows []Row) []Row {
	key := func(r Row) string {
		switch c {
		case Simulations, CustomFlashcards:
			return r.UserID + "\x00" + r.ID
		case FlashcardProgress:
			return r.UserID + "\x00" + r.QuestionID
		default:
			return r.UserID
		}
	}
	index := make(map[string]int, len(rows))
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		k := key(r)
		if i, ok := index[k]; ok {
			out[i] = r
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	return out
}
