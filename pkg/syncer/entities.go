package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/smith3v/quizsync/pkg/db"
	"github.com/smith3v/quizsync/pkg/logger"
	"github.com/smith3v/quizsync/pkg/progress"
	"github.com/smith3v/quizsync/pkg/remote"
	"github.com/smith3v/quizsync/pkg/store"
)

// SyncSimulations adopts simulations missing locally, resolves simulations
// present on both sides with MergeSimulation, then pushes every local one.
func (e *Engine) SyncSimulations(ctx context.Context, userID string) error {
	rows, err := e.remote.Fetch(ctx, remote.Simulations, userID)
	if err != nil {
		return err
	}
	local, err := e.store.Simulations(ctx)
	if err != nil {
		return err
	}
	byID := lo.Associate(local, func(sim db.Simulation) (string, db.Simulation) { return sim.ID, sim })

	adopted := 0
	for _, row := range rows {
		var incoming db.Simulation
		if err := Decode(row.Data, KindSimulation, &incoming); err != nil {
			logger.Warn("skipping undecodable remote simulation", "id", row.ID, "error", err)
			continue
		}
		if incoming.ID == "" {
			incoming.ID = row.ID
		}
		if current, ok := byID[incoming.ID]; ok {
			if _, takeRemote := MergeSimulation(current, incoming); !takeRemote {
				continue
			}
		}
		if err := e.recomputeStats(ctx, &incoming); err != nil {
			return err
		}
		if err := e.store.PutSimulation(ctx, incoming); err != nil {
			logger.Warn("skipping invalid remote simulation", "id", incoming.ID, "error", err)
			continue
		}
		adopted++
	}
	if adopted > 0 {
		logger.Info("adopted remote simulations", "count", adopted)
	}
	return e.pushSimulations(ctx, userID)
}

// recomputeStats rebuilds the stats block of an adopted simulation from its
// question list instead of trusting the remote copy.
func (e *Engine) recomputeStats(ctx context.Context, sim *db.Simulation) error {
	themes := make(map[string]string, len(sim.Questions))
	for _, q := range sim.Questions {
		if _, ok := themes[q.QuestionID]; ok {
			continue
		}
		question, err := e.store.Question(ctx, q.QuestionID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		themes[q.QuestionID] = question.Theme
	}
	sim.Stats = progress.ComputeSimulationStats(sim.Questions, func(id string) (string, bool) {
		theme, ok := themes[id]
		return theme, ok
	})
	return nil
}

func (e *Engine) pushSimulations(ctx context.Context, userID string) error {
	sims, err := e.store.Simulations(ctx)
	if err != nil {
		return err
	}
	now := e.now()
	rows := make([]remote.Row, 0, len(sims))
	for _, sim := range sims {
		data, err := Encode(KindSimulation, sim)
		if err != nil {
			return err
		}
		rows = append(rows, remote.Row{ID: sim.ID, UserID: userID, Data: data, UpdatedAt: now})
	}
	return e.remote.Upsert(ctx, remote.Simulations, rows)
}

// SyncUserProgress adopts the remote record only when there is no local
// one; otherwise local overwrites remote.
func (e *Engine) SyncUserProgress(ctx context.Context, userID string) error {
	rows, err := e.remote.Fetch(ctx, remote.UserProgress, userID)
	if err != nil {
		return err
	}
	local, err := e.store.Progress(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if !hasProgress(local) && len(rows) > 0 {
		var incoming db.UserProgress
		if err := Decode(rows[0].Data, KindUserProgress, &incoming); err != nil {
			return fmt.Errorf("decode remote progress: %w", err)
		}
		if err := e.store.PutProgress(ctx, incoming); err != nil {
			return err
		}
		logger.Info("adopted remote progress", "user_id", userID)
		return nil
	}
	return e.pushUserProgress(ctx, userID)
}

// hasProgress treats the placeholder written at first start as no record.
func hasProgress(p *db.UserProgress) bool {
	return p != nil && (p.TotalSimulations > 0 || p.HasHistory())
}

func (e *Engine) pushUserProgress(ctx context.Context, userID string) error {
	local, err := e.store.Progress(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	data, err := Encode(KindUserProgress, local)
	if err != nil {
		return err
	}
	return e.remote.Upsert(ctx, remote.UserProgress, []remote.Row{{UserID: userID, Data: data, UpdatedAt: e.now()}})
}

// SyncSeenQuestions adopts the remote seen set only when none was ever
// written locally; otherwise local overwrites remote.
func (e *Engine) SyncSeenQuestions(ctx context.Context, userID string) error {
	rows, err := e.remote.Fetch(ctx, remote.SeenQuestions, userID)
	if err != nil {
		return err
	}
	_, exists, err := e.store.SeenQuestionIDs(ctx)
	if err != nil && !errors.Is(err, store.ErrMalformedLocalData) {
		return err
	}

	if !exists && len(rows) > 0 {
		var ids []string
		if err := Decode(rows[0].Data, KindSeenQuestions, &ids); err != nil {
			return fmt.Errorf("decode remote seen questions: %w", err)
		}
		if err := e.store.SetSeenQuestionIDs(ctx, ids); err != nil {
			return err
		}
		logger.Info("adopted remote seen questions", "count", len(ids))
		return nil
	}
	return e.pushSeenQuestions(ctx, userID)
}

func (e *Engine) pushSeenQuestions(ctx context.Context, userID string) error {
	ids, exists, err := e.store.SeenQuestionIDs(ctx)
	if errors.Is(err, store.ErrMalformedLocalData) {
		logger.Warn("not pushing unreadable seen ledger", "error", err)
		return nil
	}
	if err != nil || !exists {
		return err
	}
	if ids == nil {
		ids = []string{}
	}
	data, err := Encode(KindSeenQuestions, ids)
	if err != nil {
		return err
	}
	return e.remote.Upsert(ctx, remote.SeenQuestions, []remote.Row{{UserID: userID, Data: data, UpdatedAt: e.now()}})
}

// SyncFlashcardProgress adopts remote records for cards never reviewed on
// this device, then pushes every local record.
func (e *Engine) SyncFlashcardProgress(ctx context.Context, userID string) error {
	rows, err := e.remote.Fetch(ctx, remote.FlashcardProgress, userID)
	if err != nil {
		return err
	}
	local, err := e.store.AllFlashcardProgress(ctx)
	if err != nil {
		return err
	}
	known := lo.Associate(local, func(p db.FlashcardProgress) (string, bool) { return p.QuestionID, true })

	adopted := 0
	for _, row := range rows {
		if known[row.QuestionID] {
			continue
		}
		var incoming db.FlashcardProgress
		if err := Decode(row.Data, KindFlashcardProgress, &incoming); err != nil {
			logger.Warn("skipping undecodable remote flashcard progress", "question_id", row.QuestionID, "error", err)
			continue
		}
		if incoming.QuestionID == "" {
			incoming.QuestionID = row.QuestionID
		}
		if known[incoming.QuestionID] {
			continue
		}
		if incoming.EaseFactor == 0 {
			incoming.EaseFactor = db.DefaultEase
		}
		if err := e.store.PutFlashcardProgress(ctx, incoming); err != nil {
			return err
		}
		known[incoming.QuestionID] = true
		adopted++
	}
	if adopted > 0 {
		logger.Info("adopted remote flashcard progress", "count", adopted)
	}
	return e.pushFlashcardProgress(ctx, userID)
}

func (e *Engine) pushFlashcardProgress(ctx context.Context, userID string) error {
	records, err := e.store.AllFlashcardProgress(ctx)
	if err != nil {
		return err
	}
	now := e.now()
	rows := make([]remote.Row, 0, len(records))
	for _, rec := range records {
		data, err := Encode(KindFlashcardProgress, rec)
		if err != nil {
			return err
		}
		rows = append(rows, remote.Row{UserID: userID, QuestionID: rec.QuestionID, Data: data, UpdatedAt: now})
	}
	return e.remote.Upsert(ctx, remote.FlashcardProgress, rows)
}

// SyncCustomFlashcards adopts remote cards missing locally, then pushes
// every local card.
func (e *Engine) SyncCustomFlashcards(ctx context.Context, userID string) error {
	rows, err := e.remote.Fetch(ctx, remote.CustomFlashcards, userID)
	if err != nil {
		return err
	}
	local, err := e.store.CustomFlashcards(ctx)
	if err != nil {
		return err
	}
	known := lo.Associate(local, func(c db.CustomFlashcard) (string, bool) { return c.ID, true })

	adopted := 0
	for _, row := range rows {
		if known[row.ID] {
			continue
		}
		var incoming db.CustomFlashcard
		if err := Decode(row.Data, KindCustomFlashcard, &incoming); err != nil {
			logger.Warn("skipping undecodable remote custom flashcard", "id", row.ID, "error", err)
			continue
		}
		if incoming.ID == "" {
			incoming.ID = row.ID
		}
		if known[incoming.ID] {
			continue
		}
		if err := e.store.PutCustomFlashcard(ctx, incoming); err != nil {
			return err
		}
		known[incoming.ID] = true
		adopted++
	}
	if adopted > 0 {
		logger.Info("adopted remote custom flashcards", "count", adopted)
	}
	return e.pushCustomFlashcards(ctx, userID)
}

func (e *Engine) pushCustomFlashcards(ctx context.Context, userID string) error {
	cards, err := e.store.CustomFlashcards(ctx)
	if err != nil {
		return err
	}
	now := e.now()
	rows := make([]remote.Row, 0, len(cards))
	for _, card := range cards {
		data, err := Encode(KindCustomFlashcard, card)
		if err != nil {
			return err
		}
		rows = append(rows, remote.Row{ID: card.ID, UserID: userID, Data: data, UpdatedAt: now})
	}
	return e.remote.Upsert(ctx, remote.CustomFlashcards, rows)
}
