// Package simulation runs practice sessions: it draws questions, records one
// answer at a time and folds finished sessions into the user's progress.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/samber/lo"
	"github.com/smith3v/quizsync/pkg/db"
	"github.com/smith3v/quizsync/pkg/logger"
	"github.com/smith3v/quizsync/pkg/progress"
	"github.com/smith3v/quizsync/pkg/selector"
	"github.com/smith3v/quizsync/pkg/srs"
	"github.com/smith3v/quizsync/pkg/store"
)

const DefaultQuestionCount = 20

var (
	ErrAlreadyCompleted = errors.New("simulation already completed")
	ErrNoQuestions      = errors.New("no questions match the selection")
	ErrNotInSimulation  = errors.New("question is not part of the simulation")
	ErrEmptyAnswer      = errors.New("answer is empty")
)

type Options struct {
	Count      int
	Adaptive   bool
	Theme      string
	Difficulty int
	Tier       int
	Timed      bool
}

type Service struct {
	store    *store.Store
	selector *selector.Selector
	reviews  *srs.Service
	sync     srs.SyncRequester
	newID    func() (string, error)
}

// NewService wires a session service. reviews and sync may be nil.
func NewService(st *store.Store, sel *selector.Selector, reviews *srs.Service, sync srs.SyncRequester) *Service {
	return &Service{
		store:    st,
		selector: sel,
		reviews:  reviews,
		sync:     sync,
		newID:    func() (string, error) { return gonanoid.New() },
	}
}

// Start draws questions and saves a new, unanswered simulation.
func (s *Service) Start(ctx context.Context, opts Options) (*db.Simulation, error) {
	count := opts.Count
	if count <= 0 {
		count = DefaultQuestionCount
	}

	var (
		questions []db.Question
		err       error
	)
	if opts.Adaptive {
		var current *db.UserProgress
		current, err = s.store.Progress(ctx)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		questions, err = s.selector.SelectAdaptive(ctx, count, current)
	} else {
		questions, err = s.selector.SelectRandom(ctx, count, selector.Filter{
			Theme:      opts.Theme,
			Difficulty: opts.Difficulty,
			Tier:       opts.Tier,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("select questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("generate simulation id: %w", err)
	}
	sim := &db.Simulation{
		ID:            id,
		CreatedAt:     s.store.Now(),
		QuestionCount: len(questions),
		FocusTheme:    opts.Theme,
		IsTimedExam:   opts.Timed,
		Questions: lo.Map(questions, func(q db.Question, _ int) db.SimulationQuestion {
			return db.SimulationQuestion{QuestionID: q.ID}
		}),
	}
	themes := lo.Associate(questions, func(q db.Question) (string, string) { return q.ID, q.Theme })
	sim.Stats = progress.ComputeSimulationStats(sim.Questions, lookup(themes))

	if err := s.store.SaveSimulation(ctx, sim); err != nil {
		return nil, fmt.Errorf("save simulation: %w", err)
	}
	logger.Info("simulation started", "simulation_id", sim.ID, "questions", len(questions), "adaptive", opts.Adaptive)
	s.requestSync("simulation started")
	return sim, nil
}

// Answer records the answer to one question, grades it against the bank and
// saves the simulation. Answering again replaces the previous answer.
func (s *Service) Answer(ctx context.Context, simID, questionID, answer string, spent time.Duration) (*db.Simulation, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, ErrEmptyAnswer
	}
	sim, err := s.open(ctx, simID)
	if err != nil {
		return nil, err
	}
	_, idx, found := lo.FindIndexOf(sim.Questions, func(q db.SimulationQuestion) bool { return q.QuestionID == questionID })
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotInSimulation, questionID)
	}
	question, err := s.store.Question(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("load question %s: %w", questionID, err)
	}

	now := s.store.Now()
	correct := strings.EqualFold(answer, strings.TrimSpace(question.CorrectAnswer))
	entry := &sim.Questions[idx]
	entry.UserAnswer = &answer
	entry.IsCorrect = &correct
	entry.AnsweredAt = &now
	if spent > 0 {
		entry.TimeSpentSeconds = lo.ToPtr(int(spent.Round(time.Second) / time.Second))
	}

	themes, err := s.themes(ctx, sim.Questions)
	if err != nil {
		return nil, err
	}
	sim.Stats = progress.ComputeSimulationStats(sim.Questions, lookup(themes))
	if err := s.store.SaveSimulation(ctx, sim); err != nil {
		return nil, fmt.Errorf("save simulation: %w", err)
	}
	s.requestSync("answer saved")
	return sim, nil
}

// Finish completes the simulation, rebuilds the progress record and queues
// wrongly answered questions for review.
func (s *Service) Finish(ctx context.Context, simID string) (*db.Simulation, error) {
	sim, err := s.open(ctx, simID)
	if err != nil {
		return nil, err
	}
	themes, err := s.themes(ctx, sim.Questions)
	if err != nil {
		return nil, err
	}
	now := s.store.Now()
	sim.CompletedAt = &now
	sim.Stats = progress.ComputeSimulationStats(sim.Questions, lookup(themes))
	if err := s.store.SaveSimulation(ctx, sim); err != nil {
		return nil, fmt.Errorf("save simulation: %w", err)
	}

	if err := s.recalculate(ctx, now); err != nil {
		return nil, err
	}

	wrong := lo.FilterMap(sim.Questions, func(q db.SimulationQuestion, _ int) (string, bool) {
		return q.QuestionID, q.IsCorrect != nil && !*q.IsCorrect
	})
	if s.reviews != nil && len(wrong) > 0 {
		if err := s.reviews.AddCardsToReview(ctx, wrong); err != nil {
			logger.Warn("failed to queue wrong answers for review", "simulation_id", sim.ID, "error", err)
		}
	}
	logger.Info("simulation finished", "simulation_id", sim.ID,
		"answered", sim.Stats.Answered, "correct", sim.Stats.Correct, "accuracy", sim.Stats.Accuracy)
	s.requestSync("simulation finished")
	return sim, nil
}

// recalculate rebuilds the progress record from every completed simulation.
func (s *Service) recalculate(ctx context.Context, now time.Time) error {
	prev, err := s.store.Progress(ctx)
	if errors.Is(err, store.ErrNotFound) {
		prev = &db.UserProgress{ID: db.UserProgressID}
	} else if err != nil {
		return err
	}
	completed, err := s.store.CompletedSimulations(ctx)
	if err != nil {
		return err
	}
	bank, err := s.store.Questions(ctx, store.QuestionQuery{})
	if err != nil {
		return err
	}
	byID := lo.Associate(bank, func(q db.Question) (string, db.Question) { return q.ID, q })

	next := progress.Recalculate(*prev, completed, byID, now)
	if err := s.store.PutProgress(ctx, next); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

func (s *Service) open(ctx context.Context, simID string) (*db.Simulation, error) {
	sim, err := s.store.Simulation(ctx, simID)
	if err != nil {
		return nil, fmt.Errorf("load simulation %s: %w", simID, err)
	}
	if sim.Completed() {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyCompleted, simID)
	}
	return sim, nil
}

func (s *Service) themes(ctx context.Context, questions []db.SimulationQuestion) (map[string]string, error) {
	themes := make(map[string]string, len(questions))
	for _, q := range questions {
		if _, ok := themes[q.QuestionID]; ok {
			continue
		}
		question, err := s.store.Question(ctx, q.QuestionID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		themes[q.QuestionID] = question.Theme
	}
	return themes, nil
}

func (s *Service) requestSync(reason string) {
	if s.sync != nil {
		s.sync.RequestSync(reason)
	}
}

func lookup(themes map[string]string) func(string) (string, bool) {
	return func(id string) (string, bool) {
		theme, ok := themes[id]
		return theme, ok
	}
}
