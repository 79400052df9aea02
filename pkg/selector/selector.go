// Package selector samples practice questions from the local question bank.
package selector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/smith3v/quizsync/pkg/db"
	"github.com/smith3v/quizsync/pkg/logger"
	"github.com/smith3v/quizsync/pkg/store"
)

// Share of an adaptive sample drawn from each bucket. Strong themes get
// whatever is left.
const (
	weakShare  = 0.4
	freshShare = 0.3
	midShare   = 0.2
)

type Filter struct {
	Theme      string
	Difficulty int
	Tier       int
	ExcludeIDs []string
}

type Selector struct {
	store *store.Store

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Selector)

// WithRand fixes the random source, mainly for tests.
func WithRand(r *rand.Rand) Option {
	return func(s *Selector) {
		if r != nil {
			s.rng = r
		}
	}
}

func New(st *store.Store, opts ...Option) *Selector {
	seed := uint64(time.Now().UnixNano())
	s := &Selector{
		store: st,
		rng:   rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SelectRandom draws up to count distinct questions matching f, skipping
// recently seen ones. When fewer unseen questions remain than requested the
// seen ledger is reset and the whole filtered pool is used.
func (s *Selector) SelectRandom(ctx context.Context, count int, f Filter) ([]db.Question, error) {
	if count <= 0 {
		return []db.Question{}, nil
	}
	pool, err := s.store.Questions(ctx, store.QuestionQuery{
		Theme:      f.Theme,
		Difficulty: f.Difficulty,
		Tier:       f.Tier,
		ExcludeIDs: f.ExcludeIDs,
	})
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return []db.Question{}, nil
	}

	pool, err = s.unseen(ctx, pool, count)
	if err != nil {
		return nil, err
	}

	s.shuffle(pool)
	picked := pool[:min(count, len(pool))]
	if err := s.markSeen(ctx, picked); err != nil {
		return nil, err
	}
	return picked, nil
}

// SelectAdaptive biases the sample toward weak themes and unanswered
// questions while still drawing from middle and strong themes. Without any
// progress history it behaves like SelectRandom with no filter.
func (s *Selector) SelectAdaptive(ctx context.Context, count int, progress *db.UserProgress) ([]db.Question, error) {
	if !progress.HasHistory() {
		return s.SelectRandom(ctx, count, Filter{})
	}
	if count <= 0 {
		return []db.Question{}, nil
	}

	pool, err := s.store.Questions(ctx, store.QuestionQuery{})
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return []db.Question{}, nil
	}
	pool, err = s.unseen(ctx, pool, count)
	if err != nil {
		return nil, err
	}

	answered, err := s.store.AnsweredQuestionIDs(ctx)
	if err != nil {
		return nil, err
	}
	weak := lo.Associate(progress.Trends.WeakThemes, func(t string) (string, bool) { return t, true })
	strong := lo.Associate(progress.Trends.StrongThemes, func(t string) (string, bool) { return t, true })

	weakPool := lo.Filter(pool, func(q db.Question, _ int) bool { return weak[q.Theme] })
	freshPool := lo.Filter(pool, func(q db.Question, _ int) bool {
		_, ok := answered[q.ID]
		return !ok
	})
	midPool := lo.Filter(pool, func(q db.Question, _ int) bool { return !weak[q.Theme] && !strong[q.Theme] })
	strongPool := lo.Filter(pool, func(q db.Question, _ int) bool { return strong[q.Theme] })

	q := quotas(count)
	selected := make([]db.Question, 0, count)
	for i, bucket := range [][]db.Question{weakPool, freshPool, midPool, strongPool} {
		s.shuffle(bucket)
		selected = append(selected, bucket[:min(q[i], len(bucket))]...)
	}
	selected = lo.UniqBy(selected, func(q db.Question) string { return q.ID })

	if len(selected) < count {
		used := lo.Associate(selected, func(q db.Question) (string, bool) { return q.ID, true })
		leftover := lo.Reject(pool, func(q db.Question, _ int) bool { return used[q.ID] })
		s.shuffle(leftover)
		selected = append(selected, leftover[:min(count-len(selected), len(leftover))]...)
	}

	s.shuffle(selected)
	selected = selected[:min(count, len(selected))]
	if err := s.markSeen(ctx, selected); err != nil {
		return nil, err
	}
	logger.Debug("adaptive sample drawn", "requested", count, "returned", len(selected),
		"weak_pool", len(weakPool), "fresh_pool", len(freshPool))
	return selected, nil
}

// quotas splits count into weak, fresh, middle and strong bucket sizes.
func quotas(count int) [4]int {
	w := int(math.Round(float64(count) * weakShare))
	f := int(math.Round(float64(count) * freshShare))
	m := int(math.Round(float64(count) * midShare))
	return [4]int{w, f, m, max(0, count-w-f-m)}
}

func (s *Selector) unseen(ctx context.Context, pool []db.Question, count int) ([]db.Question, error) {
	seen, _, err := s.store.SeenQuestionIDs(ctx)
	if errors.Is(err, store.ErrMalformedLocalData) {
		logger.Warn("ignoring unreadable seen ledger", "error", err)
		seen = nil
	} else if err != nil {
		return nil, err
	}

	seenSet := lo.Associate(seen, func(id string) (string, bool) { return id, true })
	remaining := lo.Reject(pool, func(q db.Question, _ int) bool { return seenSet[q.ID] })
	if len(remaining) >= count {
		return remaining, nil
	}
	if err := s.store.ClearSeen(ctx); err != nil {
		return nil, fmt.Errorf("reset seen questions: %w", err)
	}
	return pool, nil
}

func (s *Selector) markSeen(ctx context.Context, picked []db.Question) error {
	if len(picked) == 0 {
		return nil
	}
	ids := lo.Map(picked, func(q db.Question, _ int) string { return q.ID })
	if err := s.store.MarkSeen(ctx, ids); err != nil {
		return fmt.Errorf("mark questions seen: %w", err)
	}
	return nil
}

// shuffle is an in-place Fisher-Yates pass.
func (s *Selector) shuffle(questions []db.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(questions) - 1; i > 0; i-- {
		j := s.rng.IntN(i + 1)
		questions[i], questions[j] = questions[j], questions[i]
	}
}
