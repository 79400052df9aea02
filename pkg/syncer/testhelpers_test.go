package syncer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/smith3v/quizsync/pkg/db"
	"github.com/smith3v/quizsync/pkg/internal/testutil"
	"github.com/smith3v/quizsync/pkg/remote"
	"github.com/smith3v/quizsync/pkg/store"
)

type staticUser string

func (u staticUser) ActiveUserID(context.Context) (string, error) {
	return string(u), nil
}

// fakeRemote wraps a real remote store, counting calls and injecting
// failures or delays per collection.
type fakeRemote struct {
	inner remote.Store

	mu      sync.Mutex
	fetches map[remote.Collection]int
	upserts map[remote.Collection]int
	failOn  map[remote.Collection]error

	gate    chan struct{}
	entered chan struct{}
}

func newFakeRemote(t *testing.T) *fakeRemote {
	t.Helper()
	return &fakeRemote{
		inner:   remote.NewGormStore(testutil.SetupBareDB(t, remote.Models()...)),
		fetches: map[remote.Collection]int{},
		upserts: map[remote.Collection]int{},
		failOn:  map[remote.Collection]error{},
		entered: make(chan struct{}, 16),
	}
}

func (f *fakeRemote) Fetch(ctx context.Context, c remote.Collection, userID string) ([]remote.Row, error) {
	f.mu.Lock()
	f.fetches[c]++
	err := f.failOn[c]
	gate := f.gate
	f.mu.Unlock()

	select {
	case f.entered <- struct{}{}:
	default:
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return f.inner.Fetch(ctx, c, userID)
}

func (f *fakeRemote) Upsert(ctx context.Context, c remote.Collection, rows []remote.Row) error {
	f.mu.Lock()
	f.upserts[c]++
	err := f.failOn[c]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.inner.Upsert(ctx, c, rows)
}

func (f *fakeRemote) totalFetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.fetches {
		total += n
	}
	return total
}

func (f *fakeRemote) rows(t *testing.T, c remote.Collection, userID string) []remote.Row {
	t.Helper()
	rows, err := f.inner.Fetch(context.Background(), c, userID)
	if err != nil {
		t.Fatalf("inner Fetch returned error: %v", err)
	}
	return rows
}

func (f *fakeRemote) seed(t *testing.T, c remote.Collection, rows ...remote.Row) {
	t.Helper()
	if err := f.inner.Upsert(context.Background(), c, rows); err != nil {
		t.Fatalf("seed %s: %v", c, err)
	}
}

var testNow = time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *store.Store, *fakeRemote) {
	t.Helper()
	st := store.New(testutil.SetupTestDB(t), store.WithClock(func() time.Time { return testNow }))
	if err := st.Initialize(context.Background(), []db.Question{
		{ID: "q1", Theme: "humor", Statement: "s", CorrectAnswer: "A"},
		{ID: "q2", Theme: "humor", Statement: "s", CorrectAnswer: "B"},
		{ID: "q3", Theme: "sono", Statement: "s", CorrectAnswer: "C"},
	}); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	fr := newFakeRemote(t)
	return NewEngine(st, fr, staticUser("user-1"), WithEngineClock(func() time.Time { return testNow })), st, fr
}

func encoded(t *testing.T, kind Kind, v any) []byte {
	t.Helper()
	data, err := Encode(kind, v)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	return data
}

func answeredQuestions(n, total int) db.SimulationQuestions {
	questions := make(db.SimulationQuestions, 0, total)
	ids := []string{"q1", "q2", "q3", "q4", "q5", "q6"}
	for i := 0; i < total; i++ {
		q := db.SimulationQuestion{QuestionID: ids[i%len(ids)]}
		if i < n {
			answer := "A"
			correct := true
			q.UserAnswer = &answer
			q.IsCorrect = &correct
		}
		questions = append(questions, q)
	}
	return questions
}

func simulation(id string, answered int, completedAt *time.Time) db.Simulation {
	return db.Simulation{
		ID:            id,
		CreatedAt:     testNow.Add(-time.Hour),
		CompletedAt:   completedAt,
		QuestionCount: 5,
		Questions:     answeredQuestions(answered, 5),
	}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Status)
	}
	return out
}

func (r *eventRecorder) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return Event{}
	}
	return r.events[len(r.events)-1]
}
