package syncer

import (
	"sync"
	"time"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusOffline Status = "offline"
)

// Event is published on every status transition.
type Event struct {
	Status  Status
	Message string
	Err     error
	At      time.Time
}

type Snapshot struct {
	Status      Status
	Syncing     bool
	Online      bool
	LastSuccess *time.Time
	LastError   string
	LastErrorAt *time.Time
}

type subscriber struct {
	id int
	fn func(Event)
}

// State is the sync state machine of one Engine. It guards against
// overlapping runs and fans status events out to subscribers.
type State struct {
	mu          sync.Mutex
	status      Status
	syncing     bool
	online      bool
	lastSuccess *time.Time
	lastError   string
	lastErrorAt *time.Time
	subscribers []subscriber
	nextID      int
	now         func() time.Time
}

func NewState(now func() time.Time) *State {
	if now == nil {
		now = time.Now
	}
	return &State{status: StatusIdle, online: true, now: now}
}

// Subscribe registers fn for status events and returns a function that
// removes it. Events are delivered synchronously in subscription order.
func (s *State) Subscribe(fn func(Event)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subscribers {
				if sub.id == id {
					s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Status:      s.status,
		Syncing:     s.syncing,
		Online:      s.online,
		LastSuccess: s.lastSuccess,
		LastError:   s.lastError,
		LastErrorAt: s.lastErrorAt,
	}
}

func (s *State) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// SetOnline records reachability and returns the previous value. Going
// offline publishes an offline event.
func (s *State) SetOnline(online bool) bool {
	s.mu.Lock()
	was := s.online
	s.online = online
	s.mu.Unlock()
	if !online {
		s.publish(Event{Status: StatusOffline, Message: "offline, changes are kept on this device"})
	}
	return was
}

// begin claims the single sync slot. It fails while another run holds it.
func (s *State) begin() bool {
	s.mu.Lock()
	if s.syncing {
		s.mu.Unlock()
		return false
	}
	s.syncing = true
	s.mu.Unlock()
	s.publish(Event{Status: StatusSyncing})
	return true
}

// finish releases the sync slot and publishes the outcome.
func (s *State) finish(err error, message string) {
	s.mu.Lock()
	s.syncing = false
	now := s.now()
	if err == nil {
		s.lastSuccess = &now
	} else {
		s.lastError = message
		s.lastErrorAt = &now
	}
	s.mu.Unlock()

	if err != nil {
		s.publish(Event{Status: StatusError, Message: message, Err: err})
		return
	}
	s.publish(Event{Status: StatusSuccess, Message: message})
}

func (s *State) publish(ev Event) {
	s.mu.Lock()
	if ev.At.IsZero() {
		ev.At = s.now()
	}
	s.status = ev.Status
	subs := append([]subscriber(nil), s.subscribers...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(ev)
	}
}
