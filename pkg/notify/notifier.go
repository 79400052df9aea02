// Package notify alerts an operator chat when syncing starts failing and
// when it recovers.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/smith3v/quizsync/pkg/logger"
	"github.com/smith3v/quizsync/pkg/syncer"
)

const sendTimeout = 10 * time.Second

// Sender abstracts message delivery.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Notifier turns sync status events into chat messages. Only transitions
// are reported: the first failure after a success and the first success
// after a failure.
type Notifier struct {
	sender Sender
	chatID int64
	name   string

	mu      sync.Mutex
	failing bool
	wg      sync.WaitGroup
}

func New(sender Sender, chatID int64, name string) *Notifier {
	if name == "" {
		name = "quizsync"
	}
	return &Notifier{sender: sender, chatID: chatID, name: name}
}

// Attach subscribes the notifier to the engine's status events.
func (n *Notifier) Attach(engine *syncer.Engine) (detach func()) {
	return engine.Subscribe(n.Handle)
}

// Handle is called synchronously by the status bus, so delivery happens on
// its own goroutine.
func (n *Notifier) Handle(ev syncer.Event) {
	text, ok := n.transition(ev)
	if !ok {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := n.sender.SendMessage(ctx, n.chatID, text); err != nil {
			logger.Error("failed to send sync notification", "chat_id", n.chatID, "error", err)
		}
	}()
}

func (n *Notifier) transition(ev syncer.Event) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch ev.Status {
	case syncer.StatusError:
		if n.failing {
			return "", false
		}
		n.failing = true
		return fmt.Sprintf("%s: %s (%s)", n.name, ev.Message, ev.At.UTC().Format(time.RFC3339)), true
	case syncer.StatusSuccess:
		if !n.failing {
			return "", false
		}
		n.failing = false
		return fmt.Sprintf("%s: sync recovered (%s)", n.name, ev.At.UTC().Format(time.RFC3339)), true
	}
	return "", false
}

// Wait blocks until pending messages are delivered.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
