package client

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aeolun/queueview/pkg/protocol"
	"github.com/aeolun/queueview/pkg/replica"
	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"
)

// NotifyFunc shows a desktop notification
type NotifyFunc func(title, body string) error

func desktopNotify(title, body string) error {
	return beeep.Notify(title, body, "")
}

// Notifier raises a desktop notification whenever a mail that was not in
// the queue before shows up. Syncs and resets only rebuild the known set,
// so a reconnect does not notify for the whole queue again.
type Notifier struct {
	replica *replica.Replica
	notify  NotifyFunc
	logger  zerolog.Logger

	changes     <-chan replica.Change
	unsubscribe func()

	mu    sync.Mutex
	known map[protocol.MessageID]struct{}
}

// NewNotifier subscribes to rep. Mail already in the replica is not news.
// Changes are buffered until Run is called.
func NewNotifier(rep *replica.Replica) *Notifier {
	n := &Notifier{
		replica: rep,
		notify:  desktopNotify,
		logger:  zerolog.Nop(),
	}
	n.changes, n.unsubscribe = rep.Subscribe()
	n.rebuild(rep.IDs())
	return n
}

// SetNotifyFunc replaces the desktop notification backend
func (n *Notifier) SetNotifyFunc(fn NotifyFunc) {
	n.notify = fn
}

// SetLogger sets the logger for notification failures
func (n *Notifier) SetLogger(logger zerolog.Logger) {
	n.logger = logger.With().Str("component", "notifier").Logger()
}

// Run handles replica changes until ctx is cancelled, then unsubscribes
func (n *Notifier) Run(ctx context.Context) {
	defer n.unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-n.changes:
			if !ok {
				return
			}
			n.handle(c)
		}
	}
}

func (n *Notifier) handle(c replica.Change) {
	switch c.Kind {
	case replica.ChangeSync:
		// The replica may already hold later upserts; only the snapshot is known
		n.rebuild(c.IDs)
	case replica.ChangeReset:
		n.rebuild(nil)
	case replica.ChangeDelete:
		n.mu.Lock()
		delete(n.known, c.ID)
		n.mu.Unlock()
	case replica.ChangeUpsert:
		n.mu.Lock()
		_, seen := n.known[c.ID]
		n.known[c.ID] = struct{}{}
		n.mu.Unlock()
		if seen {
			return
		}

		rec, ok := n.replica.Get(c.ID)
		if !ok {
			return
		}
		title, body := notificationText(rec)
		if err := n.notify(title, body); err != nil {
			n.logger.Debug().Err(err).Str("id", c.ID).Msg("failed to send desktop notification")
		}
	}
}

func (n *Notifier) rebuild(ids []protocol.MessageID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.known = make(map[protocol.MessageID]struct{}, len(ids))
	for _, id := range ids {
		n.known[id] = struct{}{}
	}
}

func notificationText(rec protocol.Record) (string, string) {
	s := rec.Summary()

	title := "Queued mail"
	if len(s.To) > 0 {
		title = fmt.Sprintf("Queued mail to %s", strings.Join(s.To, ", "))
	}

	body := s.Subject
	if body == "" {
		body = "(no subject)"
	}
	// Truncate to 100 chars for the notification
	if r := []rune(body); len(r) > 100 {
		body = string(r[:97]) + "..."
	}
	return title, body
}
