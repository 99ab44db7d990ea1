// Package inbox maintains the user-facing notification state: the
// unread counter and the recent-event cache, fed both by on-demand
// fetch and by live push.
package inbox

import (
	"context"
	"sync"

	"github.com/communitas-app/session_layer/internal/logging"
	"github.com/communitas-app/session_layer/internal/notification"
	"github.com/communitas-app/session_layer/internal/observable"
)

// DefaultRecentLimit bounds the recent-event cache.
const DefaultRecentLimit = 50

// Fetcher lists notifications from the REST collaborator.
type Fetcher interface {
	ListRecent(ctx context.Context, limit int) ([]notification.Event, error)
	UnreadCount(ctx context.Context) (int, error)
}

// Inbox is the user-facing notification sink.
type Inbox struct {
	mu      sync.Mutex
	fetcher Fetcher
	logger  *logging.Logger
	limit   int
	events  []notification.Event
	unread  *observable.Cell[int]
}

// New creates an empty inbox. A non-positive limit means
// DefaultRecentLimit.
func New(fetcher Fetcher, logger *logging.Logger, limit int) *Inbox {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return &Inbox{
		fetcher: fetcher,
		logger:  logger.OrDiscard(),
		limit:   limit,
		unread:  observable.NewCell(0),
	}
}

// Refresh replaces the cache and unread count from the REST
// collaborator. It is idempotent: refreshing twice with the same server
// state yields the same inbox.
func (i *Inbox) Refresh(ctx context.Context) error {
	events, err := i.fetcher.ListRecent(ctx, i.limit)
	if err != nil {
		return err
	}
	unread, err := i.fetcher.UnreadCount(ctx)
	if err != nil {
		return err
	}

	i.mu.Lock()
	i.events = events
	i.mu.Unlock()

	i.unread.Set(unread)
	return nil
}

// OnPush records a live-pushed event: prepend to the recent cache and
// bump the unread count. Called only by the realtime notifier, on its
// read loop, so events land in receipt order.
func (i *Inbox) OnPush(ev notification.Event) {
	i.mu.Lock()
	i.events = append([]notification.Event{ev}, i.events...)
	if len(i.events) > i.limit {
		i.events = i.events[:i.limit]
	}
	bump := !ev.Read
	i.mu.Unlock()

	if bump {
		i.unread.Set(i.unread.Get() + 1)
	}
}

// MarkRead flips the event to read and decrements the unread count.
// Marking an already-read or unknown id is a no-op, not an error.
func (i *Inbox) MarkRead(id string) {
	i.mu.Lock()
	flipped := false
	for idx := range i.events {
		if i.events[idx].ID == id {
			if !i.events[idx].Read {
				i.events[idx].Read = true
				flipped = true
			}
			break
		}
	}
	i.mu.Unlock()

	if flipped {
		if current := i.unread.Get(); current > 0 {
			i.unread.Set(current - 1)
		}
	}
}

// Unread returns the current unread count.
func (i *Inbox) Unread() int {
	return i.unread.Get()
}

// SubscribeUnread registers fn for unread-count changes (badge UI).
func (i *Inbox) SubscribeUnread(fn func(int)) func() {
	return i.unread.Subscribe(fn)
}

// Recent returns a copy of the recent-event cache, newest first.
func (i *Inbox) Recent() []notification.Event {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]notification.Event, len(i.events))
	copy(out, i.events)
	return out
}
