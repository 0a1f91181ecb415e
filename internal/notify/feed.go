package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"inventory-console/internal/models"
)

// Feed is the ordered list of notifications of one view session.
// Readers poll it by offset and may long-poll for new entries.
type Feed struct {
	mu               sync.RWMutex
	notifications    []models.Notification
	nextOffset       int64
	maxNotifications int
	logger           *slog.Logger
	waiters          map[int64][]*waiter
	waitersMutex     sync.Mutex
}

// FeedConfig holds configuration for a feed
type FeedConfig struct {
	MaxNotifications int
	Logger           *slog.Logger
}

type waiter struct {
	ch   chan struct{}
	once sync.Once
}

func (w *waiter) release() {
	w.once.Do(func() { close(w.ch) })
}

// NewFeed creates an empty feed
func NewFeed(config FeedConfig) *Feed {
	if config.MaxNotifications <= 0 {
		config.MaxNotifications = 100
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Feed{
		notifications:    make([]models.Notification, 0),
		maxNotifications: config.MaxNotifications,
		logger:           config.Logger,
		waiters:          make(map[int64][]*waiter),
	}
}

// Notify appends a notification and wakes up long-polling readers
func (f *Feed) Notify(level, title, message string) models.Notification {
	f.mu.Lock()
	n := models.Notification{
		ID:        uuid.NewString(),
		Offset:    f.nextOffset,
		Level:     level,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now(),
	}
	f.nextOffset++
	f.notifications = append(f.notifications, n)

	if len(f.notifications) > f.maxNotifications {
		keepCount := f.maxNotifications * 3 / 4
		if keepCount < 1 {
			keepCount = 1
		}
		removed := len(f.notifications) - keepCount
		f.notifications = append([]models.Notification(nil), f.notifications[removed:]...)
		f.logger.Debug("Notification feed rotated",
			"removed_notifications", removed,
			"remaining_notifications", len(f.notifications))
	}
	f.mu.Unlock()

	f.logger.Debug("Notification published",
		"offset", n.Offset,
		"level", n.Level,
		"title", n.Title)

	f.notifyWaiters(n.Offset)
	return n
}

// Get returns up to limit undismissed notifications at or after fromOffset,
// the offset to continue from and whether more are pending.
func (f *Feed) Get(fromOffset int64, limit int) ([]models.Notification, int64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	result := make([]models.Notification, 0)
	nextOffset := fromOffset
	if nextOffset < 0 {
		nextOffset = 0
	}
	hasMore := false

	for _, n := range f.notifications {
		if n.Offset < fromOffset || n.Dismissed {
			continue
		}
		if len(result) == limit {
			hasMore = true
			break
		}
		result = append(result, n)
		nextOffset = n.Offset + 1
	}

	if len(result) == 0 && !hasMore && f.nextOffset > nextOffset {
		// everything after fromOffset was dismissed
		nextOffset = f.nextOffset
	}

	return result, nextOffset, hasMore
}

// WaitFor returns a channel closed when a notification at or after fromOffset
// exists, or when timeout elapses. The returned stop func unregisters the waiter
// early; callers that stop waiting for another reason must call it.
func (f *Feed) WaitFor(fromOffset int64, timeout time.Duration) (<-chan struct{}, func()) {
	f.waitersMutex.Lock()
	defer f.waitersMutex.Unlock()

	w := &waiter{ch: make(chan struct{})}

	f.mu.RLock()
	available := f.nextOffset > fromOffset
	f.mu.RUnlock()

	if available {
		w.release()
		return w.ch, func() {}
	}

	f.waiters[fromOffset] = append(f.waiters[fromOffset], w)
	timer := time.AfterFunc(timeout, func() { f.dropWaiter(fromOffset, w) })

	return w.ch, func() {
		timer.Stop()
		f.dropWaiter(fromOffset, w)
	}
}

// dropWaiter removes w from the waiting list and releases it
func (f *Feed) dropWaiter(fromOffset int64, w *waiter) {
	f.waitersMutex.Lock()
	defer f.waitersMutex.Unlock()

	waiters := f.waiters[fromOffset]
	for i, candidate := range waiters {
		if candidate == w {
			waiters = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(waiters) == 0 {
		delete(f.waiters, fromOffset)
	} else {
		f.waiters[fromOffset] = waiters
	}
	w.release()
}

// Dismiss hides a notification. It reports whether the id was found.
func (f *Feed) Dismiss(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.notifications {
		if f.notifications[i].ID == id {
			f.notifications[i].Dismissed = true
			return true
		}
	}
	return false
}

// Pending returns the number of undismissed notifications
func (f *Feed) Pending() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	count := 0
	for _, n := range f.notifications {
		if !n.Dismissed {
			count++
		}
	}
	return count
}

func (f *Feed) notifyWaiters(offset int64) {
	f.waitersMutex.Lock()
	defer f.waitersMutex.Unlock()

	for waitOffset, waiters := range f.waiters {
		if waitOffset <= offset {
			for _, w := range waiters {
				w.release()
			}
			delete(f.waiters, waitOffset)
		}
	}
}
