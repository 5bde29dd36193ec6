package session

import (
	"sync"
	"time"
)

// DefaultNoticeTTL is how long a transient success notice stays visible.
const DefaultNoticeTTL = 2 * time.Second

// NoticeLevel classifies a transient notice for styling.
type NoticeLevel int

// Notice levels.
const (
	NoticeInfo NoticeLevel = iota
	NoticeSuccess
	NoticeError
)

// Notice is one transient message with an expiry.
type Notice struct {
	Message string
	Level   NoticeLevel
	Expiry  time.Time
}

// Notices is a declarative queue of transient notifications. Views render
// Active() on every pass; expired entries are pruned rather than removed by
// ad-hoc timers mutating the view tree.
type Notices struct {
	mu    sync.Mutex
	items []Notice
	now   func() time.Time
}

// NewNotices creates an empty queue. now may be nil (wall clock); tests
// inject a fake clock.
func NewNotices(now func() time.Time) *Notices {
	if now == nil {
		now = time.Now
	}
	return &Notices{now: now}
}

// Push appends a notice expiring after ttl.
func (n *Notices) Push(message string, level NoticeLevel, ttl time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, Notice{
		Message: message,
		Level:   level,
		Expiry:  n.now().Add(ttl),
	})
}

// Active prunes expired entries and returns the live ones in push order.
func (n *Notices) Active() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	live := n.items[:0]
	for _, item := range n.items {
		if item.Expiry.After(now) {
			live = append(live, item)
		}
	}
	n.items = live

	out := make([]Notice, len(live))
	copy(out, live)
	return out
}
