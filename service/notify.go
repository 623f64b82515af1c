package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Variant string

const (
	VariantSuccess Variant = "success"
	VariantError   Variant = "error"
	VariantInfo    Variant = "info"
)

// Notification is a transient, non-blocking message for the user.
type Notification struct {
	ID        string    `json:"id"`
	Variant   Variant   `json:"variant"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Sink receives every notification as it is pushed. Deliver must not block.
type Sink interface {
	Deliver(n Notification)
}

// Notifier keeps the currently visible notifications. At most max are shown;
// a new one evicts the oldest. Each disappears on its own after ttl.
type Notifier struct {
	mu    sync.Mutex
	max   int
	ttl   time.Duration
	items []Notification
	sinks []Sink
	now   func() time.Time
}

func NewNotifier(max int, ttl time.Duration, sinks ...Sink) *Notifier {
	if max <= 0 {
		max = 3
	}
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Notifier{max: max, ttl: ttl, sinks: sinks, now: time.Now}
}

// AddSink registers another receiver. Call it before the notifier is shared.
func (n *Notifier) AddSink(s Sink) {
	n.mu.Lock()
	n.sinks = append(n.sinks, s)
	n.mu.Unlock()
}

func (n *Notifier) Push(v Variant, msg string) Notification {
	n.mu.Lock()
	now := n.now()
	note := Notification{
		ID:        uuid.NewString(),
		Variant:   v,
		Message:   msg,
		CreatedAt: now,
		ExpiresAt: now.Add(n.ttl),
	}
	n.items = append(n.prune(now), note)
	if over := len(n.items) - n.max; over > 0 {
		n.items = n.items[over:]
	}
	sinks := n.sinks
	n.mu.Unlock()

	for _, s := range sinks {
		s.Deliver(note)
	}
	return note
}

func (n *Notifier) Success(msg string) Notification { return n.Push(VariantSuccess, msg) }
func (n *Notifier) Error(msg string) Notification   { return n.Push(VariantError, msg) }

// Active returns the visible notifications, oldest first.
func (n *Notifier) Active() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = n.prune(n.now())
	out := make([]Notification, len(n.items))
	copy(out, n.items)
	return out
}

// Dismiss hides a notification before it expires.
func (n *Notifier) Dismiss(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, it := range n.items {
		if it.ID == id {
			n.items = append(n.items[:i:i], n.items[i+1:]...)
			return true
		}
	}
	return false
}

func (n *Notifier) prune(now time.Time) []Notification {
	kept := n.items[:0:0]
	for _, it := range n.items {
		if now.Before(it.ExpiresAt) {
			kept = append(kept, it)
		}
	}
	return kept
}
