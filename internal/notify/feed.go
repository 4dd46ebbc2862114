// Package notify carries the user-facing notifications produced by wallet and
// contract operations.
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

type Notification struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Variant     Variant   `json:"variant"`
	Time        time.Time `json:"time"`
}

// Notifier receives notifications.
type Notifier interface {
	Notify(n Notification)
}

// Info and Alert are shorthands used by the producers.
func Info(n Notifier, title, description string) {
	if n == nil {
		return
	}
	n.Notify(Notification{Title: title, Description: description, Variant: VariantDefault})
}

func Alert(n Notifier, title, description string) {
	if n == nil {
		return
	}
	n.Notify(Notification{Title: title, Description: description, Variant: VariantDestructive})
}

// Feed keeps the most recent notifications in a bounded ring and logs each one.
type Feed struct {
	mu     sync.Mutex
	items  []Notification
	next   int
	full   bool
	logger *zap.Logger
	now    func() time.Time
}

func NewFeed(limit int, logger *zap.Logger) *Feed {
	if limit <= 0 {
		limit = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{
		items:  make([]Notification, limit),
		logger: logger,
		now:    time.Now,
	}
}

func (f *Feed) Notify(n Notification) {
	if n.Variant == "" {
		n.Variant = VariantDefault
	}
	if n.Time.IsZero() {
		n.Time = f.now()
	}

	fields := []zap.Field{zap.String("title", n.Title), zap.String("description", n.Description)}
	if n.Variant == VariantDestructive {
		f.logger.Warn("notification", fields...)
	} else {
		f.logger.Info("notification", fields...)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[f.next] = n
	f.next = (f.next + 1) % len(f.items)
	if f.next == 0 {
		f.full = true
	}
}

// Recent returns notifications oldest first.
func (f *Feed) Recent() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.full {
		out := make([]Notification, f.next)
		copy(out, f.items[:f.next])
		return out
	}
	out := make([]Notification, 0, len(f.items))
	out = append(out, f.items[f.next:]...)
	out = append(out, f.items[:f.next]...)
	return out
}

// Latest returns the newest notification, if any.
func (f *Feed) Latest() (Notification, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.full && f.next == 0 {
		return Notification{}, false
	}
	idx := (f.next - 1 + len(f.items)) % len(f.items)
	return f.items[idx], true
}
