package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"trustpay/internal/notify"
)

// Tracker runs user-facing actions for one feature area. It flags when an
// action is in flight and reports the outcome as a notification.
type Tracker struct {
	name     string
	session  *Session
	notifier notify.Notifier

	mu         sync.Mutex
	processing bool
}

// ErrBusy is returned when an action is started while another one in the
// same area has not finished.
var ErrBusy = errors.New("another action is still processing")

func (s *Session) Tracker(name string) *Tracker {
	return &Tracker{name: name, session: s, notifier: s.notifier}
}

func (t *Tracker) Name() string { return t.name }

// IsProcessing reports whether an action started through t is still running.
func (t *Tracker) IsProcessing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.processing
}

// Labels are the notification texts an action produces. Failure defaults to
// Title + " Failed".
type Labels struct {
	Title   string
	Success string
	Failure string
}

func (l Labels) failure() string {
	if l.Failure != "" {
		return l.Failure
	}
	return l.Title + " Failed"
}

// Run executes fn when a wallet is connected and no other action of the area
// is running, and notifies the outcome.
func (t *Tracker) Run(ctx context.Context, labels Labels, fn func(context.Context) error) error {
	if _, err := t.session.Account(); err != nil {
		notify.Alert(t.notifier, "Not Connected", "Please connect your wallet first")
		return err
	}

	t.mu.Lock()
	if t.processing {
		t.mu.Unlock()
		return fmt.Errorf("%s: %w", t.name, ErrBusy)
	}
	t.processing = true
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.processing = false
		t.mu.Unlock()
	}()

	if err := fn(ctx); err != nil {
		t.session.logger.Warn("action failed", zap.String("area", t.name), zap.String("action", labels.Title), zap.Error(err))
		if !errors.Is(err, context.Canceled) {
			notify.Alert(t.notifier, labels.failure(), err.Error())
		}
		return err
	}
	t.session.logger.Info("action completed", zap.String("area", t.name), zap.String("action", labels.Title))
	notify.Info(t.notifier, labels.Title, labels.Success)
	return nil
}
