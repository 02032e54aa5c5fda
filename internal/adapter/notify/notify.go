// Package notify delivers run status transitions to external listeners.
package notify

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/xiaot623/panelsim/internal/domain"
)

// Notification describes one status transition of a run.
type Notification struct {
	RunID        string           `json:"run_id"`
	Status       domain.RunStatus `json:"status"`
	ResearchType string           `json:"research_type,omitempty"`
	DownloadURL  string           `json:"download_url,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Ts           time.Time        `json:"ts"`
}

// Notifier receives run status transitions.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Nop drops every notification.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(context.Context, Notification) error { return nil }

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

// Notify delivers n to all notifiers, even when some fail.
func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		err := errs[0]
		for _, e := range errs[1:] {
			err = eris.Wrap(err, e.Error())
		}
		return err
	}
}
