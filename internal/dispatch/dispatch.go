package dispatch

import (
	"log/slog"

	"github.com/example/field-dispatch/internal/models"
)

// Notifier delivers one notification to one user. Delivery guarantees
// belong to the implementation; the assignment core only produces the
// fan-out list.
type Notifier interface {
	Notify(userID string, n models.Notification) error
}

// LogNotifier writes notifications to the structured log. Used when no
// push transport is configured, and handy in development.
type LogNotifier struct {
	Logger *slog.Logger
}

func (d *LogNotifier) Notify(userID string, n models.Notification) error {
	if d.Logger != nil {
		d.Logger.Info("notification",
			"user_id", userID, "type", n.Type, "title", n.Title, "related_id", n.RelatedID)
	}
	return nil
}

// FanOut dispatches a batch best-effort; one failed recipient does not
// block the rest.
func FanOut(notifier Notifier, notes []models.Notification) {
	for _, n := range notes {
		_ = notifier.Notify(n.UserID, n)
	}
}
