// internal/notify/notifier.go
package notify

import (
	"context"
	"log/slog"
)

// Notifier sends a transactional message to a recipient. Implementations are
// fire-and-forget collaborators: callers treat failures as loggable, never as
// reasons to revert already-committed state.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// BestEffort attempts a send and logs the outcome instead of returning it.
// This is the single choke point through which services deliver notices so
// that a notifier failure can never roll back a state change.
func BestEffort(ctx context.Context, n Notifier, logger *slog.Logger, recipient, subject, body string) {
	if n == nil {
		return
	}
	if err := n.Send(ctx, recipient, subject, body); err != nil {
		logger.Error("failed to send notification", "recipient", recipient, "subject", subject, "error", err)
	}
}
