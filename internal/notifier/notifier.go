// Package notifier receives the terminal outcome of a reservation job and
// folds it back into the conversation layer: session reset, user message,
// registry release.  Delivery may be retried by the worker, so everything
// here is idempotent.
package notifier

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hyeonwoo/railbot/internal/admission"
	"github.com/hyeonwoo/railbot/internal/messages"
	"github.com/hyeonwoo/railbot/internal/model"
	"github.com/hyeonwoo/railbot/internal/queue"
	"github.com/hyeonwoo/railbot/internal/repository"
	"github.com/hyeonwoo/railbot/internal/telegram"
)

// PublishFunc pushes a completion event to the message broker.  It may be
// nil when no broker is configured; failures are logged, never propagated.
type PublishFunc func(ctx context.Context, event queue.ReservationCompletedEvent) error

// Notifier applies job outcomes to sessions and notifies users.
type Notifier struct {
	sessions  *repository.SessionStore
	control   *admission.Controller
	messenger telegram.Messenger
	history   *repository.HistoryRepo
	publish   PublishFunc
	logger    *zap.Logger
}

// New wires a Notifier.  history and publish are optional.
func New(sessions *repository.SessionStore, control *admission.Controller,
	messenger telegram.Messenger, history *repository.HistoryRepo,
	publish PublishFunc, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		sessions:  sessions,
		control:   control,
		messenger: messenger,
		history:   history,
		publish:   publish,
		logger:    logger,
	}
}

// Deliver processes one outcome report for a session.  It unconditionally
// resets the owning session to idle, clears its in-flight request, removes
// the registry entry if still present, and sends the user one
// outcome-derived message.  Calling Deliver twice with the same outcome is
// safe: reset and release are idempotent, and the second call just repeats
// the message.
func (n *Notifier) Deliver(ctx context.Context, sessionID string, outcome model.Outcome) {
	var (
		loginID string
		jobID   string
	)
	n.sessions.Do(sessionID, func(s *model.Session) {
		loginID = s.Credentials.LoginID
		jobID = s.JobID
		s.Reset()
	})
	n.control.Release(sessionID)

	n.logger.Info("job outcome delivered",
		zap.String("session", sessionID),
		zap.Int("status", int(outcome.Status)),
		zap.String("detail", outcome.Detail))

	if err := n.messenger.SendText(ctx, sessionID, messageFor(outcome)); err != nil {
		n.logger.Warn("outcome message send failed", zap.String("session", sessionID), zap.Error(err))
	}

	if err := n.history.Record(ctx, sessionID, loginID, int(outcome.Status), outcome.Detail); err != nil &&
		err != repository.ErrUnavailable {
		n.logger.Warn("history record failed", zap.Error(err))
	}

	if n.publish != nil {
		ev := queue.ReservationCompletedEvent{
			JobID:       jobID,
			SessionID:   sessionID,
			LoginID:     loginID,
			Status:      int(outcome.Status),
			Detail:      outcome.Detail,
			CompletedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err := n.publish(ctx, ev); err != nil {
			n.logger.Warn("completion event publish failed", zap.Error(err))
		}
	}
}

// messageFor maps an outcome onto the user-facing notice.
func messageFor(o model.Outcome) string {
	switch {
	case o.Status == model.OutcomeSuccess:
		return messages.OutcomeSuccessPrefix + o.Detail
	case o.Cancelled:
		return messages.ReserveFinished
	case o.Status == model.OutcomeError:
		return messages.OutcomeErrorPrefix + o.Detail
	default:
		return messages.OutcomeFailure
	}
}
