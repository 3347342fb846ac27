package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/hibiken/asynq"

	"github.com/profitcast/profitcast/internal/identity"
	jobmetrics "github.com/profitcast/profitcast/internal/jobs"
)

// Mailer sends one message. The SMTP implementation is used in production;
// tests swap in a recorder.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer delivers through a plain SMTP relay (Mailpit in development).
type SMTPMailer struct {
	Addr string
	From string
}

// Send delivers one message.
func (m SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.From, to, subject, body)
	if err := smtp.SendMail(m.Addr, nil, m.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// UserLookup resolves a user ID to an account. Satisfied by the identity
// repository.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (*identity.User, error)
}

// NotifyEmailHandler processes TaskNotifyEmail tasks.
type NotifyEmailHandler struct {
	Users   UserLookup
	Mailer  Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle resolves the recipient and sends the message. Unknown or inactive
// recipients are dropped without retry; transient mail failures retry.
func (h NotifyEmailHandler) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := h.Metrics.Track(TaskNotifyEmail)
	var payload NotifyEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(asynq.SkipRetry)
	}
	user, err := h.Users.FindByID(ctx, payload.UserID)
	if err != nil || !user.IsActive {
		h.Logger.Warn("notification email dropped",
			slog.String("user_id", payload.UserID))
		return tracker.End(asynq.SkipRetry)
	}
	if err := h.Mailer.Send(ctx, user.Email, payload.Title, payload.Message); err != nil {
		return tracker.End(fmt.Errorf("notify email to %s: %w", user.Email, err))
	}
	return tracker.End(nil)
}
