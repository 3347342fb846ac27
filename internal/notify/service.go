package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Sink is the producer-facing contract: fire-and-forget delivery. A failed
// notification never fails the operation that produced it.
type Sink interface {
	Notify(ctx context.Context, n Notification)
}

// Enqueuer submits asynchronous delivery work, typically email fan-out.
type Enqueuer interface {
	EnqueueNotifyEmail(ctx context.Context, userID, title, message string) error
}

// Service persists notifications and fans them out through the job queue.
type Service struct {
	repo     Repository
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewService constructs the service. enqueuer may be nil when no worker is
// deployed.
func NewService(repo Repository, enqueuer Enqueuer, logger *slog.Logger) *Service {
	return &Service{repo: repo, enqueuer: enqueuer, logger: logger}
}

// Notify stores the notification and schedules delivery. Both steps are best
// effort.
func (s *Service) Notify(ctx context.Context, n Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if err := s.repo.Insert(ctx, n); err != nil {
		s.logger.Warn("notification insert failed",
			slog.String("user_id", n.UserID),
			slog.String("title", n.Title),
			slog.Any("error", err))
		return
	}
	if s.enqueuer == nil {
		return
	}
	if err := s.enqueuer.EnqueueNotifyEmail(ctx, n.UserID, n.Title, n.Message); err != nil {
		s.logger.Warn("notification enqueue failed",
			slog.String("user_id", n.UserID),
			slog.Any("error", err))
	}
}

// ListForUser returns the user's most recent notifications.
func (s *Service) ListForUser(ctx context.Context, userID string, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	out, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("notify: list: %w", err)
	}
	return out, nil
}

// MarkRead flags one of the user's notifications as read.
func (s *Service) MarkRead(ctx context.Context, id, userID string) error {
	return s.repo.MarkRead(ctx, id, userID)
}

var _ Sink = (*Service)(nil)
