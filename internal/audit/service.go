package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// MaxQueryLimit caps how many entries a single read may return.
const MaxQueryLimit = 1000

// Service writes and reads the vault audit trail. Writes are best effort:
// a failed insert is logged and counted but never fails the operation being
// documented.
type Service struct {
	repo          Repository
	logger        *slog.Logger
	writeFailures prometheus.Counter
}

// NewService constructs the audit service. writeFailures may be nil.
func NewService(repo Repository, logger *slog.Logger, writeFailures prometheus.Counter) *Service {
	return &Service{repo: repo, logger: logger, writeFailures: writeFailures}
}

// Record appends one entry, filling ID and timestamp. It never returns an
// error to the caller; failures are surfaced as warnings and metrics only.
func (s *Service) Record(ctx context.Context, entry Entry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		if s.writeFailures != nil {
			s.writeFailures.Inc()
		}
		s.logger.Warn("audit write failed",
			slog.String("action", string(entry.Action)),
			slog.String("actor", entry.ActorUserID),
			slog.Any("error", err))
	}
}

// Query returns the most recent entries, newest first. limit is clamped to
// [1, MaxQueryLimit].
func (s *Service) Query(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}
	entries, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	return entries, nil
}
