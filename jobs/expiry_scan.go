package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/profitcast/profitcast/internal/jobs"
	"github.com/profitcast/profitcast/internal/notify"
	"github.com/profitcast/profitcast/internal/shared"
	"github.com/profitcast/profitcast/internal/vault"
)

// DefaultExpiryWindow is how far ahead the scan looks for expiring
// credentials.
const DefaultExpiryWindow = 14 * 24 * time.Hour

// CredentialScanner lists credentials expiring within a window. Satisfied by
// the vault service.
type CredentialScanner interface {
	ExpiringCredentials(ctx context.Context, within time.Duration) ([]vault.CredentialSummary, error)
}

// KeyClaimer claims an idempotency key, failing with
// shared.ErrIdempotencyConflict when another run already has. Satisfied by
// shared.IdempotencyStore.
type KeyClaimer interface {
	CheckAndInsert(ctx context.Context, key, module string) error
}

// ExpiryScanHandler processes TaskVaultExpiryScan: it warns credential owners
// ahead of expiry. The idempotency store keeps repeated scans from notifying
// twice about the same credential and date.
type ExpiryScanHandler struct {
	Scanner CredentialScanner
	Sink    notify.Sink
	Idem    KeyClaimer
	Window  time.Duration
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle runs one sweep.
func (h ExpiryScanHandler) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := h.Metrics.Track(TaskVaultExpiryScan)
	return tracker.End(h.run(ctx))
}

func (h ExpiryScanHandler) run(ctx context.Context) error {
	window := h.Window
	if window <= 0 {
		window = DefaultExpiryWindow
	}
	expiring, err := h.Scanner.ExpiringCredentials(ctx, window)
	if err != nil {
		return fmt.Errorf("expiry scan: %w", err)
	}
	notified := 0
	for _, cred := range expiring {
		if cred.ExpiryDate == nil {
			continue
		}
		key := fmt.Sprintf("expiry:%s:%s", cred.ID, cred.ExpiryDate.Format("2006-01-02"))
		if err := h.Idem.CheckAndInsert(ctx, key, "vault"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				continue
			}
			return fmt.Errorf("expiry scan claim %s: %w", key, err)
		}
		h.Sink.Notify(ctx, notify.Notification{
			UserID:     cred.CreatedBy,
			Title:      "Credential expiring soon",
			Message:    fmt.Sprintf("Credential %q expires on %s.", cred.Name, cred.ExpiryDate.Format("2006-01-02")),
			Category:   "vault",
			SourceType: "credential",
			SourceID:   cred.ID,
		})
		notified++
	}
	h.Logger.Info("expiry scan complete",
		slog.Int("expiring", len(expiring)),
		slog.Int("notified", notified))
	return nil
}

// IdempotencyCleanupHandler prunes claimed keys past retention.
type IdempotencyCleanupHandler struct {
	Idem      *shared.IdempotencyStore
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// Handle runs one cleanup pass.
func (h IdempotencyCleanupHandler) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := h.Metrics.Track(TaskIdempotencyCleanup)
	retention := h.Retention
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	if err := h.Idem.Cleanup(ctx, retention); err != nil {
		return tracker.End(fmt.Errorf("idempotency cleanup: %w", err))
	}
	h.Logger.Info("idempotency cleanup complete")
	return tracker.End(nil)
}
