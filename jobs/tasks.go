// Package jobs contains background task definitions and the Asynq worker
// plumbing: notification email fan-out, the credential expiry scan, and
// idempotency-key maintenance.
package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskNotifyEmail delivers one notification by email.
	TaskNotifyEmail = "notify:email"
	// TaskVaultExpiryScan sweeps credentials approaching their expiry date.
	TaskVaultExpiryScan = "vault:expiry_scan"
	// TaskIdempotencyCleanup prunes old idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// NotifyEmailPayload carries one notification to the email handler.
type NotifyEmailPayload struct {
	UserID  string `json:"user_id"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// NewNotifyEmailTask constructs the email delivery task.
func NewNotifyEmailTask(payload NotifyEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal notify payload: %w", err)
	}
	return asynq.NewTask(TaskNotifyEmail, data), nil
}

// NewExpiryScanTask constructs the scheduled expiry scan task. It carries no
// payload; the scan window is worker configuration.
func NewExpiryScanTask() *asynq.Task {
	return asynq.NewTask(TaskVaultExpiryScan, nil)
}

// NewIdempotencyCleanupTask constructs the maintenance task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}
