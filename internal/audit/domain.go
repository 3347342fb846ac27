package audit

import (
	"fmt"
	"time"
)

// Action enumerates the sensitive vault operations that produce audit entries.
type Action string

const (
	ActionCreate     Action = "create"
	ActionEdit       Action = "edit"
	ActionDelete     Action = "delete"
	ActionReveal     Action = "reveal"
	ActionCopy       Action = "copy"
	ActionBulkRevoke Action = "bulk_revoke"
)

// ParseAction validates an action string.
func ParseAction(value string) (Action, error) {
	switch Action(value) {
	case ActionCreate, ActionEdit, ActionDelete, ActionReveal, ActionCopy, ActionBulkRevoke:
		return Action(value), nil
	}
	return "", fmt.Errorf("audit: unknown action %q", value)
}

// Entry is one append-only audit record. Entries are never updated or deleted.
type Entry struct {
	ID           string    `json:"id"`
	ActorUserID  string    `json:"actor_user_id"`
	Action       Action    `json:"action"`
	CredentialID *string   `json:"credential_id,omitempty"`
	TargetUserID *string   `json:"target_user_id,omitempty"`
	Details      string    `json:"details"`
	CreatedAt    time.Time `json:"created_at"`
}
