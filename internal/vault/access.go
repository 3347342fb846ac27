package vault

import "github.com/profitcast/profitcast/internal/shared"

// Decision is the outcome of an access evaluation.
type Decision int

const (
	Deny Decision = iota
	Allow
)

// Allowed reports whether the decision permits the operation.
func (d Decision) Allowed() bool { return d == Allow }

// Evaluate decides whether the principal may read a folder's contents.
// Precedence, first match wins:
//
//  1. role level at or above super admin: global override
//  2. folder owner or creator: ownership bypass
//  3. a standing grant for (user, folder)
//  4. deny
//
// The function is pure; grant existence is resolved by the caller. Folder
// creation and credential mutation do not go through here: they use the
// coarser minimum-role-level gate regardless of ownership.
func Evaluate(p shared.Principal, folder Folder, hasGrant bool) Decision {
	if p.RoleLevel >= shared.LevelSuperAdmin {
		return Allow
	}
	if folder.OwnerID != nil && *folder.OwnerID == p.UserID {
		return Allow
	}
	if folder.CreatedBy == p.UserID {
		return Allow
	}
	if hasGrant {
		return Allow
	}
	return Deny
}
