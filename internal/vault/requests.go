package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/profitcast/profitcast/internal/notify"
	"github.com/profitcast/profitcast/internal/platform/httpx"
	"github.com/profitcast/profitcast/internal/shared"
)

// CreateAccessRequest files a request for a grant on the folder holding the
// credential. The folder's owner (or its creator when unowned) is notified.
func (s *Service) CreateAccessRequest(ctx context.Context, actor shared.Principal, req CreateAccessRequestRequest) (*AccessRequest, error) {
	cred, err := s.credential(ctx, req.CredentialID)
	if err != nil {
		return nil, err
	}
	folder, err := s.folder(ctx, cred.FolderID)
	if err != nil {
		return nil, err
	}
	request := AccessRequest{
		ID:           uuid.NewString(),
		CredentialID: cred.ID,
		RequestedBy:  actor.UserID,
		Reason:       req.Reason,
		Status:       RequestPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.CreateAccessRequest(ctx, request); err != nil {
		return nil, fmt.Errorf("vault: create access request: %w", err)
	}
	if s.sink != nil {
		recipient := folder.CreatedBy
		if folder.OwnerID != nil {
			recipient = *folder.OwnerID
		}
		s.sink.Notify(ctx, notify.Notification{
			UserID:     recipient,
			Title:      "New access request",
			Message:    fmt.Sprintf("Access to credential %q was requested.", cred.Name),
			Category:   "vault",
			SourceType: "access_request",
			SourceID:   request.ID,
		})
	}
	return &request, nil
}

// ListMyAccessRequests returns the actor's own requests, newest first.
func (s *Service) ListMyAccessRequests(ctx context.Context, actor shared.Principal) ([]AccessRequest, error) {
	return s.repo.ListRequestsByUser(ctx, actor.UserID)
}

// ListPendingAccessRequests returns the approval queue.
func (s *Service) ListPendingAccessRequests(ctx context.Context) ([]AccessRequest, error) {
	return s.repo.ListPendingRequests(ctx)
}

// ResolveAccessRequest approves or denies a pending request. A request
// resolves at most once; the losing side of a race gets a validation error.
// Approval creates the grant idempotently, so two approved requests for the
// same (user, folder) still leave exactly one grant.
func (s *Service) ResolveAccessRequest(ctx context.Context, actor shared.Principal, requestID string, approved bool) (*AccessRequest, error) {
	request, err := s.repo.GetAccessRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("access request %s: %w", requestID, httpx.ErrNotFound)
		}
		return nil, fmt.Errorf("vault: load access request: %w", err)
	}
	if request.Status != RequestPending {
		return nil, fmt.Errorf("access request %s already resolved: %w", requestID, httpx.ErrValidation)
	}

	status := RequestDenied
	if approved {
		status = RequestApproved
	}
	resolvedAt := time.Now().UTC()
	updated, err := s.repo.ResolveRequest(ctx, requestID, status, actor.UserID, resolvedAt)
	if err != nil {
		return nil, fmt.Errorf("vault: resolve access request: %w", err)
	}
	if !updated {
		return nil, fmt.Errorf("access request %s already resolved: %w", requestID, httpx.ErrValidation)
	}
	request.Status = status
	request.ResolvedBy = &actor.UserID
	request.ResolvedAt = &resolvedAt

	if approved {
		cred, err := s.credential(ctx, request.CredentialID)
		if err != nil {
			return nil, err
		}
		grant := AccessGrant{
			ID:        uuid.NewString(),
			UserID:    request.RequestedBy,
			FolderID:  cred.FolderID,
			GrantedBy: actor.UserID,
			CreatedAt: resolvedAt,
		}
		if _, err := s.repo.InsertGrant(ctx, grant); err != nil {
			return nil, fmt.Errorf("vault: grant from approval: %w", err)
		}
	}

	if s.sink != nil {
		verdict := "denied"
		if approved {
			verdict = "approved"
		}
		s.sink.Notify(ctx, notify.Notification{
			UserID:     request.RequestedBy,
			Title:      fmt.Sprintf("Access request %s", verdict),
			Message:    fmt.Sprintf("Your access request was %s.", verdict),
			Category:   "vault",
			SourceType: "access_request",
			SourceID:   request.ID,
		})
	}

	return request, nil
}
