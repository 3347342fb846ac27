package vault

import (
	"bytes"
	"context"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/profitcast/profitcast/internal/audit"
	"github.com/profitcast/profitcast/internal/notify"
	"github.com/profitcast/profitcast/internal/platform/httpx"
	"github.com/profitcast/profitcast/internal/shared"
	"github.com/profitcast/profitcast/internal/vault/cipher"
)

type memoryRepo struct {
	folders  map[string]Folder
	creds    map[string]Credential
	grants   map[string]AccessGrant // keyed by userID+"/"+folderID
	requests map[string]AccessRequest
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		folders:  make(map[string]Folder),
		creds:    make(map[string]Credential),
		grants:   make(map[string]AccessGrant),
		requests: make(map[string]AccessRequest),
	}
}

func grantKey(userID, folderID string) string { return userID + "/" + folderID }

func (r *memoryRepo) CreateFolder(ctx context.Context, f Folder) error {
	r.folders[f.ID] = f
	return nil
}

func (r *memoryRepo) GetFolder(ctx context.Context, id string) (*Folder, error) {
	f, ok := r.folders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &f, nil
}

func (r *memoryRepo) ListFoldersForUser(ctx context.Context, userID string) ([]Folder, error) {
	out := make([]Folder, 0)
	for _, f := range r.folders {
		owned := f.OwnerID != nil && *f.OwnerID == userID
		_, granted := r.grants[grantKey(userID, f.ID)]
		if owned || f.CreatedBy == userID || granted {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) ListAllFolders(ctx context.Context) ([]Folder, error) {
	out := make([]Folder, 0, len(r.folders))
	for _, f := range r.folders {
		out = append(out, f)
	}
	return out, nil
}

func (r *memoryRepo) CreateCredential(ctx context.Context, c Credential) error {
	r.creds[c.ID] = c
	return nil
}

func (r *memoryRepo) GetCredential(ctx context.Context, id string) (*Credential, error) {
	c, ok := r.creds[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &c, nil
}

func (r *memoryRepo) ListCredentialSummaries(ctx context.Context, folderID string) ([]CredentialSummary, error) {
	out := make([]CredentialSummary, 0)
	for _, c := range r.creds {
		if c.FolderID == folderID {
			out = append(out, c.Summary())
		}
	}
	return out, nil
}

func (r *memoryRepo) UpdateCredential(ctx context.Context, c Credential) error {
	if _, ok := r.creds[c.ID]; !ok {
		return shared.ErrNotFound
	}
	r.creds[c.ID] = c
	return nil
}

func (r *memoryRepo) DeleteCredential(ctx context.Context, id string) error {
	if _, ok := r.creds[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.creds, id)
	return nil
}

func (r *memoryRepo) ListExpiring(ctx context.Context, before time.Time) ([]CredentialSummary, error) {
	out := make([]CredentialSummary, 0)
	for _, c := range r.creds {
		if c.ExpiryDate != nil && !c.ExpiryDate.After(before) {
			out = append(out, c.Summary())
		}
	}
	return out, nil
}

func (r *memoryRepo) InsertGrant(ctx context.Context, g AccessGrant) (bool, error) {
	key := grantKey(g.UserID, g.FolderID)
	if _, ok := r.grants[key]; ok {
		return false, nil
	}
	r.grants[key] = g
	return true, nil
}

func (r *memoryRepo) GetGrant(ctx context.Context, userID, folderID string) (*AccessGrant, error) {
	g, ok := r.grants[grantKey(userID, folderID)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &g, nil
}

func (r *memoryRepo) DeleteGrant(ctx context.Context, userID, folderID string) error {
	key := grantKey(userID, folderID)
	if _, ok := r.grants[key]; !ok {
		return shared.ErrNotFound
	}
	delete(r.grants, key)
	return nil
}

func (r *memoryRepo) DeleteGrantsForUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	for key, g := range r.grants {
		if g.UserID == userID {
			delete(r.grants, key)
			n++
		}
	}
	return n, nil
}

func (r *memoryRepo) HasGrant(ctx context.Context, userID, folderID string) (bool, error) {
	_, ok := r.grants[grantKey(userID, folderID)]
	return ok, nil
}

func (r *memoryRepo) ListGrantsForFolder(ctx context.Context, folderID string) ([]AccessGrant, error) {
	out := make([]AccessGrant, 0)
	for _, g := range r.grants {
		if g.FolderID == folderID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *memoryRepo) CreateAccessRequest(ctx context.Context, req AccessRequest) error {
	r.requests[req.ID] = req
	return nil
}

func (r *memoryRepo) GetAccessRequest(ctx context.Context, id string) (*AccessRequest, error) {
	req, ok := r.requests[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &req, nil
}

func (r *memoryRepo) ListRequestsByUser(ctx context.Context, userID string) ([]AccessRequest, error) {
	out := make([]AccessRequest, 0)
	for _, req := range r.requests {
		if req.RequestedBy == userID {
			out = append(out, req)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListPendingRequests(ctx context.Context) ([]AccessRequest, error) {
	out := make([]AccessRequest, 0)
	for _, req := range r.requests {
		if req.Status == RequestPending {
			out = append(out, req)
		}
	}
	return out, nil
}

func (r *memoryRepo) ResolveRequest(ctx context.Context, id string, status RequestStatus, resolvedBy string, resolvedAt time.Time) (bool, error) {
	req, ok := r.requests[id]
	if !ok || req.Status != RequestPending {
		return false, nil
	}
	req.Status = status
	req.ResolvedBy = &resolvedBy
	req.ResolvedAt = &resolvedAt
	r.requests[id] = req
	return true, nil
}

type recordingAuditor struct {
	entries []audit.Entry
}

func (a *recordingAuditor) Record(ctx context.Context, e audit.Entry) {
	a.entries = append(a.entries, e)
}

func (a *recordingAuditor) byAction(action audit.Action) []audit.Entry {
	out := make([]audit.Entry, 0)
	for _, e := range a.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type recordingSink struct {
	sent []notify.Notification
}

func (s *recordingSink) Notify(ctx context.Context, n notify.Notification) {
	s.sent = append(s.sent, n)
}

func testVault(t *testing.T) (*Service, *memoryRepo, *recordingAuditor, *recordingSink) {
	t.Helper()
	engine, err := cipher.New(bytes.Repeat([]byte{0x42}, cipher.KeySize))
	require.NoError(t, err)
	repo := newMemoryRepo()
	auditor := &recordingAuditor{}
	sink := &recordingSink{}
	svc := NewService(repo, engine, auditor, sink, slog.Default(), nil)
	return svc, repo, auditor, sink
}

var (
	manager  = shared.Principal{UserID: "user-manager", Role: "manager", RoleLevel: shared.LevelManager}
	employee = shared.Principal{UserID: "user-employee", Role: "employee", RoleLevel: shared.LevelEmployee}
	admin    = shared.Principal{UserID: "user-admin", Role: "super_admin", RoleLevel: shared.LevelSuperAdmin}
)

func seedFolder(t *testing.T, svc *Service) *Folder {
	t.Helper()
	folder, err := svc.CreateFolder(context.Background(), manager, CreateFolderRequest{
		Name:       "Client X",
		FolderType: "client",
	})
	require.NoError(t, err)
	return folder
}

func seedCredential(t *testing.T, svc *Service, folderID, password string) *CredentialSummary {
	t.Helper()
	username := "svc-account"
	summary, err := svc.CreateCredential(context.Background(), manager, CreateCredentialRequest{
		FolderID: folderID,
		Name:     "Staging DB",
		Username: &username,
		Password: password,
	})
	require.NoError(t, err)
	return summary
}

func TestCreateFolderRejectsUnknownType(t *testing.T) {
	svc, _, _, _ := testVault(t)
	_, err := svc.CreateFolder(context.Background(), manager, CreateFolderRequest{
		Name:       "Misc",
		FolderType: "shared-drive",
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestPersonalFolderDefaultsOwner(t *testing.T) {
	svc, repo, _, _ := testVault(t)
	folder, err := svc.CreateFolder(context.Background(), manager, CreateFolderRequest{
		Name:       "Mine",
		FolderType: "personal",
	})
	require.NoError(t, err)
	stored := repo.folders[folder.ID]
	require.NotNil(t, stored.OwnerID)
	require.Equal(t, manager.UserID, *stored.OwnerID)
}

func TestCredentialNeverLeavesMasked(t *testing.T) {
	svc, _, _, _ := testVault(t)
	folder := seedFolder(t, svc)
	created := seedCredential(t, svc, folder.ID, "hunter2")

	// The stored envelope never matches the plaintext.
	require.NotContains(t, created.Name, "hunter2")

	listed, err := svc.ListFolderCredentials(context.Background(), manager, folder.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	got, err := svc.GetCredential(context.Background(), manager, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
	require.Equal(t, "Staging DB", got.Name)
}

func TestStoredSecretIsEncrypted(t *testing.T) {
	svc, repo, _, _ := testVault(t)
	folder := seedFolder(t, svc)
	created := seedCredential(t, svc, folder.ID, "hunter2")

	stored := repo.creds[created.ID]
	require.NotEmpty(t, stored.EncryptedSecret)
	require.NotEmpty(t, stored.Nonce)
	require.NotContains(t, stored.EncryptedSecret, "hunter2")
}

func TestRevealRequiresAccess(t *testing.T) {
	svc, _, auditor, _ := testVault(t)
	folder := seedFolder(t, svc)
	created := seedCredential(t, svc, folder.ID, "hunter2")

	_, err := svc.RevealCredential(context.Background(), employee, created.ID)
	require.ErrorIs(t, err, httpx.ErrForbidden)
	require.Empty(t, auditor.byAction(audit.ActionReveal))
}

func TestRevealAuditsExactlyOnce(t *testing.T) {
	svc, _, auditor, _ := testVault(t)
	folder := seedFolder(t, svc)
	created := seedCredential(t, svc, folder.ID, "hunter2")

	password, err := svc.RevealCredential(context.Background(), manager, created.ID)
	require.NoError(t, err)
	require.Equal(t, "hunter2", password)

	reveals := auditor.byAction(audit.ActionReveal)
	require.Len(t, reveals, 1)
	require.Equal(t, manager.UserID, reveals[0].ActorUserID)
	require.Equal(t, created.ID, *reveals[0].CredentialID)
}

func TestRevealTamperedCiphertext(t *testing.T) {
	svc, repo, auditor, _ := testVault(t)
	folder := seedFolder(t, svc)
	created := seedCredential(t, svc, folder.ID, "hunter2")

	stored := repo.creds[created.ID]
	stored.Nonce = stored.EncryptedSecret[:16] // wrong nonce material
	repo.creds[created.ID] = stored

	_, err := svc.RevealCredential(context.Background(), manager, created.ID)
	require.ErrorIs(t, err, httpx.ErrCrypto)
	require.Empty(t, auditor.byAction(audit.ActionReveal))
}

func TestAccessRequestFlow(t *testing.T) {
	svc, repo, auditor, sink := testVault(t)
	folder := seedFolder(t, svc)
	created := seedCredential(t, svc, folder.ID, "hunter2")

	request, err := svc.CreateAccessRequest(context.Background(), employee, CreateAccessRequestRequest{
		CredentialID: created.ID,
		Reason:       "need the staging DB for the migration",
	})
	require.NoError(t, err)
	require.Equal(t, RequestPending, request.Status)

	// The folder creator hears about the request.
	require.Len(t, sink.sent, 1)
	require.Equal(t, manager.UserID, sink.sent[0].UserID)

	resolved, err := svc.ResolveAccessRequest(context.Background(), manager, request.ID, true)
	require.NoError(t, err)
	require.Equal(t, RequestApproved, resolved.Status)
	require.Equal(t, manager.UserID, *resolved.ResolvedBy)

	// The grant now exists and the requester can reveal.
	has, err := repo.HasGrant(context.Background(), employee.UserID, folder.ID)
	require.NoError(t, err)
	require.True(t, has)

	password, err := svc.RevealCredential(context.Background(), employee, created.ID)
	require.NoError(t, err)
	require.Equal(t, "hunter2", password)
	require.Len(t, auditor.byAction(audit.ActionReveal), 1)

	// The requester was told about the outcome.
	require.Equal(t, employee.UserID, sink.sent[len(sink.sent)-1].UserID)
}

func TestResolveTwiceFails(t *testing.T) {
	svc, _, _, _ := testVault(t)
	folder := seedFolder(t, svc)
	created := seedCredential(t, svc, folder.ID, "hunter2")

	request, err := svc.CreateAccessRequest(context.Background(), employee, CreateAccessRequestRequest{
		CredentialID: created.ID,
		Reason:       "first",
	})
	require.NoError(t, err)

	_, err = svc.ResolveAccessRequest(context.Background(), manager, request.ID, false)
	require.NoError(t, err)

	_, err = svc.ResolveAccessRequest(context.Background(), manager, request.ID, true)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestDuplicateApprovalsLeaveOneGrant(t *testing.T) {
	svc, repo, _, _ := testVault(t)
	folder := seedFolder(t, svc)
	created := seedCredential(t, svc, folder.ID, "hunter2")

	for _, reason := range []string{"first", "second"} {
		request, err := svc.CreateAccessRequest(context.Background(), employee, CreateAccessRequestRequest{
			CredentialID: created.ID,
			Reason:       reason,
		})
		require.NoError(t, err)
		_, err = svc.ResolveAccessRequest(context.Background(), manager, request.ID, true)
		require.NoError(t, err)
	}

	grants, err := repo.ListGrantsForFolder(context.Background(), folder.ID)
	require.NoError(t, err)
	require.Len(t, grants, 1)
}

func TestGrantIdempotentAndNotifiesOnce(t *testing.T) {
	svc, _, _, sink := testVault(t)
	folder := seedFolder(t, svc)

	_, created, err := svc.GrantAccess(context.Background(), manager, folder.ID, employee.UserID)
	require.NoError(t, err)
	require.True(t, created)
	_, created, err = svc.GrantAccess(context.Background(), manager, folder.ID, employee.UserID)
	require.NoError(t, err)
	require.False(t, created)

	require.Len(t, sink.sent, 1)
	require.Equal(t, employee.UserID, sink.sent[0].UserID)
}

func TestDuplicateGrantReturnsStandingGrant(t *testing.T) {
	svc, _, _, _ := testVault(t)
	folder := seedFolder(t, svc)

	first, created, err := svc.GrantAccess(context.Background(), manager, folder.ID, employee.UserID)
	require.NoError(t, err)
	require.True(t, created)

	// The repeat hands back the stored grant, never a freshly minted id.
	second, created, err := svc.GrantAccess(context.Background(), admin, folder.ID, employee.UserID)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, manager.UserID, second.GrantedBy)
}

func TestRevokeAllGrantsSingleAuditEntry(t *testing.T) {
	svc, repo, auditor, _ := testVault(t)
	folderA := seedFolder(t, svc)
	folderB, err := svc.CreateFolder(context.Background(), manager, CreateFolderRequest{
		Name:       "Client Y",
		FolderType: "client",
	})
	require.NoError(t, err)

	_, _, err = svc.GrantAccess(context.Background(), manager, folderA.ID, employee.UserID)
	require.NoError(t, err)
	_, _, err = svc.GrantAccess(context.Background(), manager, folderB.ID, employee.UserID)
	require.NoError(t, err)

	count, err := svc.RevokeAllGrants(context.Background(), admin, employee.UserID)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	require.Empty(t, repo.grants)

	sweeps := auditor.byAction(audit.ActionBulkRevoke)
	require.Len(t, sweeps, 1)
	require.Equal(t, employee.UserID, *sweeps[0].TargetUserID)
}

func TestCopyAuditsExactlyOnce(t *testing.T) {
	svc, _, auditor, _ := testVault(t)
	folder := seedFolder(t, svc)
	created := seedCredential(t, svc, folder.ID, "hunter2")
	require.Len(t, auditor.byAction(audit.ActionCreate), 1)

	require.NoError(t, svc.RecordCopy(context.Background(), manager, created.ID))

	copies := auditor.byAction(audit.ActionCopy)
	require.Len(t, copies, 1)
	require.Equal(t, manager.UserID, copies[0].ActorUserID)
	require.Equal(t, created.ID, *copies[0].CredentialID)
}

func TestCopyRequiresAccess(t *testing.T) {
	svc, _, auditor, _ := testVault(t)
	folder := seedFolder(t, svc)
	created := seedCredential(t, svc, folder.ID, "hunter2")

	err := svc.RecordCopy(context.Background(), employee, created.ID)
	require.ErrorIs(t, err, httpx.ErrForbidden)
	require.Empty(t, auditor.byAction(audit.ActionCopy))
}

func TestCreateCredentialRejectsMalformedExpiry(t *testing.T) {
	svc, _, _, _ := testVault(t)
	folder := seedFolder(t, svc)

	expiry := "31-12-2026"
	_, err := svc.CreateCredential(context.Background(), manager, CreateCredentialRequest{
		FolderID:   folder.ID,
		Name:       "Staging DB",
		Password:   "pw",
		ExpiryDate: &expiry,
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestUpdateRotatesEnvelope(t *testing.T) {
	svc, repo, auditor, _ := testVault(t)
	folder := seedFolder(t, svc)
	created := seedCredential(t, svc, folder.ID, "hunter2")
	before := repo.creds[created.ID]

	_, err := svc.UpdateCredential(context.Background(), manager, created.ID, UpdateCredentialRequest{
		Name:     "Staging DB",
		Password: "hunter2",
	})
	require.NoError(t, err)

	after := repo.creds[created.ID]
	require.NotEqual(t, before.Nonce, after.Nonce)
	require.NotEqual(t, before.EncryptedSecret, after.EncryptedSecret)
	require.Len(t, auditor.byAction(audit.ActionEdit), 1)

	password, err := svc.RevealCredential(context.Background(), manager, created.ID)
	require.NoError(t, err)
	require.Equal(t, "hunter2", password)
}

func TestDeleteCredentialAudits(t *testing.T) {
	svc, _, auditor, _ := testVault(t)
	folder := seedFolder(t, svc)
	created := seedCredential(t, svc, folder.ID, "hunter2")

	require.NoError(t, svc.DeleteCredential(context.Background(), manager, created.ID))
	require.Len(t, auditor.byAction(audit.ActionDelete), 1)

	_, err := svc.GetCredential(context.Background(), manager, created.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestSuperAdminSeesEverything(t *testing.T) {
	svc, _, _, _ := testVault(t)
	folder := seedFolder(t, svc)
	created := seedCredential(t, svc, folder.ID, "hunter2")

	password, err := svc.RevealCredential(context.Background(), admin, created.ID)
	require.NoError(t, err)
	require.Equal(t, "hunter2", password)

	folders, err := svc.ListFolders(context.Background(), admin)
	require.NoError(t, err)
	require.Len(t, folders, 1)
}

func TestExpiringCredentialsWindow(t *testing.T) {
	svc, _, _, _ := testVault(t)
	folder := seedFolder(t, svc)

	soon := time.Now().UTC().Add(5 * 24 * time.Hour).Format("2006-01-02")
	far := time.Now().UTC().Add(90 * 24 * time.Hour).Format("2006-01-02")
	for name, expiry := range map[string]string{"Soon": soon, "Far": far} {
		_, err := svc.CreateCredential(context.Background(), manager, CreateCredentialRequest{
			FolderID:   folder.ID,
			Name:       name,
			Password:   "pw",
			ExpiryDate: &expiry,
		})
		require.NoError(t, err)
	}

	expiring, err := svc.ExpiringCredentials(context.Background(), 14*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	require.Equal(t, "Soon", expiring[0].Name)
}
