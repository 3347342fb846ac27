package vault

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/profitcast/profitcast/internal/identity"
	"github.com/profitcast/profitcast/internal/platform/httpx"
	"github.com/profitcast/profitcast/internal/shared"
)

// Handler exposes the vault HTTP surface: folders, credentials, grants, and
// the access-request workflow.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	auth     identity.Authenticator
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service, auth identity.Authenticator) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		auth:     auth,
		validate: validator.New(),
	}
}

// MountRoutes attaches vault routes. The caller mounts this under an
// authenticated group; mutations additionally require manager level.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/folders", h.listFolders)
	r.Get("/folders/{folderID}/credentials", h.listFolderCredentials)
	r.Get("/credentials/{id}", h.getCredential)
	r.Post("/credentials/{id}/copy", h.copyCredential)

	r.Group(func(r chi.Router) {
		// Reveal is the hottest target for abuse; throttle it per client.
		r.Use(httprate.Limit(30, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Post("/credentials/{id}/reveal", h.revealCredential)
	})

	r.Post("/access-requests", h.createAccessRequest)
	r.Get("/access-requests/mine", h.listMyAccessRequests)

	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireLevel(shared.LevelManager))
		r.Post("/folders", h.createFolder)
		r.Get("/folders/{folderID}/grants", h.listFolderGrants)
		r.Post("/folders/{folderID}/grants", h.grantAccess)
		r.Delete("/folders/{folderID}/grants/{userID}", h.revokeAccess)
		r.Post("/credentials", h.createCredential)
		r.Put("/credentials/{id}", h.updateCredential)
		r.Delete("/credentials/{id}", h.deleteCredential)
		r.Get("/access-requests/pending", h.listPendingAccessRequests)
		r.Post("/access-requests/{id}/resolve", h.resolveAccessRequest)
	})
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (shared.Principal, bool) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
	}
	return principal, ok
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) createFolder(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req CreateFolderRequest
	if !h.decode(w, r, &req) {
		return
	}
	folder, err := h.service.CreateFolder(r.Context(), principal, req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, folder)
}

func (h *Handler) listFolders(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	folders, err := h.service.ListFolders(r.Context(), principal)
	if err != nil {
		h.logger.Error("list folders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, folders)
}

func (h *Handler) listFolderCredentials(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	creds, err := h.service.ListFolderCredentials(r.Context(), principal, chi.URLParam(r, "folderID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, creds)
}

func (h *Handler) createCredential(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req CreateCredentialRequest
	if !h.decode(w, r, &req) {
		return
	}
	summary, err := h.service.CreateCredential(r.Context(), principal, req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, summary)
}

func (h *Handler) getCredential(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	summary, err := h.service.GetCredential(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) revealCredential(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	password, err := h.service.RevealCredential(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, RevealResponse{Password: password})
}

func (h *Handler) copyCredential(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	if err := h.service.RecordCopy(r.Context(), principal, chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "copy recorded"})
}

func (h *Handler) updateCredential(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req UpdateCredentialRequest
	if !h.decode(w, r, &req) {
		return
	}
	summary, err := h.service.UpdateCredential(r.Context(), principal, chi.URLParam(r, "id"), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) deleteCredential(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteCredential(r.Context(), principal, chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "credential deleted"})
}

func (h *Handler) grantAccess(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req GrantRequest
	if !h.decode(w, r, &req) {
		return
	}
	grant, created, err := h.service.GrantAccess(r.Context(), principal, chi.URLParam(r, "folderID"), req.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	// A repeated grant returns the standing record, not a new one.
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, grant)
}

func (h *Handler) revokeAccess(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	err := h.service.RevokeAccess(r.Context(), principal, chi.URLParam(r, "folderID"), chi.URLParam(r, "userID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "access revoked"})
}

func (h *Handler) listFolderGrants(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	grants, err := h.service.ListFolderGrants(r.Context(), principal, chi.URLParam(r, "folderID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, grants)
}

func (h *Handler) createAccessRequest(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req CreateAccessRequestRequest
	if !h.decode(w, r, &req) {
		return
	}
	request, err := h.service.CreateAccessRequest(r.Context(), principal, req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, request)
}

func (h *Handler) listMyAccessRequests(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	requests, err := h.service.ListMyAccessRequests(r.Context(), principal)
	if err != nil {
		h.logger.Error("list access requests", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, requests)
}

func (h *Handler) listPendingAccessRequests(w http.ResponseWriter, r *http.Request) {
	_, ok := h.principal(w, r)
	if !ok {
		return
	}
	requests, err := h.service.ListPendingAccessRequests(r.Context())
	if err != nil {
		h.logger.Error("list pending access requests", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, requests)
}

func (h *Handler) resolveAccessRequest(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req ResolveAccessRequestRequest
	if !h.decode(w, r, &req) {
		return
	}
	request, err := h.service.ResolveAccessRequest(r.Context(), principal, chi.URLParam(r, "id"), *req.Approved)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, request)
}
