package audit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/profitcast/profitcast/internal/platform/httpx"
)

// Handler exposes the audit log read endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes attaches audit routes. The caller is expected to gate the group
// at managing-director level and above.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/audit-log", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > MaxQueryLimit {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "limit must be between 1 and 1000")
			return
		}
		limit = parsed
	}

	entries, err := h.service.Query(r.Context(), limit)
	if err != nil {
		h.logger.Error("audit query", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	httpx.JSON(w, http.StatusOK, entries)
}
