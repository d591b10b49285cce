package leads

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/lead-intake/pkg/logging"
)

// Handler serves the admin lead lookup linked from notification emails.
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

// NewHandler creates a new leads handler
func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if repo == nil {
		panic("leads: repository cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

// GetLead handles GET /admin/leads/{leadID} requests
func (h *Handler) GetLead(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")
	if leadID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing lead id"})
		return
	}

	lead, err := h.repo.GetByID(r.Context(), leadID)
	if err != nil {
		if errors.Is(err, ErrLeadNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "lead not found"})
			return
		}
		h.logger.Error("failed to load lead", "error", err, "lead_id", leadID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load lead"})
		return
	}

	writeJSON(w, http.StatusOK, lead)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
