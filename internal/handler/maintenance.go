package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/rabbitask/rabbitask-server-go/internal/errors"
	"github.com/rabbitask/rabbitask-server-go/internal/service"
	"github.com/rabbitask/rabbitask-server-go/internal/util"
)

// MaintenanceHandler exposes the purge sweep to an external scheduler.
// Requests must carry the maintenance token; with no token configured
// the endpoint is disabled.
type MaintenanceHandler struct {
	connService *service.ConnectionService
	token       string
}

func NewMaintenanceHandler(connService *service.ConnectionService, token string) *MaintenanceHandler {
	return &MaintenanceHandler{connService: connService, token: token}
}

func (h *MaintenanceHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/purge-codes", h.PurgeCodes)

	return r
}

// POST /maintenance/purge-codes
func (h *MaintenanceHandler) PurgeCodes(w http.ResponseWriter, r *http.Request) {
	if h.token == "" {
		writeError(w, apperrors.NotFound("Endpoint"))
		return
	}
	if !util.ConstantTimeEqual(r.Header.Get("X-Maintenance-Token"), h.token) {
		writeError(w, apperrors.Unauthorized("Invalid maintenance token"))
		return
	}

	count, err := h.connService.PurgeExpired(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to purge expired connection codes")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"purged": count})
}
