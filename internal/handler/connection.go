package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rabbitask/rabbitask-server-go/internal/audit"
	apperrors "github.com/rabbitask/rabbitask-server-go/internal/errors"
	"github.com/rabbitask/rabbitask-server-go/internal/middleware"
	"github.com/rabbitask/rabbitask-server-go/internal/service"
)

type ConnectionHandler struct {
	connService *service.ConnectionService
	authz       *service.AuthzService
}

func NewConnectionHandler(connService *service.ConnectionService, authz *service.AuthzService) *ConnectionHandler {
	return &ConnectionHandler{connService: connService, authz: authz}
}

func (h *ConnectionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/code", h.CreateCode)
	r.Post("/redeem", h.RedeemCode)
	r.Get("/", h.List)
	r.Delete("/{userId}", h.Disconnect)

	return r
}

// POST /connections/code lets the authenticated standard user request a
// pairing code to hand to an agent out-of-band.
func (h *ConnectionHandler) CreateCode(w http.ResponseWriter, r *http.Request) {
	userID, appErr := middleware.RequireUserID(r.Context())
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	if allowed, resetAt := h.connService.CheckCodeGenerationLimit(r.Context(), userID); !allowed {
		audit.LogFromRequest(r, audit.Event{Type: audit.EventRateLimitExceed, UserID: userID})
		writeError(w, apperrors.RateLimitExceeded().WithDetails(map[string]any{
			"resetAt": resetAt,
		}))
		return
	}

	code, err := h.connService.CreateCode(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventCodeGenerate, UserID: userID})
	writeJSON(w, http.StatusCreated, map[string]any{
		"code":      code.Code,
		"expiresAt": code.ExpiresAt,
	})
}

type redeemRequest struct {
	Code string `json:"code"`
}

// POST /connections/redeem lets the authenticated agent submit a code it
// received from a standard user.
func (h *ConnectionHandler) RedeemCode(w http.ResponseWriter, r *http.Request) {
	agentID, appErr := middleware.RequireUserID(r.Context())
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}
	if req.Code == "" {
		writeError(w, apperrors.MissingRequired("code"))
		return
	}

	owner, err := h.connService.RedeemCode(r.Context(), req.Code, agentID)
	if err != nil {
		audit.LogFromRequest(r, audit.Event{Type: audit.EventCodeRedeemFailure, UserID: agentID})
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventCodeRedeem, UserID: agentID, TargetID: owner.ID})
	writeJSON(w, http.StatusOK, owner)
}

// GET /connections lists edges: agents see their managed users; standard users see
// their connected agents.
func (h *ConnectionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, appErr := middleware.RequireUserID(r.Context())
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	isAgent, err := h.authz.IsAgent(r.Context(), userID)
	if err != nil {
		writeError(w, apperrors.Database(err))
		return
	}

	if isAgent {
		users, err := h.connService.ListManagedUsers(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users})
		return
	}

	agents, err := h.connService.ListAgents(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": agents})
}

// DELETE /connections/{userId}
func (h *ConnectionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	actorID, appErr := middleware.RequireUserID(r.Context())
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	otherID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		writeError(w, apperrors.InvalidInput("userId", "must be an integer"))
		return
	}

	if err := h.connService.Disconnect(r.Context(), actorID, otherID); err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventConnectionRemoved, UserID: actorID, TargetID: otherID})
	w.WriteHeader(http.StatusNoContent)
}
