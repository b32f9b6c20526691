package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/rabbitask/rabbitask-server-go/internal/errors"
	"github.com/rabbitask/rabbitask-server-go/internal/middleware"
	"github.com/rabbitask/rabbitask-server-go/internal/repository"
	"github.com/rabbitask/rabbitask-server-go/internal/service"
)

type UserHandler struct {
	userRepo repository.UserRepository
	authz    *service.AuthzService
}

func NewUserHandler(userRepo repository.UserRepository, authz *service.AuthzService) *UserHandler {
	return &UserHandler{userRepo: userRepo, authz: authz}
}

func (h *UserHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/me", h.Me)
	r.Get("/me/managed", h.Managed)

	return r
}

// GET /users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, appErr := middleware.RequireUserID(r.Context())
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	user, err := h.userRepo.FindByID(r.Context(), userID)
	if err != nil {
		writeError(w, apperrors.Database(err))
		return
	}
	if user == nil {
		writeError(w, apperrors.NotFound("User"))
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// GET /users/me/managed returns the ids the actor may act as.
func (h *UserHandler) Managed(w http.ResponseWriter, r *http.Request) {
	userID, appErr := middleware.RequireUserID(r.Context())
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	ids, err := h.authz.ManagedUserIDs(r.Context(), userID)
	if err != nil {
		writeError(w, apperrors.Database(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"userIds": ids})
}
