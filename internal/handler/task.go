package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/rabbitask/rabbitask-server-go/internal/errors"
	"github.com/rabbitask/rabbitask-server-go/internal/middleware"
	"github.com/rabbitask/rabbitask-server-go/internal/model"
	"github.com/rabbitask/rabbitask-server-go/internal/service"
)

type TaskHandler struct {
	taskService *service.TaskService
}

func NewTaskHandler(taskService *service.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

func (h *TaskHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/stats", h.Stats)
	r.Get("/{taskId}", h.Get)
	r.Patch("/{taskId}", h.Update)
	r.Delete("/{taskId}", h.Delete)
	r.Post("/{taskId}/complete", h.Complete)
	r.Delete("/{taskId}/complete", h.Uncomplete)
	r.Get("/{taskId}/tags", h.Tags)

	return r
}

// targetUser resolves the optional ?userId= query parameter; it
// defaults to the actor themselves.
func targetUser(r *http.Request, actorID int64) (int64, error) {
	raw := r.URL.Query().Get("userId")
	if raw == "" {
		return actorID, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func taskID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "taskId"), 10, 64)
}

// GET /tasks?userId=&limit=&offset=
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	actorID, appErr := middleware.RequireUserID(r.Context())
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	target, err := targetUser(r, actorID)
	if err != nil {
		writeError(w, apperrors.InvalidInput("userId", "must be an integer"))
		return
	}

	page := ParsePagination(r)
	list, svcErr := h.taskService.List(r.Context(), actorID, target, page.Limit, page.Offset)
	if svcErr != nil {
		writeError(w, svcErr)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

type createTaskRequest struct {
	Name        string     `json:"name"`
	Description *string    `json:"description,omitempty"`
	PriorityID  *int       `json:"priorityId,omitempty"`
	UserID      int64      `json:"userId,omitempty"`
	DueAt       *time.Time `json:"dueAt,omitempty"`
	TagIDs      []int64    `json:"tagIds,omitempty"`
}

// POST /tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, appErr := middleware.RequireUserID(r.Context())
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}

	task, err := h.taskService.Create(r.Context(), actorID, service.CreateTaskInput{
		Name:        req.Name,
		Description: req.Description,
		PriorityID:  req.PriorityID,
		UserID:      req.UserID,
		DueAt:       req.DueAt,
		TagIDs:      req.TagIDs,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

// GET /tasks/{taskId}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	actorID, appErr := middleware.RequireUserID(r.Context())
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	id, err := taskID(r)
	if err != nil {
		writeError(w, apperrors.InvalidInput("taskId", "must be an integer"))
		return
	}

	task, svcErr := h.taskService.Get(r.Context(), actorID, id)
	if svcErr != nil {
		writeError(w, svcErr)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

type updateTaskRequest struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	PriorityID  *int       `json:"priorityId,omitempty"`
	DueAt       *time.Time `json:"dueAt,omitempty"`
}

// PATCH /tasks/{taskId}
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	actorID, appErr := middleware.RequireUserID(r.Context())
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	id, err := taskID(r)
	if err != nil {
		writeError(w, apperrors.InvalidInput("taskId", "must be an integer"))
		return
	}

	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}

	task, svcErr := h.taskService.Update(r.Context(), actorID, id, model.UpdateTaskParams{
		Name:        req.Name,
		Description: req.Description,
		PriorityID:  req.PriorityID,
		DueAt:       req.DueAt,
	})
	if svcErr != nil {
		writeError(w, svcErr)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// DELETE /tasks/{taskId}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actorID, appErr := middleware.RequireUserID(r.Context())
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	id, err := taskID(r)
	if err != nil {
		writeError(w, apperrors.InvalidInput("taskId", "must be an integer"))
		return
	}

	if err := h.taskService.Delete(r.Context(), actorID, id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// POST /tasks/{taskId}/complete
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.setCompleted(w, r, true)
}

// DELETE /tasks/{taskId}/complete
func (h *TaskHandler) Uncomplete(w http.ResponseWriter, r *http.Request) {
	h.setCompleted(w, r, false)
}

func (h *TaskHandler) setCompleted(w http.ResponseWriter, r *http.Request, completed bool) {
	actorID, appErr := middleware.RequireUserID(r.Context())
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	id, err := taskID(r)
	if err != nil {
		writeError(w, apperrors.InvalidInput("taskId", "must be an integer"))
		return
	}

	task, svcErr := h.taskService.SetCompleted(r.Context(), actorID, id, completed)
	if svcErr != nil {
		writeError(w, svcErr)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// GET /tasks/stats?userId=
func (h *TaskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	actorID, appErr := middleware.RequireUserID(r.Context())
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	target, err := targetUser(r, actorID)
	if err != nil {
		writeError(w, apperrors.InvalidInput("userId", "must be an integer"))
		return
	}

	stats, svcErr := h.taskService.Stats(r.Context(), actorID, target)
	if svcErr != nil {
		writeError(w, svcErr)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// GET /tasks/{taskId}/tags
func (h *TaskHandler) Tags(w http.ResponseWriter, r *http.Request) {
	actorID, appErr := middleware.RequireUserID(r.Context())
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	id, err := taskID(r)
	if err != nil {
		writeError(w, apperrors.InvalidInput("taskId", "must be an integer"))
		return
	}

	tags, svcErr := h.taskService.Tags(r.Context(), actorID, id)
	if svcErr != nil {
		writeError(w, svcErr)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

// GET /priorities
func (h *TaskHandler) Priorities(w http.ResponseWriter, r *http.Request) {
	priorities, err := h.taskService.Priorities(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"priorities": priorities})
}
