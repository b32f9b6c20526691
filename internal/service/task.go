package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/rabbitask/rabbitask-server-go/internal/errors"
	"github.com/rabbitask/rabbitask-server-go/internal/model"
	"github.com/rabbitask/rabbitask-server-go/internal/repository"
)

// TaskService owns task CRUD and statistics. Every operation resolves
// the target user and asks AuthzService whether the actor may manage
// them before touching data.
type TaskService struct {
	taskRepo     repository.TaskRepository
	priorityRepo repository.PriorityRepository
	authz        *AuthzService
}

func NewTaskService(
	taskRepo repository.TaskRepository,
	priorityRepo repository.PriorityRepository,
	authz *AuthzService,
) *TaskService {
	return &TaskService{
		taskRepo:     taskRepo,
		priorityRepo: priorityRepo,
		authz:        authz,
	}
}

type TaskList struct {
	Tasks  []model.Task `json:"tasks"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

type CreateTaskInput struct {
	Name        string
	Description *string
	PriorityID  *int
	UserID      int64 // assignee; zero means the actor themselves
	DueAt       *time.Time
	TagIDs      []int64
}

func (s *TaskService) guard(ctx context.Context, actorID, targetID int64) error {
	allowed, err := s.authz.CanManage(ctx, actorID, targetID)
	if err != nil {
		return apperrors.Database(err)
	}
	if !allowed {
		return apperrors.Forbidden("You cannot manage this user's tasks")
	}
	return nil
}

func (s *TaskService) List(ctx context.Context, actorID, targetID int64, limit, offset int) (*TaskList, error) {
	if err := s.guard(ctx, actorID, targetID); err != nil {
		return nil, err
	}

	tasks, err := s.taskRepo.FindByUser(ctx, targetID, limit, offset)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	total, err := s.taskRepo.CountByUser(ctx, targetID)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	return &TaskList{Tasks: tasks, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *TaskService) Get(ctx context.Context, actorID, taskID int64) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if task == nil {
		return nil, apperrors.NotFound("Task")
	}
	if err := s.guard(ctx, actorID, task.UserID); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) Create(ctx context.Context, actorID int64, input CreateTaskInput) (*model.Task, error) {
	if input.Name == "" {
		return nil, apperrors.MissingRequired("name")
	}

	targetID := input.UserID
	if targetID == 0 {
		targetID = actorID
	}
	if err := s.guard(ctx, actorID, targetID); err != nil {
		return nil, err
	}

	if input.PriorityID != nil {
		known, err := s.priorityRepo.Exists(ctx, *input.PriorityID)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if !known {
			return nil, apperrors.InvalidInput("priorityId", "unknown priority")
		}
	}

	task, err := s.taskRepo.Create(ctx, model.CreateTaskParams{
		Name:        input.Name,
		Description: input.Description,
		PriorityID:  input.PriorityID,
		UserID:      targetID,
		OwnerID:     actorID,
		DueAt:       input.DueAt,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	if len(input.TagIDs) > 0 {
		if err := s.taskRepo.ReplaceTags(ctx, task.ID, input.TagIDs); err != nil {
			return nil, apperrors.Database(err)
		}
	}

	log.Info().
		Int64("taskId", task.ID).
		Int64("userId", task.UserID).
		Int64("ownerId", task.OwnerID).
		Msg("task created")

	return task, nil
}

func (s *TaskService) Update(ctx context.Context, actorID, taskID int64, params model.UpdateTaskParams) (*model.Task, error) {
	if _, err := s.Get(ctx, actorID, taskID); err != nil {
		return nil, err
	}

	task, err := s.taskRepo.Update(ctx, taskID, params)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if task == nil {
		return nil, apperrors.NotFound("Task")
	}
	return task, nil
}

func (s *TaskService) SetCompleted(ctx context.Context, actorID, taskID int64, completed bool) (*model.Task, error) {
	if _, err := s.Get(ctx, actorID, taskID); err != nil {
		return nil, err
	}

	var completedAt *time.Time
	if completed {
		now := time.Now()
		completedAt = &now
	}

	task, err := s.taskRepo.SetCompleted(ctx, taskID, completedAt)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if task == nil {
		return nil, apperrors.NotFound("Task")
	}
	return task, nil
}

func (s *TaskService) Delete(ctx context.Context, actorID, taskID int64) error {
	if _, err := s.Get(ctx, actorID, taskID); err != nil {
		return err
	}
	if err := s.taskRepo.Delete(ctx, taskID); err != nil {
		return apperrors.Database(err)
	}
	log.Info().Int64("taskId", taskID).Msg("task deleted")
	return nil
}

func (s *TaskService) Stats(ctx context.Context, actorID, targetID int64) (*model.TaskStats, error) {
	if err := s.guard(ctx, actorID, targetID); err != nil {
		return nil, err
	}
	stats, err := s.taskRepo.Stats(ctx, targetID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return stats, nil
}

func (s *TaskService) Tags(ctx context.Context, actorID, taskID int64) ([]model.Tag, error) {
	if _, err := s.Get(ctx, actorID, taskID); err != nil {
		return nil, err
	}
	tags, err := s.taskRepo.ListTags(ctx, taskID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return tags, nil
}

func (s *TaskService) Priorities(ctx context.Context) ([]model.Priority, error) {
	priorities, err := s.priorityRepo.FindAll(ctx)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return priorities, nil
}
