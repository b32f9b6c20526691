package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rabbitask/rabbitask-server-go/internal/model"
)

type TaskRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Task, error)
	FindByUser(ctx context.Context, userID int64, limit, offset int) ([]model.Task, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
	Create(ctx context.Context, params model.CreateTaskParams) (*model.Task, error)
	Update(ctx context.Context, id int64, params model.UpdateTaskParams) (*model.Task, error)
	SetCompleted(ctx context.Context, id int64, completedAt *time.Time) (*model.Task, error)
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context, userID int64) (*model.TaskStats, error)
	ListTags(ctx context.Context, taskID int64) ([]model.Tag, error)
	ReplaceTags(ctx context.Context, taskID int64, tagIDs []int64) error
}

type taskRepo struct {
	db sqlxDB
}

func NewTaskRepository(db *sqlx.DB) TaskRepository {
	return &taskRepo{db: db}
}

func (r *taskRepo) FindByID(ctx context.Context, id int64) (*model.Task, error) {
	var task model.Task
	err := r.db.GetContext(ctx, &task, `
		SELECT * FROM tasks WHERE id = $1
	`, id)
	return HandleNotFound(&task, err)
}

func (r *taskRepo) FindByUser(ctx context.Context, userID int64, limit, offset int) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.SelectContext(ctx, &tasks, `
		SELECT * FROM tasks
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return tasks, err
}

func (r *taskRepo) CountByUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM tasks WHERE user_id = $1
	`, userID)
	return count, err
}

func (r *taskRepo) Create(ctx context.Context, params model.CreateTaskParams) (*model.Task, error) {
	var task model.Task
	err := r.db.GetContext(ctx, &task, `
		INSERT INTO tasks (name, description, priority_id, user_id, owner_id, due_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, params.Name, params.Description, params.PriorityID, params.UserID, params.OwnerID, params.DueAt)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepo) Update(ctx context.Context, id int64, params model.UpdateTaskParams) (*model.Task, error) {
	var task model.Task
	err := r.db.GetContext(ctx, &task, `
		UPDATE tasks SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			priority_id = COALESCE($4, priority_id),
			due_at = COALESCE($5, due_at)
		WHERE id = $1
		RETURNING *
	`, id, params.Name, params.Description, params.PriorityID, params.DueAt)
	return HandleNotFound(&task, err)
}

func (r *taskRepo) SetCompleted(ctx context.Context, id int64, completedAt *time.Time) (*model.Task, error) {
	var task model.Task
	err := r.db.GetContext(ctx, &task, `
		UPDATE tasks SET completed_at = $2 WHERE id = $1
		RETURNING *
	`, id, completedAt)
	return HandleNotFound(&task, err)
}

func (r *taskRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	return err
}

func (r *taskRepo) Stats(ctx context.Context, userID int64) (*model.TaskStats, error) {
	var stats model.TaskStats
	err := r.db.GetContext(ctx, &stats, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE completed_at IS NOT NULL) AS completed,
			COUNT(*) FILTER (WHERE completed_at IS NULL) AS pending,
			COUNT(*) FILTER (WHERE completed_at IS NULL AND due_at < NOW()) AS overdue
		FROM tasks
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *taskRepo) ListTags(ctx context.Context, taskID int64) ([]model.Tag, error) {
	var tags []model.Tag
	err := r.db.SelectContext(ctx, &tags, `
		SELECT t.id, t.name
		FROM task_tags tt
		JOIN tags t ON t.id = tt.tag_id
		WHERE tt.task_id = $1
		ORDER BY t.name
	`, taskID)
	return tags, err
}

func (r *taskRepo) ReplaceTags(ctx context.Context, taskID int64, tagIDs []int64) error {
	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM task_tags WHERE task_id = $1
	`, taskID); err != nil {
		return err
	}
	for _, tagID := range tagIDs {
		if _, err := r.db.ExecContext(ctx, `
			INSERT INTO task_tags (task_id, tag_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, taskID, tagID); err != nil {
			return err
		}
	}
	return nil
}
