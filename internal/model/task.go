package model

import (
	"time"
)

type Task struct {
	ID          int64      `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Description *string    `db:"description" json:"description,omitempty"`
	PriorityID  *int       `db:"priority_id" json:"priorityId,omitempty"`
	UserID      int64      `db:"user_id" json:"userId"`
	OwnerID     int64      `db:"owner_id" json:"ownerId"`
	DueAt       *time.Time `db:"due_at" json:"dueAt,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	CompletedAt *time.Time `db:"completed_at" json:"completedAt,omitempty"`
}

type CreateTaskParams struct {
	Name        string
	Description *string
	PriorityID  *int
	UserID      int64
	OwnerID     int64
	DueAt       *time.Time
}

type UpdateTaskParams struct {
	Name        *string
	Description *string
	PriorityID  *int
	DueAt       *time.Time
}

// TaskStats summarizes a single user's tasks. Overdue counts tasks past
// their due date that have not been completed.
type TaskStats struct {
	Total     int `db:"total" json:"total"`
	Completed int `db:"completed" json:"completed"`
	Pending   int `db:"pending" json:"pending"`
	Overdue   int `db:"overdue" json:"overdue"`
}

type Priority struct {
	ID   int    `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
