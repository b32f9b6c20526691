package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/rabbitask/rabbitask-server-go/internal/model"
)

// PriorityRepository reads the fixed priority lookup table.
type PriorityRepository interface {
	FindAll(ctx context.Context) ([]model.Priority, error)
	Exists(ctx context.Context, id int) (bool, error)
}

type priorityRepo struct {
	db sqlxDB
}

func NewPriorityRepository(db *sqlx.DB) PriorityRepository {
	return &priorityRepo{db: db}
}

func (r *priorityRepo) FindAll(ctx context.Context) ([]model.Priority, error) {
	var priorities []model.Priority
	err := r.db.SelectContext(ctx, &priorities, `
		SELECT * FROM priorities ORDER BY id
	`)
	return priorities, err
}

func (r *priorityRepo) Exists(ctx context.Context, id int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM priorities WHERE id = $1)
	`, id)
	return exists, err
}
