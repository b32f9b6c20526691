package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/rabbitask/rabbitask-server-go/internal/model"
)

type TagRepository interface {
	FindAll(ctx context.Context, nameFilter string) ([]model.Tag, error)
	FindByID(ctx context.Context, id int64) (*model.Tag, error)
	FindByName(ctx context.Context, name string) (*model.Tag, error)
	Create(ctx context.Context, name string) (*model.Tag, error)
}

type tagRepo struct {
	db sqlxDB
}

func NewTagRepository(db *sqlx.DB) TagRepository {
	return &tagRepo{db: db}
}

func (r *tagRepo) FindAll(ctx context.Context, nameFilter string) ([]model.Tag, error) {
	var tags []model.Tag
	if nameFilter == "" {
		err := r.db.SelectContext(ctx, &tags, `
			SELECT * FROM tags ORDER BY name
		`)
		return tags, err
	}
	err := r.db.SelectContext(ctx, &tags, `
		SELECT * FROM tags
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY name
	`, nameFilter)
	return tags, err
}

func (r *tagRepo) FindByID(ctx context.Context, id int64) (*model.Tag, error) {
	var tag model.Tag
	err := r.db.GetContext(ctx, &tag, `
		SELECT * FROM tags WHERE id = $1
	`, id)
	return HandleNotFound(&tag, err)
}

func (r *tagRepo) FindByName(ctx context.Context, name string) (*model.Tag, error) {
	var tag model.Tag
	err := r.db.GetContext(ctx, &tag, `
		SELECT * FROM tags WHERE lower(name) = lower($1)
	`, name)
	return HandleNotFound(&tag, err)
}

func (r *tagRepo) Create(ctx context.Context, name string) (*model.Tag, error) {
	var tag model.Tag
	err := r.db.GetContext(ctx, &tag, `
		INSERT INTO tags (name) VALUES ($1)
		RETURNING *
	`, name)
	if err != nil {
		return nil, err
	}
	return &tag, nil
}
