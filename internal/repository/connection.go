package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/rabbitask/rabbitask-server-go/internal/model"
)

// ConnectionRepository stores the directed agent -> standard-user
// management edges.
type ConnectionRepository interface {
	Create(ctx context.Context, agentID, userID int64) error
	Exists(ctx context.Context, agentID, userID int64) (bool, error)
	Delete(ctx context.Context, agentID, userID int64) (bool, error)
	ListUserIDsByAgent(ctx context.Context, agentID int64) ([]int64, error)
	ListUsersByAgent(ctx context.Context, agentID int64) ([]model.UserSummary, error)
	ListAgentsByUser(ctx context.Context, userID int64) ([]model.UserSummary, error)
}

type connectionRepo struct {
	db sqlxDB
}

func NewConnectionRepository(db *sqlx.DB) ConnectionRepository {
	return &connectionRepo{db: db}
}

func (r *connectionRepo) Create(ctx context.Context, agentID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO connections (agent_id, user_id)
		VALUES ($1, $2)
	`, agentID, userID)
	return err
}

func (r *connectionRepo) Exists(ctx context.Context, agentID, userID int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM connections WHERE agent_id = $1 AND user_id = $2
		)
	`, agentID, userID)
	return exists, err
}

// Delete removes an edge and reports whether one existed.
func (r *connectionRepo) Delete(ctx context.Context, agentID, userID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM connections WHERE agent_id = $1 AND user_id = $2
	`, agentID, userID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	return affected > 0, err
}

func (r *connectionRepo) ListUserIDsByAgent(ctx context.Context, agentID int64) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, `
		SELECT user_id FROM connections WHERE agent_id = $1
	`, agentID)
	return ids, err
}

func (r *connectionRepo) ListUsersByAgent(ctx context.Context, agentID int64) ([]model.UserSummary, error) {
	var users []model.UserSummary
	err := r.db.SelectContext(ctx, &users, `
		SELECT u.id, u.name, u.email
		FROM connections c
		JOIN users u ON u.id = c.user_id
		WHERE c.agent_id = $1
		ORDER BY u.name
	`, agentID)
	return users, err
}

func (r *connectionRepo) ListAgentsByUser(ctx context.Context, userID int64) ([]model.UserSummary, error) {
	var agents []model.UserSummary
	err := r.db.SelectContext(ctx, &agents, `
		SELECT u.id, u.name, u.email
		FROM connections c
		JOIN users u ON u.id = c.agent_id
		WHERE c.user_id = $1
		ORDER BY u.name
	`, userID)
	return agents, err
}
