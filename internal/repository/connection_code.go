package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rabbitask/rabbitask-server-go/internal/model"
)

type ConnectionCodeRepository interface {
	Create(ctx context.Context, params model.CreateConnectionCodeParams) (*model.ConnectionCode, error)
	// Consume atomically claims an unused, unexpired code and returns it.
	// A nil result means no such code: unknown, already used or expired
	// are indistinguishable here.
	Consume(ctx context.Context, code string) (*model.ConnectionCode, error)
	ActiveCodeExists(ctx context.Context, code string) (bool, error)
	InvalidateByUser(ctx context.Context, userID int64) (int64, error)
	DeleteExpired(ctx context.Context, retention time.Duration) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) ConnectionCodeRepository
}

type connectionCodeRepo struct {
	db sqlxDB
}

func NewConnectionCodeRepository(db *sqlx.DB) ConnectionCodeRepository {
	return &connectionCodeRepo{db: db}
}

func (r *connectionCodeRepo) WithTx(tx *sqlx.Tx) ConnectionCodeRepository {
	return &connectionCodeRepo{db: tx}
}

func (r *connectionCodeRepo) Create(ctx context.Context, params model.CreateConnectionCodeParams) (*model.ConnectionCode, error) {
	var cc model.ConnectionCode
	err := r.db.GetContext(ctx, &cc, `
		INSERT INTO connection_codes (code, user_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING *
	`, params.Code, params.UserID, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &cc, nil
}

// Consume flips the used flag in a single conditional update so that two
// concurrent redemptions of the same code cannot both claim it.
func (r *connectionCodeRepo) Consume(ctx context.Context, code string) (*model.ConnectionCode, error) {
	var cc model.ConnectionCode
	err := r.db.GetContext(ctx, &cc, `
		UPDATE connection_codes
		SET used = TRUE
		WHERE code = $1 AND used = FALSE AND expires_at > NOW()
		RETURNING *
	`, code)
	return HandleNotFound(&cc, err)
}

func (r *connectionCodeRepo) ActiveCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM connection_codes
			WHERE code = $1 AND used = FALSE AND expires_at > NOW()
		)
	`, code)
	return exists, err
}

// InvalidateByUser marks every still-active code owned by the user as
// used, so at most one active code per owner is ever visible.
func (r *connectionCodeRepo) InvalidateByUser(ctx context.Context, userID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE connection_codes
		SET used = TRUE
		WHERE user_id = $1 AND used = FALSE
	`, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteExpired removes rows whose expiry is at least retention in the
// past. Recently expired rows are kept for debugging.
func (r *connectionCodeRepo) DeleteExpired(ctx context.Context, retention time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM connection_codes
		WHERE expires_at < NOW() - ($1 * interval '1 second')
	`, int64(retention.Seconds()))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
