package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/rabbitask/rabbitask-server-go/internal/config"
	"github.com/rabbitask/rabbitask-server-go/internal/database"
	apperrors "github.com/rabbitask/rabbitask-server-go/internal/errors"
	"github.com/rabbitask/rabbitask-server-go/internal/model"
	"github.com/rabbitask/rabbitask-server-go/internal/repository"
	"github.com/rabbitask/rabbitask-server-go/internal/util"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const maxGenerationAttempts = 10

// TxRunner runs a function inside a database transaction. *database.DB
// satisfies it; tests substitute a pass-through.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

// ConnectionService runs the pairing handshake that lets an agent manage
// a standard user: the standard user issues a short-lived single-use
// code, hands it to the agent out-of-band, and the agent redeems it into
// a management edge.
type ConnectionService struct {
	db          TxRunner
	codeRepo    repository.ConnectionCodeRepository
	connRepo    repository.ConnectionRepository
	userRepo    repository.UserRepository
	authz       *AuthzService
	rateLimiter *RateLimiter
}

func NewConnectionService(
	db TxRunner,
	codeRepo repository.ConnectionCodeRepository,
	connRepo repository.ConnectionRepository,
	userRepo repository.UserRepository,
	authz *AuthzService,
	rateLimiter *RateLimiter,
) *ConnectionService {
	return &ConnectionService{
		db:          db,
		codeRepo:    codeRepo,
		connRepo:    connRepo,
		userRepo:    userRepo,
		authz:       authz,
		rateLimiter: rateLimiter,
	}
}

// CreateCode issues a fresh connection code for a standard user. Any
// still-active code the owner holds is invalidated first, inside the
// same transaction, so at most one active code per owner is ever
// visible to a concurrent redemption.
func (s *ConnectionService) CreateCode(ctx context.Context, ownerID int64) (*model.ConnectionCode, error) {
	isAgent, err := s.authz.IsAgent(ctx, ownerID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if isAgent {
		return nil, apperrors.Forbidden("Agents cannot issue connection codes")
	}

	var created *model.ConnectionCode
	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		codes := s.codeRepo.WithTx(tx)

		invalidated, err := codes.InvalidateByUser(ctx, ownerID)
		if err != nil {
			return fmt.Errorf("invalidate previous codes: %w", err)
		}
		if invalidated > 0 {
			log.Debug().
				Int64("userId", ownerID).
				Int64("count", invalidated).
				Msg("invalidated previous connection codes")
		}

		code, err := s.generateUniqueCode(ctx, codes)
		if err != nil {
			return err
		}

		created, err = codes.Create(ctx, model.CreateConnectionCodeParams{
			Code:      code,
			UserID:    ownerID,
			ExpiresAt: time.Now().Add(config.ConnectionCodeTTL),
		})
		if err != nil {
			return fmt.Errorf("create connection code: %w", err)
		}
		return nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("code", util.MaskCode(created.Code)).
		Int64("userId", ownerID).
		Time("expiresAt", created.ExpiresAt).
		Msg("connection code created")

	return created, nil
}

// RedeemCode claims a code on behalf of an agent and creates the
// management edge to the code's owner. The claim is a single conditional
// update, so concurrent redemptions of the same code cannot both
// succeed. When the edge already exists the code is still consumed.
func (s *ConnectionService) RedeemCode(ctx context.Context, code string, agentID int64) (*model.UserSummary, error) {
	isAgent, err := s.authz.IsAgent(ctx, agentID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if !isAgent {
		return nil, apperrors.Forbidden("Only agents can redeem connection codes")
	}

	normalized := strings.ToUpper(strings.TrimSpace(code))

	claimed, err := s.codeRepo.Consume(ctx, normalized)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if claimed == nil {
		log.Warn().
			Str("code", util.MaskCode(normalized)).
			Int64("agentId", agentID).
			Msg("connection code redemption failed")
		return nil, apperrors.InvalidConnectionCode()
	}

	exists, err := s.connRepo.Exists(ctx, agentID, claimed.UserID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if exists {
		// The code stays consumed.
		return nil, apperrors.AlreadyConnected()
	}

	if err := s.connRepo.Create(ctx, agentID, claimed.UserID); err != nil {
		return nil, apperrors.Database(err)
	}

	owner, err := s.userRepo.FindByID(ctx, claimed.UserID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if owner == nil {
		return nil, apperrors.NotFound("User")
	}

	log.Info().
		Int64("agentId", agentID).
		Int64("userId", owner.ID).
		Msg("connection established")

	summary := owner.Summary()
	return &summary, nil
}

// Disconnect removes the management edge between an agent and a
// standard user. Either side of the edge may remove it.
func (s *ConnectionService) Disconnect(ctx context.Context, actorID, otherID int64) error {
	isAgent, err := s.authz.IsAgent(ctx, actorID)
	if err != nil {
		return apperrors.Database(err)
	}

	agentID, userID := actorID, otherID
	if !isAgent {
		agentID, userID = otherID, actorID
	}

	removed, err := s.connRepo.Delete(ctx, agentID, userID)
	if err != nil {
		return apperrors.Database(err)
	}
	if !removed {
		return apperrors.NotFound("Connection")
	}

	log.Info().
		Int64("agentId", agentID).
		Int64("userId", userID).
		Msg("connection removed")

	return nil
}

// ListManagedUsers returns the standard users connected to an agent.
func (s *ConnectionService) ListManagedUsers(ctx context.Context, agentID int64) ([]model.UserSummary, error) {
	users, err := s.connRepo.ListUsersByAgent(ctx, agentID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return users, nil
}

// ListAgents returns the agents connected to a standard user.
func (s *ConnectionService) ListAgents(ctx context.Context, userID int64) ([]model.UserSummary, error) {
	agents, err := s.connRepo.ListAgentsByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return agents, nil
}

// PurgeExpired deletes codes whose expiry is past the retention window.
// Safe to run repeatedly; active codes are never touched.
func (s *ConnectionService) PurgeExpired(ctx context.Context) (int64, error) {
	count, err := s.codeRepo.DeleteExpired(ctx, config.CodeRetention)
	if err != nil {
		return 0, apperrors.Database(err)
	}
	return count, nil
}

// CheckCodeGenerationLimit limits how often a user may request codes.
func (s *ConnectionService) CheckCodeGenerationLimit(ctx context.Context, userID int64) (allowed bool, resetAt time.Time) {
	if s.rateLimiter == nil {
		return true, time.Time{}
	}
	key := fmt.Sprintf("code_gen:%d", userID)
	return s.rateLimiter.CheckLimit(ctx, key, config.CodeGenerationLimit, config.CodeGenerationWindow)
}

// generateUniqueCode draws random codes until one does not collide with
// a currently-active code. Collisions are rare; retrying is cheap.
func (s *ConnectionService) generateUniqueCode(ctx context.Context, codes repository.ConnectionCodeRepository) (string, error) {
	for attempts := 0; attempts < maxGenerationAttempts; attempts++ {
		code, err := generateRandomCode()
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		exists, err := codes.ActiveCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code collision: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique code after %d attempts", maxGenerationAttempts)
}

func generateRandomCode() (string, error) {
	buf := make([]byte, config.ConnectionCodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
