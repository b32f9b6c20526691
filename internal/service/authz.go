package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/rabbitask/rabbitask-server-go/internal/model"
	"github.com/rabbitask/rabbitask-server-go/internal/repository"
)

// AuthzService answers delegation-scoped authorization questions: which
// users an actor may act as, and whether one user may manage another.
// Every task-facing operation goes through CanManage before touching a
// target user's data.
//
// All lookups are pure queries. Absence of authority is false, not an
// error.
type AuthzService struct {
	userRepo repository.UserRepository
	connRepo repository.ConnectionRepository
}

func NewAuthzService(
	userRepo repository.UserRepository,
	connRepo repository.ConnectionRepository,
) *AuthzService {
	return &AuthzService{
		userRepo: userRepo,
		connRepo: connRepo,
	}
}

// IsAgent reports whether the user has the agent role. Unknown user ids
// are simply not agents.
func (s *AuthzService) IsAgent(ctx context.Context, userID int64) (bool, error) {
	isAgent, err := s.userRepo.HasRole(ctx, userID, model.RoleAgent)
	if err != nil {
		return false, fmt.Errorf("check agent role: %w", err)
	}
	return isAgent, nil
}

// ManagedUserIDs returns the set of user ids the actor may act as. It
// always contains the actor's own id; for agents it also contains every
// connected standard user. Edges only connect an agent to a standard
// user, so the result holds no duplicates.
func (s *AuthzService) ManagedUserIDs(ctx context.Context, userID int64) ([]int64, error) {
	managed := []int64{userID}

	isAgent, err := s.IsAgent(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !isAgent {
		return managed, nil
	}

	connected, err := s.connRepo.ListUserIDsByAgent(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list connected users: %w", err)
	}
	managed = append(managed, connected...)

	log.Debug().
		Int64("agentId", userID).
		Int("count", len(managed)).
		Msg("resolved managed user set")

	return managed, nil
}

// CanManage reports whether managerID may read or mutate targetID's
// data: either they are the same user, or a management edge
// (managerID -> targetID) exists.
func (s *AuthzService) CanManage(ctx context.Context, managerID, targetID int64) (bool, error) {
	if managerID == targetID {
		return true, nil
	}

	connected, err := s.connRepo.Exists(ctx, managerID, targetID)
	if err != nil {
		return false, fmt.Errorf("check connection: %w", err)
	}
	return connected, nil
}
