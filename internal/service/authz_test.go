package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rabbitask/rabbitask-server-go/internal/model"
)

func newAuthzFixture() (*AuthzService, *mockUserRepo, *mockConnRepo) {
	userRepo := newMockUserRepo()
	connRepo := newMockConnRepo()
	return NewAuthzService(userRepo, connRepo), userRepo, connRepo
}

func TestIsAgent(t *testing.T) {
	ctx := context.Background()

	t.Run("true for agents", func(t *testing.T) {
		svc, userRepo, _ := newAuthzFixture()
		userRepo.add(1, "Bob", model.RoleAgent)

		isAgent, err := svc.IsAgent(ctx, 1)
		require.NoError(t, err)
		assert.True(t, isAgent)
	})

	t.Run("false for standard users", func(t *testing.T) {
		svc, userRepo, _ := newAuthzFixture()
		userRepo.add(1, "Alice", model.RoleStandard)

		isAgent, err := svc.IsAgent(ctx, 1)
		require.NoError(t, err)
		assert.False(t, isAgent)
	})

	t.Run("false for unknown user ids", func(t *testing.T) {
		svc, _, _ := newAuthzFixture()

		isAgent, err := svc.IsAgent(ctx, 999)
		require.NoError(t, err)
		assert.False(t, isAgent)
	})
}

func TestManagedUserIDs(t *testing.T) {
	ctx := context.Background()

	t.Run("standard user manages only themselves", func(t *testing.T) {
		svc, userRepo, _ := newAuthzFixture()
		userRepo.add(1, "Alice", model.RoleStandard)

		ids, err := svc.ManagedUserIDs(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, ids)
	})

	t.Run("agent without connections manages only themselves", func(t *testing.T) {
		svc, userRepo, _ := newAuthzFixture()
		userRepo.add(2, "Bob", model.RoleAgent)

		ids, err := svc.ManagedUserIDs(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, ids)
	})

	t.Run("agent manages themselves plus connected users", func(t *testing.T) {
		svc, userRepo, connRepo := newAuthzFixture()
		userRepo.add(1, "Alice", model.RoleStandard)
		userRepo.add(2, "Bob", model.RoleAgent)
		userRepo.add(3, "Carol", model.RoleStandard)
		require.NoError(t, connRepo.Create(ctx, 2, 1))
		require.NoError(t, connRepo.Create(ctx, 2, 3))

		ids, err := svc.ManagedUserIDs(ctx, 2)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{1, 2, 3}, ids)
	})

	t.Run("connections do not leak to the standard side", func(t *testing.T) {
		svc, userRepo, connRepo := newAuthzFixture()
		userRepo.add(1, "Alice", model.RoleStandard)
		userRepo.add(2, "Bob", model.RoleAgent)
		require.NoError(t, connRepo.Create(ctx, 2, 1))

		ids, err := svc.ManagedUserIDs(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, ids)
	})
}

func TestCanManage(t *testing.T) {
	ctx := context.Background()

	t.Run("anyone manages themselves", func(t *testing.T) {
		svc, userRepo, _ := newAuthzFixture()
		userRepo.add(1, "Alice", model.RoleStandard)

		ok, err := svc.CanManage(ctx, 1, 1)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("connected agent manages the user", func(t *testing.T) {
		svc, userRepo, connRepo := newAuthzFixture()
		userRepo.add(1, "Alice", model.RoleStandard)
		userRepo.add(2, "Bob", model.RoleAgent)
		require.NoError(t, connRepo.Create(ctx, 2, 1))

		ok, err := svc.CanManage(ctx, 2, 1)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unconnected users cannot manage each other", func(t *testing.T) {
		svc, userRepo, _ := newAuthzFixture()
		userRepo.add(1, "Alice", model.RoleStandard)
		userRepo.add(2, "Bob", model.RoleAgent)

		ok, err := svc.CanManage(ctx, 2, 1)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("the edge is directed", func(t *testing.T) {
		svc, userRepo, connRepo := newAuthzFixture()
		userRepo.add(1, "Alice", model.RoleStandard)
		userRepo.add(2, "Bob", model.RoleAgent)
		require.NoError(t, connRepo.Create(ctx, 2, 1))

		ok, err := svc.CanManage(ctx, 1, 2)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
