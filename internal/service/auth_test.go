package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/rabbitask/rabbitask-server-go/internal/errors"
	"github.com/rabbitask/rabbitask-server-go/internal/model"
	"github.com/rabbitask/rabbitask-server-go/internal/util"
)

const testJWTSecret = "test-secret-for-unit-tests-only!"

func newAuthFixture() (*AuthService, *mockUserRepo) {
	userRepo := newMockUserRepo()
	return NewAuthService(userRepo, testJWTSecret, time.Hour), userRepo
}

func validRegisterParams() RegisterParams {
	return RegisterParams{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "long-enough-password",
		Role:     model.RoleStandard,
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a user with hashed password", func(t *testing.T) {
		svc, _ := newAuthFixture()

		user, err := svc.Register(ctx, validRegisterParams())
		require.NoError(t, err)

		assert.Equal(t, "Alice", user.Name)
		assert.Equal(t, "alice@example.com", user.Email)
		assert.NotEqual(t, "long-enough-password", user.PasswordHash)
		assert.True(t, util.CheckPasswordHash("long-enough-password", user.PasswordHash))
	})

	t.Run("normalizes the email", func(t *testing.T) {
		svc, _ := newAuthFixture()

		params := validRegisterParams()
		params.Email = "Alice@Example.COM"
		user, err := svc.Register(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", user.Email)
	})

	t.Run("requires a name", func(t *testing.T) {
		svc, _ := newAuthFixture()

		params := validRegisterParams()
		params.Name = ""
		_, err := svc.Register(ctx, params)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
	})

	t.Run("rejects an invalid email", func(t *testing.T) {
		svc, _ := newAuthFixture()

		params := validRegisterParams()
		params.Email = "not-an-email"
		_, err := svc.Register(ctx, params)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("rejects a short password", func(t *testing.T) {
		svc, _ := newAuthFixture()

		params := validRegisterParams()
		params.Password = "short"
		_, err := svc.Register(ctx, params)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("rejects an unknown role", func(t *testing.T) {
		svc, _ := newAuthFixture()

		params := validRegisterParams()
		params.Role = "superuser"
		_, err := svc.Register(ctx, params)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("rejects a taken email", func(t *testing.T) {
		svc, _ := newAuthFixture()

		_, err := svc.Register(ctx, validRegisterParams())
		require.NoError(t, err)

		_, err = svc.Register(ctx, validRegisterParams())
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeAlreadyExists, apperrors.GetCode(err))
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	register := func(t *testing.T, svc *AuthService) *model.User {
		t.Helper()
		user, err := svc.Register(ctx, validRegisterParams())
		require.NoError(t, err)
		return user
	}

	t.Run("issues a signed token", func(t *testing.T) {
		svc, _ := newAuthFixture()
		user := register(t, svc)

		result, err := svc.Login(ctx, "alice@example.com", "long-enough-password")
		require.NoError(t, err)

		assert.Equal(t, user.ID, result.User.ID)
		assert.WithinDuration(t, time.Now().Add(time.Hour), result.ExpiresAt, 2*time.Second)

		parsed, err := jwt.Parse(result.Token, func(token *jwt.Token) (any, error) {
			return []byte(testJWTSecret), nil
		})
		require.NoError(t, err)
		require.True(t, parsed.Valid)

		claims := parsed.Claims.(jwt.MapClaims)
		assert.Equal(t, strconv.FormatInt(user.ID, 10), claims["sub"])
		assert.Equal(t, "alice@example.com", claims["email"])
		assert.Equal(t, "standard", claims["role"])
	})

	t.Run("rejects a wrong password", func(t *testing.T) {
		svc, _ := newAuthFixture()
		register(t, svc)

		_, err := svc.Login(ctx, "alice@example.com", "wrong-password")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.GetCode(err))
	})

	t.Run("rejects an unknown email with the same error", func(t *testing.T) {
		svc, _ := newAuthFixture()
		register(t, svc)

		_, err := svc.Login(ctx, "nobody@example.com", "long-enough-password")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.GetCode(err))
	})
}
