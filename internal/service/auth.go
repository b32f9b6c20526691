package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/rabbitask/rabbitask-server-go/internal/errors"
	"github.com/rabbitask/rabbitask-server-go/internal/model"
	"github.com/rabbitask/rabbitask-server-go/internal/repository"
	"github.com/rabbitask/rabbitask-server-go/internal/util"
)

const minPasswordLength = 8

type RegisterParams struct {
	Name     string
	Email    string
	Password string
	Phone    *string
	Role     model.UserRole
}

type LoginResult struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expiresAt"`
	User      model.UserSummary `json:"user"`
}

// AuthService handles registration, login and token issuance. Token
// verification lives in the auth middleware; both sides share the
// signing secret.
type AuthService struct {
	userRepo  repository.UserRepository
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewAuthService(userRepo repository.UserRepository, jwtSecret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

func (s *AuthService) Register(ctx context.Context, params RegisterParams) (*model.User, error) {
	if params.Name == "" {
		return nil, apperrors.MissingRequired("name")
	}
	if !util.IsValidEmail(params.Email) {
		return nil, apperrors.InvalidInput("email", "not a valid address")
	}
	if len(params.Password) < minPasswordLength {
		return nil, apperrors.InvalidInput("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	if !params.Role.Valid() {
		return nil, apperrors.InvalidInput("role", "must be standard or agent")
	}

	taken, err := s.userRepo.ExistsByEmail(ctx, params.Email)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if taken {
		return nil, apperrors.AlreadyExists("Email")
	}

	hash, err := util.HashPassword(params.Password)
	if err != nil {
		return nil, apperrors.Internal("Failed to hash password").WithCause(err)
	}

	user, err := s.userRepo.Create(ctx, model.CreateUserParams{
		Name:         params.Name,
		Email:        util.NormalizeEmail(params.Email),
		PasswordHash: hash,
		Phone:        params.Phone,
		Role:         params.Role,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().
		Int64("userId", user.ID).
		Str("role", string(user.Role)).
		Msg("user registered")

	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil || !util.CheckPasswordHash(password, user.PasswordHash) {
		log.Warn().Str("email", email).Msg("login attempt failed")
		return nil, apperrors.Unauthorized("Invalid email or password")
	}

	expiresAt := time.Now().Add(s.tokenTTL)
	token, err := s.issueToken(user, expiresAt)
	if err != nil {
		return nil, apperrors.Internal("Failed to issue token").WithCause(err)
	}

	log.Info().Int64("userId", user.ID).Msg("user authenticated")

	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.Summary(),
	}, nil
}

func (s *AuthService) issueToken(user *model.User, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":   strconv.FormatInt(user.ID, 10),
		"email": user.Email,
		"role":  string(user.Role),
		"exp":   expiresAt.Unix(),
		"iat":   time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
