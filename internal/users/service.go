// Package users handles registration and password login.
package users

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"issueInsightsTracker/internal/apperr"
	"issueInsightsTracker/internal/auth"
	"issueInsightsTracker/models"
	"issueInsightsTracker/repository"
)

// RegisterInput is a validated self-registration request.
type RegisterInput struct {
	Email    string
	Password string
	FullName *string
	Role     models.Role
}

// Token is the login response.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type Service struct {
	users  repository.UserRepositoryI
	tokens *auth.Tokens
	log    *zap.Logger
}

func NewService(users repository.UserRepositoryI, tokens *auth.Tokens, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{users: users, tokens: tokens, log: log}
}

// Register creates a user. Emails are stored lower-cased and the role
// defaults to reporter.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	role := in.Role
	if role == "" {
		role = models.RoleReporter
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict("Email already registered")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u, err := s.users.Create(ctx, &models.User{
		Email:          email,
		HashedPassword: hash,
		FullName:       in.FullName,
		Role:           role,
	})
	if errors.Is(err, repository.ErrDuplicateEmail) {
		// lost a race with a concurrent registration
		return nil, apperr.Conflict("Email already registered")
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.Int64("user_id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

// Authenticate returns the user for a matching email and password.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if u == nil || !auth.CheckPassword(u.HashedPassword, password) {
		return nil, apperr.Unauthorized("Incorrect username or password")
	}
	return u, nil
}

// Login authenticates and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (*Token, error) {
	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	tok, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &Token{AccessToken: tok, TokenType: "bearer"}, nil
}
