package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mvasconc/papertrade/internal/auth"
	"github.com/mvasconc/papertrade/internal/domain"
	"github.com/mvasconc/papertrade/internal/metrics"
	"github.com/mvasconc/papertrade/internal/store"
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// SignupRequest represents the input for account creation.
type SignupRequest struct {
	Name     string
	Email    string
	Password string
}

// AuthService handles account creation and session issuance.
type AuthService struct {
	users  store.UserStore
	tokens *auth.TokenIssuer
}

// NewAuthService creates a new AuthService.
func NewAuthService(users store.UserStore, tokens *auth.TokenIssuer) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

// Signup validates the request, creates the account, and returns the
// new user with a session token.
func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*domain.User, string, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > 100 {
		return nil, "", &domain.ValidationError{
			Message: "name must be between 1 and 100 characters",
		}
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !emailRegex.MatchString(email) {
		return nil, "", &domain.ValidationError{
			Message: "email must be a valid address",
		}
	}
	if len(req.Password) < 8 {
		return nil, "", &domain.ValidationError{
			Message: "password must be at least 8 characters",
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, "", err
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", err
	}

	metrics.SignupsTotal.Inc()
	return user, token, nil
}

// Login verifies credentials and returns the user with a session token.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, "", domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, "", domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}
