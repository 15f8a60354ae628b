package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mvasconc/papertrade/internal/auth"
	"github.com/mvasconc/papertrade/internal/domain"
	"github.com/mvasconc/papertrade/internal/store"
)

func newTestAuthService() (*AuthService, *auth.TokenIssuer) {
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	return NewAuthService(store.NewMemoryUserStore(), tokens), tokens
}

func TestSignup(t *testing.T) {
	svc, tokens := newTestAuthService()
	ctx := context.Background()

	user, token, err := svc.Signup(ctx, SignupRequest{
		Name:     "Ada Lovelace",
		Email:    "Ada@Example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Errorf("email = %q, want lowercased", user.Email)
	}
	if user.PasswordHash == "correct-horse" || user.PasswordHash == "" {
		t.Error("password stored unhashed")
	}

	userID, err := tokens.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if userID != user.ID {
		t.Errorf("token subject = %q, want %q", userID, user.ID)
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	req := SignupRequest{Name: "Ada", Email: "ada@example.com", Password: "correct-horse"}
	if _, _, err := svc.Signup(ctx, req); err != nil {
		t.Fatalf("Signup: %v", err)
	}

	req.Email = "ADA@example.com"
	if _, _, err := svc.Signup(ctx, req); !errors.Is(err, domain.ErrEmailTaken) {
		t.Errorf("got err %v, want ErrEmailTaken", err)
	}
}

func TestSignup_Validation(t *testing.T) {
	svc, _ := newTestAuthService()

	tests := []struct {
		name string
		req  SignupRequest
	}{
		{"empty name", SignupRequest{Name: "  ", Email: "a@b.co", Password: "12345678"}},
		{"bad email", SignupRequest{Name: "Ada", Email: "not-an-email", Password: "12345678"}},
		{"short password", SignupRequest{Name: "Ada", Email: "a@b.co", Password: "short"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Signup(context.Background(), tt.req)
			var vErr *domain.ValidationError
			if !errors.As(err, &vErr) {
				t.Errorf("got err %v, want ValidationError", err)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	svc, tokens := newTestAuthService()
	ctx := context.Background()

	created, _, err := svc.Signup(ctx, SignupRequest{Name: "Ada", Email: "ada@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}

	user, token, err := svc.Login(ctx, "Ada@Example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.ID != created.ID {
		t.Errorf("got user %q, want %q", user.ID, created.ID)
	}
	if _, err := tokens.Verify(token); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, SignupRequest{Name: "Ada", Email: "ada@example.com", Password: "correct-horse"}); err != nil {
		t.Fatalf("Signup: %v", err)
	}

	// Unknown email and wrong password must be indistinguishable.
	_, _, errUnknown := svc.Login(ctx, "nobody@example.com", "correct-horse")
	_, _, errWrong := svc.Login(ctx, "ada@example.com", "wrong-password")

	if !errors.Is(errUnknown, domain.ErrInvalidCredentials) {
		t.Errorf("unknown email: got err %v, want ErrInvalidCredentials", errUnknown)
	}
	if !errors.Is(errWrong, domain.ErrInvalidCredentials) {
		t.Errorf("wrong password: got err %v, want ErrInvalidCredentials", errWrong)
	}
}
