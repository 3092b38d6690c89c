package identity

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"studybuddy-backend/internal/shared/apperr"
	"studybuddy-backend/internal/shared/telemetry"
)

const minPasswordLen = 6

// Session is what register and login hand back to the caller.
type Session struct {
	UserID   string
	Username string
	Email    string
	Token    string
}

type Service struct {
	Provider Provider
}

func NewService(provider Provider) *Service {
	return &Service{Provider: provider}
}

func (s *Service) Register(ctx context.Context, email, password, username string) (Session, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return Session{}, apperr.Invalid("a valid email is required")
	}
	if len(password) < minPasswordLen {
		return Session{}, apperr.Invalid("password must be at least 6 characters")
	}
	if strings.TrimSpace(username) == "" {
		return Session{}, apperr.Invalid("username is required")
	}

	user, err := s.Provider.CreateUser(ctx, email, password, username)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return Session{}, apperr.Invalid(err.Error())
		}
		return Session{}, apperr.Upstream("identity", email, err)
	}
	telemetry.Info("user.registered", map[string]any{"user_id": user.ID})
	return s.session(ctx, user)
}

// Login verifies the password when the provider holds credentials. Providers
// without local credentials authenticate on the client side, so lookup by
// email is enough.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return Session{}, apperr.Invalid("email and password are required")
	}

	var user User
	var err error
	if checker, ok := s.Provider.(PasswordChecker); ok {
		user, err = checker.CheckPassword(ctx, email, password)
	} else {
		user, err = s.Provider.GetUserByEmail(ctx, email)
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredentials
		}
	}
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return Session{}, err
		}
		return Session{}, apperr.Upstream("identity", email, err)
	}
	return s.session(ctx, user)
}

func (s *Service) session(ctx context.Context, user User) (Session, error) {
	token, err := s.Provider.IssueToken(ctx, user.ID)
	if err != nil {
		return Session{}, apperr.Upstream("identity", user.ID, err)
	}
	return Session{
		UserID:   user.ID,
		Username: user.DisplayName,
		Email:    user.Email,
		Token:    token,
	}, nil
}
