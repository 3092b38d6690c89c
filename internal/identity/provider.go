package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Provider is the identity collaborator the rest of the service depends on.
type Provider interface {
	CreateUser(ctx context.Context, email, password, displayName string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	IssueToken(ctx context.Context, userID string) (string, error)
}

// PasswordChecker is implemented by providers that hold credentials locally.
type PasswordChecker interface {
	CheckPassword(ctx context.Context, email, password string) (User, error)
}

// TokenIssuer signs bearer tokens.
type TokenIssuer interface {
	Sign(userID, email, name string) (string, error)
}

// Local is a self-contained Provider backed by Repo with bcrypt password hashes.
type Local struct {
	Repo   Repo
	Tokens TokenIssuer
	Cost   int
}

func NewLocal(repo Repo, tokens TokenIssuer) *Local {
	return &Local{Repo: repo, Tokens: tokens, Cost: bcrypt.DefaultCost}
}

func (l *Local) CreateUser(ctx context.Context, email, password, displayName string) (User, error) {
	cost := l.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	return l.Repo.Create(ctx, User{
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: string(hash),
	})
}

func (l *Local) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return l.Repo.GetByEmail(ctx, email)
}

func (l *Local) IssueToken(ctx context.Context, userID string) (string, error) {
	user, err := l.Repo.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return l.Tokens.Sign(user.ID, user.Email, user.DisplayName)
}

// CheckPassword returns ErrInvalidCredentials for both an unknown email and a
// wrong password.
func (l *Local) CheckPassword(ctx context.Context, email, password string) (User, error) {
	user, err := l.Repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

var (
	_ Provider        = (*Local)(nil)
	_ PasswordChecker = (*Local)(nil)
)
