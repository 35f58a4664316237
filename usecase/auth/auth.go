// Package auth registers users and exchanges credentials for access tokens.
package auth

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	appLogger "github.com/fastygo/taskboard/pkg/logger"
	"github.com/fastygo/taskboard/repository"
)

// PasswordHasher is satisfied by password.Hasher.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, digest string) (bool, error)
}

// TokenIssuer is satisfied by token.Manager.
type TokenIssuer interface {
	Issue(userID string) (*domain.AccessToken, error)
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

type UseCase struct {
	users  repository.UserRepository
	hasher PasswordHasher
	tokens TokenIssuer
	logger *zap.Logger
}

func New(users repository.UserRepository, hasher PasswordHasher, tokens TokenIssuer, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
	}
}

// Register creates an account. The email is stored in normalised form and
// must not already be registered.
func (uc *UseCase) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	name := strings.TrimSpace(in.Name)
	email := domain.NormalizeEmail(in.Email)

	switch {
	case name == "":
		return nil, domain.Invalid("name is required")
	case email == "" || !strings.Contains(email, "@"):
		return nil, domain.Invalid("a valid email is required")
	case in.Password == "":
		return nil, domain.Invalid("password is required")
	}

	digest, err := uc.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: digest,
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, err
	}

	appLogger.FromContext(ctx, uc.logger).Info("user registered", zap.String("registered_user_id", user.ID))
	return user, nil
}

// Login verifies the credentials and issues a token. An unknown email and a
// wrong password fail identically with domain.ErrInvalidCredentials.
func (uc *UseCase) Login(ctx context.Context, in LoginInput) (*domain.AccessToken, error) {
	email := domain.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	log := appLogger.FromContext(ctx, uc.logger)

	user, err := uc.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	var digest string
	if user != nil {
		digest = user.PasswordHash
	}

	// Unknown users are verified against a dummy digest to keep timing flat.
	ok, err := uc.hasher.Verify(ctx, in.Password, digest)
	if err != nil {
		return nil, err
	}
	if !ok || user == nil {
		log.Info("login rejected")
		return nil, domain.ErrInvalidCredentials
	}

	token, err := uc.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	log.Info("login succeeded", zap.String("authenticated_user_id", user.ID))
	return token, nil
}
