package usecase

import (
	"context"

	"github.com/polkiloo/vendbot/internal/config"
	domainErrors "github.com/polkiloo/vendbot/internal/domain/errors"
	pkgAuth "github.com/polkiloo/vendbot/internal/pkg/auth"
)

// OperatorAuthUseCase authenticates operators of the HTTP API. Operators are
// the configured admin chat ids sharing one bcrypt password.
type OperatorAuthUseCase struct {
	cfg    *config.Config
	hasher pkgAuth.PasswordHasher
	tokens pkgAuth.Strategy
}

// NewOperatorAuthUseCase constructs OperatorAuthUseCase.
func NewOperatorAuthUseCase(cfg *config.Config, hasher pkgAuth.PasswordHasher, strategy pkgAuth.Strategy) *OperatorAuthUseCase {
	return &OperatorAuthUseCase{cfg: cfg, hasher: hasher, tokens: strategy}
}

// Login checks the operator password and returns a session token.
func (u *OperatorAuthUseCase) Login(ctx context.Context, operatorID int64, password string) (string, error) {
	if operatorID == 0 || password == "" || !u.cfg.IsAdmin(operatorID) {
		return "", domainErrors.ErrInvalidCredentials
	}
	if err := u.hasher.Compare(u.cfg.OperatorPasswordHash, password); err != nil {
		return "", domainErrors.ErrInvalidCredentials
	}
	return u.tokens.IssueToken(operatorID)
}

// ParseToken returns the operator id a token was issued to. Tokens of
// operators removed from the admin list stop working.
func (u *OperatorAuthUseCase) ParseToken(token string) (int64, error) {
	if token == "" {
		return 0, pkgAuth.ErrInvalidToken
	}
	id, err := u.tokens.ParseToken(token)
	if err != nil {
		return 0, err
	}
	if !u.cfg.IsAdmin(id) {
		return 0, pkgAuth.ErrInvalidToken
	}
	return id, nil
}
