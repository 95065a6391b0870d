package service

import (
	"context"
	"fmt"

	"go-gin-gorm-cms/internal/core/auth"
	"go-gin-gorm-cms/internal/domain"
)

// Gate 认证（token -> 用户）与按角色授权
type Gate struct {
	tokens *auth.TokenService
	users  domain.UserRepository
}

func NewGate(tokens *auth.TokenService, users domain.UserRepository) *Gate {
	return &Gate{tokens: tokens, users: users}
}

func (g *Gate) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.Unauthorized("missing token")
	}
	sub, err := g.tokens.Verify(token, auth.KindAccess)
	if err != nil {
		return nil, domain.Unauthorized("invalid or expired token")
	}
	u, err := g.users.FindByUsername(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if u == nil {
		return nil, domain.Unauthorized("user not found")
	}
	return u, nil
}

// Authorize 角色精确匹配，admin 不会自动满足 user
func (g *Gate) Authorize(u *domain.User, role domain.Role) (*domain.User, error) {
	if u == nil {
		return nil, domain.Unauthorized("not authenticated")
	}
	if u.Role != role {
		return nil, domain.Forbidden("insufficient role")
	}
	return u, nil
}
