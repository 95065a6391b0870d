package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"go-gin-gorm-cms/internal/core/auth"
	"go-gin-gorm-cms/internal/domain"
)

const maxUsernameLen = 150

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type AccessToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// AuthService 注册 / 登录 / 刷新
type AuthService struct {
	users  domain.UserRepository
	hasher *auth.PasswordHasher
	tokens *auth.TokenService
	log    *zap.Logger
}

func NewAuthService(users domain.UserRepository, hasher *auth.PasswordHasher, tokens *auth.TokenService, l *zap.Logger) *AuthService {
	if l == nil {
		l = zap.NewNop()
	}
	return &AuthService{users: users, hasher: hasher, tokens: tokens, log: l}
}

func validUsername(name string) error {
	if strings.TrimSpace(name) == "" {
		return domain.Invalid("username is required")
	}
	if len(name) > maxUsernameLen {
		return domain.Invalid("username must be at most %d characters", maxUsernameLen)
	}
	return nil
}

func (s *AuthService) hash(password string) (string, error) {
	h, err := s.hasher.Hash(password)
	if errors.Is(err, auth.ErrPasswordInvalid) {
		return "", domain.Invalid("password must be between 1 and 72 bytes")
	}
	return h, err
}

// Register 新用户固定为 user 角色
func (s *AuthService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	if err := validUsername(username); err != nil {
		return nil, err
	}
	existing, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrUsernameTaken
	}
	h, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	u := &domain.User{Username: username, PasswordHash: h, Role: domain.RoleUser}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Login 用户不存在和密码错误返回同一个错误
func (s *AuthService) Login(ctx context.Context, username, password string) (TokenPair, error) {
	bad := domain.Invalid("incorrect username or password")
	if username == "" || password == "" {
		return TokenPair{}, bad
	}
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return TokenPair{}, fmt.Errorf("find user: %w", err)
	}
	if u == nil || !s.hasher.Verify(password, u.PasswordHash) {
		return TokenPair{}, bad
	}

	if s.hasher.NeedsRehash(u.PasswordHash) {
		if h, err := s.hasher.Hash(password); err == nil {
			if err := s.users.UpdatePasswordHash(ctx, u.ID, h); err != nil {
				s.log.Warn("password rehash failed", zap.String("user", u.Username), zap.Error(err))
			}
		}
	}

	access, err := s.tokens.IssueAccess(u.Username)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefresh(u.Username)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}

func (s *AuthService) Refresh(refreshToken string) (AccessToken, error) {
	if refreshToken == "" {
		return AccessToken{}, domain.Invalid("refresh_token is required")
	}
	access, err := s.tokens.Refresh(refreshToken)
	if err != nil {
		return AccessToken{}, domain.Unauthorized("invalid or expired refresh token")
	}
	return AccessToken{AccessToken: access, TokenType: "bearer"}, nil
}
