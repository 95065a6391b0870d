package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"go-gin-gorm-cms/internal/domain"
)

const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 500
)

type UpdateUserInput struct {
	Username *string
	Role     *string
}

type AuditPage struct {
	Items []domain.Audit `json:"items"`
	Total int64          `json:"total"`
}

type AdminService struct {
	users  domain.UserRepository
	audits domain.AuditRepository
	log    *zap.Logger
}

func NewAdminService(users domain.UserRepository, audits domain.AuditRepository, l *zap.Logger) *AdminService {
	if l == nil {
		l = zap.NewNop()
	}
	return &AdminService{users: users, audits: audits, log: l}
}

func (s *AdminService) ListUsers(ctx context.Context) ([]domain.User, error) {
	us, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if us == nil {
		us = []domain.User{}
	}
	return us, nil
}

// UpdateUser 修改用户名/角色，并写一条审计（失败只记日志）
func (s *AdminService) UpdateUser(ctx context.Context, actor *domain.User, id uint, in UpdateUserInput) (*domain.User, error) {
	var role domain.Role
	if in.Role != nil {
		r, ok := domain.ParseRole(*in.Role)
		if !ok {
			return nil, domain.Invalid("role must be one of: user, admin")
		}
		role = r
	}
	if in.Username != nil {
		if err := validUsername(*in.Username); err != nil {
			return nil, err
		}
	}

	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if u == nil {
		return nil, domain.NotFound("user")
	}

	var detail []string
	if in.Username != nil && *in.Username != u.Username {
		other, err := s.users.FindByUsername(ctx, *in.Username)
		if err != nil {
			return nil, fmt.Errorf("find user: %w", err)
		}
		if other != nil {
			return nil, domain.ErrUsernameTaken
		}
		u.Username = *in.Username
	}
	if in.Username != nil {
		detail = append(detail, "username="+*in.Username)
	}
	if in.Role != nil {
		u.Role = role
		detail = append(detail, "role="+string(role))
	}

	if err := s.users.Update(ctx, u); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.record(ctx, actor.Username, domain.AuditUpdateUser, strconv.FormatUint(uint64(u.ID), 10), strings.Join(detail, ";"))
	return u, nil
}

func (s *AdminService) ListAudit(ctx context.Context, q domain.AuditQuery) (AuditPage, error) {
	if q.Limit == 0 {
		q.Limit = DefaultAuditLimit
	}
	if q.Limit < 1 || q.Limit > MaxAuditLimit {
		return AuditPage{}, domain.Invalid("limit must be between 1 and %d", MaxAuditLimit)
	}
	if q.Offset < 0 {
		return AuditPage{}, domain.Invalid("offset must be >= 0")
	}
	items, total, err := s.audits.List(ctx, q)
	if err != nil {
		return AuditPage{}, fmt.Errorf("list audit: %w", err)
	}
	if items == nil {
		items = []domain.Audit{}
	}
	return AuditPage{Items: items, Total: total}, nil
}

// Promote 把用户设为 admin，给运维命令行用
func (s *AdminService) Promote(ctx context.Context, actor, username string) (*domain.User, error) {
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if u == nil {
		return nil, domain.NotFound("user")
	}
	if u.Role != domain.RoleAdmin {
		u.Role = domain.RoleAdmin
		if err := s.users.Update(ctx, u); err != nil {
			return nil, fmt.Errorf("promote user: %w", err)
		}
	}
	s.record(ctx, actor, domain.AuditPromoteUser, strconv.FormatUint(uint64(u.ID), 10), "role=admin")
	return u, nil
}

func (s *AdminService) record(ctx context.Context, actor, action, target, detail string) {
	a := &domain.Audit{Actor: actor, Action: action}
	if target != "" {
		a.Target = &target
	}
	if detail != "" {
		a.Detail = &detail
	}
	if err := s.audits.Append(ctx, a); err != nil {
		s.log.Warn("audit append failed",
			zap.String("actor", actor), zap.String("action", action), zap.Error(err))
	}
}
