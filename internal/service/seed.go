package service

import (
	"context"
	"fmt"

	"go-gin-gorm-cms/internal/domain"
)

type SeedResult struct {
	Users int
	Items int
}

// Seeder 本地演示数据：demo/demopass、admin/adminpass 以及 6 个示例条目。
// 重复执行不会产生重复数据。
type Seeder struct {
	auth  *AuthService
	users domain.UserRepository
	items *ItemService
}

func NewSeeder(a *AuthService, users domain.UserRepository, items *ItemService) *Seeder {
	return &Seeder{auth: a, users: users, items: items}
}

func (s *Seeder) Run(ctx context.Context) (SeedResult, error) {
	var res SeedResult
	demo, created, err := s.ensureUser(ctx, "demo", "demopass", domain.RoleUser)
	if err != nil {
		return res, err
	}
	if created {
		res.Users++
	}
	if _, created, err = s.ensureUser(ctx, "admin", "adminpass", domain.RoleAdmin); err != nil {
		return res, err
	}
	if created {
		res.Users++
	}

	existing, err := s.items.List(ctx, demo.ID, ItemQuery{Page: domain.Page{Limit: 1}})
	if err != nil {
		return res, err
	}
	if len(existing) > 0 {
		return res, nil
	}
	for i := 1; i <= 6; i++ {
		cat := "beta"
		if i%2 == 0 {
			cat = "alpha"
		}
		desc := fmt.Sprintf("Seeded item %d", i)
		if _, err := s.items.Create(ctx, demo.ID, ItemInput{
			Title: fmt.Sprintf("Demo Item %d", i), Category: &cat, Description: &desc,
		}); err != nil {
			return res, err
		}
		res.Items++
	}
	return res, nil
}

func (s *Seeder) ensureUser(ctx context.Context, name, password string, role domain.Role) (*domain.User, bool, error) {
	u, err := s.users.FindByUsername(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("find user %s: %w", name, err)
	}
	if u != nil {
		return u, false, nil
	}
	u, err = s.auth.Register(ctx, name, password)
	if err != nil {
		return nil, false, fmt.Errorf("seed user %s: %w", name, err)
	}
	if role != u.Role {
		u.Role = role
		if err := s.users.Update(ctx, u); err != nil {
			return nil, false, fmt.Errorf("seed user %s: %w", name, err)
		}
	}
	return u, true, nil
}
