package domain

import "context"

// Page offset/limit 分页参数
type Page struct {
	Offset int
	Limit  int
}

type AuditQuery struct {
	Q string // 对 actor/action/target/detail 做不区分大小写的子串匹配
	Page
}

// 查不到时 Find* 返回 (nil, nil)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id uint) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, u *User) error
	UpdatePasswordHash(ctx context.Context, id uint, hash string) error
}

type ItemRepository interface {
	Create(ctx context.Context, it *Item) error
	FindOwned(ctx context.Context, id, ownerID uint) (*Item, error)
	Exists(ctx context.Context, id uint) (bool, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]Item, error)
	Update(ctx context.Context, it *Item) error
	DeleteOwned(ctx context.Context, id, ownerID uint) (bool, error)
	CountByCategory(ctx context.Context, ownerID uint) (CategoryStats, error)
}

type CommentRepository interface {
	Create(ctx context.Context, c *Comment) error
	ListByItem(ctx context.Context, itemID uint) ([]Comment, error)
}

type AuditRepository interface {
	Append(ctx context.Context, a *Audit) error
	List(ctx context.Context, q AuditQuery) ([]Audit, int64, error)
}
