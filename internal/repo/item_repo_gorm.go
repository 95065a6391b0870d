package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"go-gin-gorm-cms/internal/core/database"
	"go-gin-gorm-cms/internal/domain"
)

type ItemRepo struct{ db *gorm.DB }

func NewItemRepo(db *gorm.DB) *ItemRepo { return &ItemRepo{db: db} }

var _ domain.ItemRepository = (*ItemRepo)(nil)

func (r *ItemRepo) Create(ctx context.Context, it *domain.Item) error {
	return database.Conn(ctx, r.db).Create(it).Error
}

// FindOwned id 不存在与不属于 owner 一样返回 (nil, nil)
func (r *ItemRepo) FindOwned(ctx context.Context, id, ownerID uint) (*domain.Item, error) {
	var it domain.Item
	err := database.Conn(ctx, r.db).Where("id = ? AND owner_id = ?", id, ownerID).First(&it).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *ItemRepo) Exists(ctx context.Context, id uint) (bool, error) {
	var n int64
	if err := database.Conn(ctx, r.db).Model(&domain.Item{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListByOwner 新的在前；created_at 相同按 id 倒序
func (r *ItemRepo) ListByOwner(ctx context.Context, ownerID uint) ([]domain.Item, error) {
	var items []domain.Item
	err := database.Conn(ctx, r.db).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").Order("id DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *ItemRepo) Update(ctx context.Context, it *domain.Item) error {
	return database.Conn(ctx, r.db).
		Model(it).
		Select("title", "category", "description", "file_path").
		Updates(it).Error
}

// DeleteOwned 连同评论一起删
func (r *ItemRepo) DeleteOwned(ctx context.Context, id, ownerID uint) (bool, error) {
	conn := database.Conn(ctx, r.db)
	res := conn.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&domain.Item{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	if err := conn.Where("item_id = ?", id).Delete(&domain.Comment{}).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *ItemRepo) CountByCategory(ctx context.Context, ownerID uint) (domain.CategoryStats, error) {
	type row struct {
		Category string
		N        int64
	}
	var rows []row
	err := database.Conn(ctx, r.db).
		Model(&domain.Item{}).
		Select("category, COUNT(*) AS n").
		Where("owner_id = ?", ownerID).
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(domain.CategoryStats, len(rows))
	for _, r := range rows {
		out[r.Category] = r.N
	}
	return out, nil
}
