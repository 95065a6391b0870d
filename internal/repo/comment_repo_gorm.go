package repo

import (
	"context"

	"gorm.io/gorm"

	"go-gin-gorm-cms/internal/core/database"
	"go-gin-gorm-cms/internal/domain"
)

type CommentRepo struct{ db *gorm.DB }

func NewCommentRepo(db *gorm.DB) *CommentRepo { return &CommentRepo{db: db} }

var _ domain.CommentRepository = (*CommentRepo)(nil)

func (r *CommentRepo) Create(ctx context.Context, c *domain.Comment) error {
	return database.Conn(ctx, r.db).Create(c).Error
}

// ListByItem 旧的在前
func (r *CommentRepo) ListByItem(ctx context.Context, itemID uint) ([]domain.Comment, error) {
	var cs []domain.Comment
	err := database.Conn(ctx, r.db).
		Where("item_id = ?", itemID).
		Order("created_at ASC").Order("id ASC").
		Find(&cs).Error
	if err != nil {
		return nil, err
	}
	return cs, nil
}
