package service

import (
	"context"
	"fmt"
	"strings"

	"go-gin-gorm-cms/internal/domain"
)

type CommentService struct {
	items    domain.ItemRepository
	comments domain.CommentRepository
}

func NewCommentService(items domain.ItemRepository, comments domain.CommentRepository) *CommentService {
	return &CommentService{items: items, comments: comments}
}

// Add 任何登录用户都可以评论任意存在的条目
func (s *CommentService) Add(ctx context.Context, author *domain.User, itemID uint, content string) (*domain.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, domain.Invalid("content is required")
	}
	ok, err := s.items.Exists(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("check item: %w", err)
	}
	if !ok {
		return nil, domain.NotFound("item")
	}
	c := &domain.Comment{Content: content, ItemID: itemID, UserID: author.ID}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return c, nil
}

// List 条目不存在时返回空列表
func (s *CommentService) List(ctx context.Context, itemID uint) ([]domain.Comment, error) {
	cs, err := s.comments.ListByItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	if cs == nil {
		cs = []domain.Comment{}
	}
	return cs, nil
}
