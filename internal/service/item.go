package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"go-gin-gorm-cms/internal/core/cache"
	"go-gin-gorm-cms/internal/core/database"
	"go-gin-gorm-cms/internal/domain"
)

const (
	DefaultItemLimit = 100
	MaxItemLimit     = 1000
)

// FileStore 上传文件落地
type FileStore interface {
	Save(r io.Reader, originalName string) (string, error)
	Remove(path string) error
}

type ItemInput struct {
	Title       string
	Category    *string
	Description *string
}

type ItemQuery struct {
	Q string
	domain.Page
}

type ItemService struct {
	items     domain.ItemRepository
	files     FileStore
	cache     *cache.Cache
	statsTTL  time.Duration
	urlPrefix string
	log       *zap.Logger
}

type ItemOptions struct {
	Files     FileStore
	Cache     *cache.Cache // nil 表示不缓存
	StatsTTL  time.Duration
	URLPrefix string
	Logger    *zap.Logger
}

func NewItemService(items domain.ItemRepository, o ItemOptions) *ItemService {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.StatsTTL <= 0 {
		o.StatsTTL = time.Minute
	}
	if o.URLPrefix == "" {
		o.URLPrefix = "/uploads"
	}
	return &ItemService{
		items: items, files: o.Files, cache: o.Cache,
		statsTTL: o.StatsTTL, urlPrefix: o.URLPrefix, log: o.Logger,
	}
}

func statsKey(owner uint) string { return "stats:" + strconv.FormatUint(uint64(owner), 10) }

// 提交成功后再删缓存，回滚时不动
func (s *ItemService) invalidateStats(ctx context.Context, owner uint) {
	database.AfterCommit(ctx, func() {
		if err := s.cache.Invalidate(context.Background(), statsKey(owner)); err != nil {
			s.log.Warn("stats cache invalidate failed", zap.Uint("owner", owner), zap.Error(err))
		}
	})
}

func (s *ItemService) withURL(it *domain.Item) *domain.Item { return it.WithFileURL(s.urlPrefix) }

// List 先取出该用户全部条目（新的在前），再在内存里过滤标题并分页
func (s *ItemService) List(ctx context.Context, owner uint, q ItemQuery) ([]domain.Item, error) {
	if q.Limit == 0 {
		q.Limit = DefaultItemLimit
	}
	if q.Limit < 1 || q.Limit > MaxItemLimit {
		return nil, domain.Invalid("limit must be between 1 and %d", MaxItemLimit)
	}
	if q.Offset < 0 {
		return nil, domain.Invalid("offset must be >= 0")
	}

	all, err := s.items.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	if needle := strings.ToLower(strings.TrimSpace(q.Q)); needle != "" {
		kept := all[:0]
		for _, it := range all {
			if strings.Contains(strings.ToLower(it.Title), needle) {
				kept = append(kept, it)
			}
		}
		all = kept
	}

	out := []domain.Item{}
	if q.Offset < len(all) {
		end := min(q.Offset+q.Limit, len(all))
		out = append(out, all[q.Offset:end]...)
	}
	for i := range out {
		s.withURL(&out[i])
	}
	return out, nil
}

func (s *ItemService) Create(ctx context.Context, owner uint, in ItemInput) (*domain.Item, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, domain.Invalid("title is required")
	}
	it := &domain.Item{Title: in.Title, Category: domain.DefaultCategory, OwnerID: owner}
	if in.Category != nil && strings.TrimSpace(*in.Category) != "" {
		it.Category = *in.Category
	}
	if in.Description != nil {
		it.Description = *in.Description
	}
	if err := s.items.Create(ctx, it); err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	s.invalidateStats(ctx, owner)
	return s.withURL(it), nil
}

// Update 整体替换：category/description 未给出时回到默认值，和创建一致
func (s *ItemService) Update(ctx context.Context, owner, id uint, in ItemInput) (*domain.Item, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, domain.Invalid("title is required")
	}
	it, err := s.owned(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	it.Title = in.Title
	it.Category = domain.DefaultCategory
	if in.Category != nil && strings.TrimSpace(*in.Category) != "" {
		it.Category = *in.Category
	}
	it.Description = ""
	if in.Description != nil {
		it.Description = *in.Description
	}
	if err := s.items.Update(ctx, it); err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	s.invalidateStats(ctx, owner)
	return s.withURL(it), nil
}

// Delete 同时删除评论；附件在提交后尽力删除
func (s *ItemService) Delete(ctx context.Context, owner, id uint) error {
	it, err := s.owned(ctx, owner, id)
	if err != nil {
		return err
	}
	ok, err := s.items.DeleteOwned(ctx, id, owner)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if !ok {
		return domain.NotFound("item")
	}
	s.invalidateStats(ctx, owner)
	if it.FilePath != nil {
		s.removeAfterCommit(ctx, *it.FilePath)
	}
	return nil
}

// AttachFile 先校验归属（不是自己的不落盘），再流式写文件并更新 file_path。
// 调用方不应在读取请求体期间持有事务；若仍在事务中，回滚时删掉新文件
func (s *ItemService) AttachFile(ctx context.Context, owner, id uint, filename string, r io.Reader) (*domain.Item, error) {
	if s.files == nil {
		return nil, fmt.Errorf("attach file: no file store configured")
	}
	it, err := s.owned(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	stored, err := s.files.Save(r, filename)
	if err != nil {
		return nil, err
	}
	old := it.FilePath
	it.FilePath = &stored
	if err := s.items.Update(ctx, it); err != nil {
		_ = s.files.Remove(stored)
		return nil, fmt.Errorf("update item file: %w", err)
	}
	database.AfterRollback(ctx, func() {
		if err := s.files.Remove(stored); err != nil {
			s.log.Warn("remove upload failed", zap.String("path", stored), zap.Error(err))
		}
	})
	if old != nil && *old != stored {
		s.removeAfterCommit(ctx, *old)
	}
	return s.withURL(it), nil
}

func (s *ItemService) removeAfterCommit(ctx context.Context, path string) {
	if s.files == nil {
		return
	}
	database.AfterCommit(ctx, func() {
		if err := s.files.Remove(path); err != nil {
			s.log.Warn("remove upload failed", zap.String("path", path), zap.Error(err))
		}
	})
}

// Stats 按分类计数，有缓存时走 redis
func (s *ItemService) Stats(ctx context.Context, owner uint) (domain.CategoryStats, error) {
	stats, err := cache.GetOrLoadJSON(s.cache, ctx, statsKey(owner), s.statsTTL,
		func(ctx context.Context) (domain.CategoryStats, error) {
			return s.items.CountByCategory(ctx, owner)
		})
	if err != nil {
		return nil, fmt.Errorf("item stats: %w", err)
	}
	if stats == nil {
		stats = domain.CategoryStats{}
	}
	return stats, nil
}

func (s *ItemService) owned(ctx context.Context, owner, id uint) (*domain.Item, error) {
	it, err := s.items.FindOwned(ctx, id, owner)
	if err != nil {
		return nil, fmt.Errorf("find item: %w", err)
	}
	if it == nil {
		return nil, domain.NotFound("item")
	}
	return it, nil
}
