package router

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-gin-gorm-cms/internal/domain"
	"go-gin-gorm-cms/internal/service"
	httpez "go-gin-gorm-cms/internal/transport/http/ez"
	mdw "go-gin-gorm-cms/internal/transport/http/middleware"
)

// itemModule 条目 CRUD、附件、评论、统计
type itemModule struct {
	items    *service.ItemService
	comments *service.CommentService
}

func (itemModule) Priority() int { return 20 }

type listItemsQ struct {
	Q      string `form:"q"`
	Limit  int    `form:"limit,default=100" binding:"min=1,max=1000"`
	Offset int    `form:"offset,default=0"  binding:"min=0"`
}

type itemIn struct {
	Title       string  `json:"title" binding:"required"`
	Category    *string `json:"category"`
	Description *string `json:"description"`
}

func (in *itemIn) input() service.ItemInput {
	return service.ItemInput{Title: in.Title, Category: in.Category, Description: in.Description}
}

type commentIn struct {
	Content string `json:"content" binding:"required"`
}

type okOut struct {
	OK bool `json:"ok"`
}

func (m itemModule) MountAPI(g Groups) {
	httpez.Register(g.User, httpez.Action[listItemsQ, []domain.Item]{
		Method: http.MethodGet,
		Path:   "/items",
		Binder: httpez.BindQuery,
		Auth:   true,
		Handler: func(c *gin.Context, ctx context.Context, in *listItemsQ) ([]domain.Item, error) {
			return m.items.List(ctx, mdw.CurrentUser(c).ID, service.ItemQuery{
				Q: in.Q, Page: domain.Page{Offset: in.Offset, Limit: in.Limit},
			})
		},
	})

	httpez.Register(g.User, httpez.Action[itemIn, *domain.Item]{
		Method: http.MethodPost,
		Path:   "/items",
		Binder: httpez.BindJSON,
		Auth:   true,
		UseTx:  true,
		Handler: func(c *gin.Context, ctx context.Context, in *itemIn) (*domain.Item, error) {
			return m.items.Create(ctx, mdw.CurrentUser(c).ID, in.input())
		},
	})

	httpez.Register(g.User, httpez.Action[itemIn, *domain.Item]{
		Method: http.MethodPut,
		Path:   "/items/:id",
		Binder: httpez.BindJSON,
		Auth:   true,
		UseTx:  true,
		Handler: func(c *gin.Context, ctx context.Context, in *itemIn) (*domain.Item, error) {
			id, err := httpez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			return m.items.Update(ctx, mdw.CurrentUser(c).ID, id, in.input())
		},
	})

	httpez.Register(g.User, httpez.Action[struct{}, okOut]{
		Method: http.MethodDelete,
		Path:   "/items/:id",
		Binder: httpez.BindNone,
		Auth:   true,
		UseTx:  true,
		Handler: func(c *gin.Context, ctx context.Context, _ *struct{}) (okOut, error) {
			id, err := httpez.ParamID(c, "id")
			if err != nil {
				return okOut{}, err
			}
			if err := m.items.Delete(ctx, mdw.CurrentUser(c).ID, id); err != nil {
				return okOut{}, err
			}
			return okOut{OK: true}, nil
		},
	})

	// multipart 流式读取：找到 file 字段后直接交给 service，不先落内存/临时表单。
	// 不开请求事务，读取请求体期间不占数据库锁；file_path 单条 UPDATE 自动提交
	httpez.Register(g.User, httpez.Action[struct{}, *domain.Item]{
		Method: http.MethodPost,
		Path:   "/items/:id/upload-multipart",
		Binder: httpez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, ctx context.Context, _ *struct{}) (*domain.Item, error) {
			id, err := httpez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			mr, err := c.Request.MultipartReader()
			if err != nil {
				return nil, httpez.BadRequest("expected multipart/form-data")
			}
			for {
				part, err := mr.NextPart()
				if errors.Is(err, io.EOF) {
					return nil, httpez.BadRequest("file field is required")
				}
				if err != nil {
					var mbe *http.MaxBytesError
					if errors.As(err, &mbe) {
						return nil, err
					}
					return nil, httpez.BadRequest("malformed multipart body")
				}
				if part.FormName() != "file" || part.FileName() == "" {
					_ = part.Close()
					continue
				}
				it, err := m.items.AttachFile(ctx, mdw.CurrentUser(c).ID, id, part.FileName(), part)
				_ = part.Close()
				return it, err
			}
		},
	})

	httpez.Register(g.User, httpez.Action[struct{}, domain.CategoryStats]{
		Method: http.MethodGet,
		Path:   "/stats",
		Binder: httpez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, ctx context.Context, _ *struct{}) (domain.CategoryStats, error) {
			return m.items.Stats(ctx, mdw.CurrentUser(c).ID)
		},
	})

	httpez.Register(g.User, httpez.Action[commentIn, *domain.Comment]{
		Method: http.MethodPost,
		Path:   "/items/:id/comments",
		Binder: httpez.BindJSON,
		Auth:   true,
		UseTx:  true,
		Handler: func(c *gin.Context, ctx context.Context, in *commentIn) (*domain.Comment, error) {
			id, err := httpez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			return m.comments.Add(ctx, mdw.CurrentUser(c), id, in.Content)
		},
	})

	httpez.Register(g.Public, httpez.Action[struct{}, []domain.Comment]{
		Method: http.MethodGet,
		Path:   "/items/:id/comments",
		Binder: httpez.BindNone,
		Handler: func(c *gin.Context, ctx context.Context, _ *struct{}) ([]domain.Comment, error) {
			id, err := httpez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			return m.comments.List(ctx, id)
		},
	})
}
