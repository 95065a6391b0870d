package router

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-gin-gorm-cms/internal/domain"
	"go-gin-gorm-cms/internal/service"
	httpez "go-gin-gorm-cms/internal/transport/http/ez"
	mdw "go-gin-gorm-cms/internal/transport/http/middleware"
)

// adminModule /admin/*，分组已经要求 admin 角色
type adminModule struct{ svc *service.AdminService }

func (adminModule) Priority() int { return 30 }

type updateUserIn struct {
	Username *string `json:"username"`
	Role     *string `json:"role"`
}

type auditQ struct {
	Q      string `form:"q"`
	Limit  int    `form:"limit,default=50" binding:"min=1,max=500"`
	Offset int    `form:"offset,default=0" binding:"min=0"`
}

func (m adminModule) MountAPI(g Groups) {
	httpez.Register(g.Admin, httpez.Action[struct{}, []domain.User]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: httpez.BindNone,
		Auth:   true,
		Handler: func(_ *gin.Context, ctx context.Context, _ *struct{}) ([]domain.User, error) {
			return m.svc.ListUsers(ctx)
		},
	})

	httpez.Register(g.Admin, httpez.Action[updateUserIn, *domain.User]{
		Method: http.MethodPut,
		Path:   "/users/:id",
		Binder: httpez.BindJSON,
		Auth:   true,
		UseTx:  true,
		Handler: func(c *gin.Context, ctx context.Context, in *updateUserIn) (*domain.User, error) {
			id, err := httpez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			return m.svc.UpdateUser(ctx, mdw.CurrentUser(c), id, service.UpdateUserInput{
				Username: in.Username, Role: in.Role,
			})
		},
	})

	httpez.Register(g.Admin, httpez.Action[auditQ, service.AuditPage]{
		Method: http.MethodGet,
		Path:   "/audit",
		Binder: httpez.BindQuery,
		Auth:   true,
		Handler: func(_ *gin.Context, ctx context.Context, in *auditQ) (service.AuditPage, error) {
			return m.svc.ListAudit(ctx, domain.AuditQuery{
				Q: in.Q, Page: domain.Page{Offset: in.Offset, Limit: in.Limit},
			})
		},
	})
}
