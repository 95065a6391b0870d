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

// authModule /register /login /refresh /me
type authModule struct{ svc *service.AuthService }

func (authModule) Priority() int { return 10 }

type credentialsIn struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshIn struct {
	RefreshToken string `json:"refresh_token"`
}

func (m authModule) MountAPI(g Groups) {
	httpez.Register(g.Public, httpez.Action[credentialsIn, *domain.User]{
		Method: http.MethodPost,
		Path:   "/register",
		Binder: httpez.BindJSON,
		UseTx:  true,
		Handler: func(_ *gin.Context, ctx context.Context, in *credentialsIn) (*domain.User, error) {
			return m.svc.Register(ctx, in.Username, in.Password)
		},
	})

	httpez.Register(g.Public, httpez.Action[credentialsIn, service.TokenPair]{
		Method: http.MethodPost,
		Path:   "/login",
		Binder: httpez.BindJSON,
		UseTx:  true, // 可能顺带升级密码哈希
		Handler: func(_ *gin.Context, ctx context.Context, in *credentialsIn) (service.TokenPair, error) {
			return m.svc.Login(ctx, in.Username, in.Password)
		},
	})

	// refresh_token 缺失由 service 返回 400，不依赖 binding tag
	httpez.Register(g.Public, httpez.Action[refreshIn, service.AccessToken]{
		Method: http.MethodPost,
		Path:   "/refresh",
		Binder: httpez.BindJSON,
		Handler: func(_ *gin.Context, _ context.Context, in *refreshIn) (service.AccessToken, error) {
			return m.svc.Refresh(in.RefreshToken)
		},
	})

	httpez.Register(g.User, httpez.Action[struct{}, *domain.User]{
		Method: http.MethodGet,
		Path:   "/me",
		Binder: httpez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ context.Context, _ *struct{}) (*domain.User, error) {
			return mdw.CurrentUser(c), nil
		},
	})
}
