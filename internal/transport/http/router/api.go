package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"go-gin-gorm-cms/internal/core/config"
	"go-gin-gorm-cms/internal/core/server"
	"go-gin-gorm-cms/internal/domain"
	"go-gin-gorm-cms/internal/service"
	httpez "go-gin-gorm-cms/internal/transport/http/ez"
	mdw "go-gin-gorm-cms/internal/transport/http/middleware"
)

type Deps struct {
	Logger   *zap.Logger
	DB       *gorm.DB
	Gate     mdw.Authenticator
	Auth     *service.AuthService
	Items    *service.ItemService
	Comments *service.CommentService
	Admin    *service.AdminService
	Limits   config.Limits
	Upload   config.Upload
	Mode     string // gin mode，为空不改
}

func NewAPIEngine(d Deps) *gin.Engine {
	l := d.Logger
	if l == nil {
		l = zap.NewNop()
	}
	r := server.NewRouter(l, server.Options{Mode: d.Mode, CORSOrigins: d.Limits.CORSOrigins})

	// 上传接口需要的请求体可能比全局上限大
	bodyLimit := max(d.Limits.MaxBodyMB<<20, d.Upload.MaxBytes()+1<<20)

	// 中间件
	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(rate.Limit(d.Limits.RPS), d.Limits.Burst),
		mdw.RateLimitPerIP(rate.Limit(d.Limits.PerIPRPS), d.Limits.PerIPBurst),
		mdw.ConcurrencyLimit(d.Limits.MaxConcurrent),
		mdw.MaxBodyBytes(bodyLimit),
		mdw.Timeout(time.Duration(d.Limits.TimeoutSec)*time.Second),
		mdw.Metrics(),
		mdw.AccessLog(l),
	)

	// 健康检查 / 指标 / 静态上传文件
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", mdw.MetricsHandler())
	if d.Upload.Dir != "" {
		prefix := d.Upload.URLPrefix
		if prefix == "" {
			prefix = "/uploads"
		}
		r.StaticFS(prefix, gin.Dir(d.Upload.Dir, false))
	}

	api := r.Group("/api")
	user := api.Group("", mdw.AuthJWT(d.Gate, ""))
	admin := api.Group("/admin", mdw.AuthJWT(d.Gate, domain.RoleAdmin))

	mountAll(Groups{
		Public: httpez.New(api, d.DB),
		User:   httpez.New(user, d.DB),
		Admin:  httpez.New(admin, d.DB),
	},
		authModule{svc: d.Auth},
		itemModule{items: d.Items, comments: d.Comments},
		adminModule{svc: d.Admin},
	)

	return r
}
