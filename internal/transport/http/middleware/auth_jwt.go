package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"go-gin-gorm-cms/internal/domain"
	resp "go-gin-gorm-cms/internal/transport/http/response"
)

const KeyUser = "user"

// Authenticator 由 service.Gate 实现
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
	Authorize(u *domain.User, role domain.Role) (*domain.User, error)
}

// AuthJWT 解析 Bearer token 并把用户放进 gin.Context；requireRole 为空时只要求登录
func AuthJWT(g Authenticator, requireRole domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearer(c.GetHeader("Authorization"))
		if !ok {
			c.Header("WWW-Authenticate", "Bearer")
			resp.Abort(c, resp.CodeUnauthorized, "missing token")
			return
		}
		u, err := g.Authenticate(c.Request.Context(), token)
		if err == nil && requireRole != "" {
			u, err = g.Authorize(u, requireRole)
		}
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrUnauthorized):
				c.Header("WWW-Authenticate", "Bearer")
				resp.Abort(c, resp.CodeUnauthorized, err.Error())
			case errors.Is(err, domain.ErrForbidden):
				resp.Abort(c, resp.CodeForbidden, err.Error())
			default:
				_ = c.Error(err)
				resp.Abort(c, resp.CodeServerError, "internal error")
			}
			return
		}
		c.Set(KeyUser, u)
		c.Next()
	}
}

func bearer(h string) (string, bool) {
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}

// CurrentUser 未经过 AuthJWT 时为 nil
func CurrentUser(c *gin.Context) *domain.User {
	v, ok := c.Get(KeyUser)
	if !ok {
		return nil
	}
	u, _ := v.(*domain.User)
	return u
}
