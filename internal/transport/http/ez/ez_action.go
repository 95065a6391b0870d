package ez

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"go-gin-gorm-cms/internal/core/database"
	"go-gin-gorm-cms/internal/domain"
	mdw "go-gin-gorm-cms/internal/transport/http/middleware"
	resp "go-gin-gorm-cms/internal/transport/http/response"
)

// EZ 一个分组 + 事务用的 DB
type EZ struct {
	g  *gin.RouterGroup
	db *gorm.DB
}

func New(g *gin.RouterGroup, db *gorm.DB) EZ { return EZ{g: g, db: db} }

// 绑定方式
type Binder string

const (
	BindJSON  Binder = "json"  // 从 JSON 绑定
	BindQuery Binder = "query" // 从 URL ?a=b 绑定
	BindNone  Binder = "none"  // 不绑定，自己从 c.Param / multipart 取
)

// AErr 传输层自己的错误（参数格式等），业务错误走 domain 哨兵
type AErr struct {
	Code int
	Msg  string
	Err  error
}

func (e *AErr) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "action error"
}

func (e *AErr) Unwrap() error { return e.Err }

func BadRequest(msg string) error   { return &AErr{Code: http.StatusBadRequest, Msg: msg} }
func Unauthorized(msg string) error { return &AErr{Code: http.StatusUnauthorized, Msg: msg} }
func Forbidden(msg string) error    { return &AErr{Code: http.StatusForbidden, Msg: msg} }
func NotFound(msg string) error     { return &AErr{Code: http.StatusNotFound, Msg: msg} }
func Internal(msg string, err error) error {
	return &AErr{Code: http.StatusInternalServerError, Msg: msg, Err: err}
}

// 动作定义：I 入参，O 出参
type Action[I any, O any] struct {
	Method  string // "GET" | "POST" | "PUT" | "DELETE"
	Path    string // 例："/items/:id/comments"
	Binder  Binder
	Auth    bool // 要求已登录（分组上的 AuthJWT 负责解析，这里再兜一次）
	UseTx   bool // 整个 handler 跑在一个事务里，ctx 里带 tx
	Status  int  // 成功状态码，默认 200
	Handler func(c *gin.Context, ctx context.Context, in *I) (O, error)
}

// Register 在当前 EZ 下注册动作接口
func Register[I any, O any](e EZ, a Action[I, O]) {
	status := a.Status
	if status == 0 {
		status = http.StatusOK
	}

	h := func(c *gin.Context) {
		// 1) 鉴权
		if a.Auth && mdw.CurrentUser(c) == nil {
			resp.Abort(c, resp.CodeUnauthorized, "not authenticated")
			return
		}

		// 2) 绑定入参
		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		default: // BindNone: 不绑定
		}
		if bindErr != nil {
			var mbe *http.MaxBytesError
			if errors.As(bindErr, &mbe) {
				resp.Abort(c, resp.CodeTooLarge, "request body too large")
				return
			}
			resp.Abort(c, resp.CodeBadRequest, bindErr.Error())
			return
		}

		// 3) 执行（可选事务）
		var out O
		var err error
		if a.UseTx {
			err = database.Transaction(c.Request.Context(), e.db, func(ctx context.Context) error {
				o, herr := a.Handler(c, ctx, &in)
				out = o
				return herr
			})
		} else {
			out, err = a.Handler(c, c.Request.Context(), &in)
		}

		// 4) 统一错误映射
		if err != nil {
			code, msg := StatusOf(err)
			if code >= http.StatusInternalServerError {
				_ = c.Error(err)
			}
			resp.Abort(c, code, msg)
			return
		}
		c.JSON(status, out)
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default: // 默认 POST
		e.g.POST(a.Path, h)
	}
}

// StatusOf 错误 -> (HTTP 状态, 对外消息)；未知错误不透出细节
func StatusOf(err error) (int, string) {
	var ae *AErr
	if errors.As(err, &ae) {
		if ae.Code >= http.StatusInternalServerError {
			return ae.Code, "internal error"
		}
		return ae.Code, ae.Error()
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge, "request body too large"
	}

	msg := err.Error()
	var de *domain.Error
	if errors.As(err, &de) {
		msg = de.Msg
	}
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, msg
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, msg
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, msg
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, msg
	case errors.Is(err, domain.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, msg
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal error"
}

// ParamID 路径里的数字 id
func ParamID(c *gin.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		return 0, BadRequest("invalid " + name)
	}
	return uint(v), nil
}
