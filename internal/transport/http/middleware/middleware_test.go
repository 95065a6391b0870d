package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"go-gin-gorm-cms/internal/domain"
)

func init() { gin.SetMode(gin.TestMode) }

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type fakeGate struct {
	users map[string]*domain.User
	err   error
}

func (g fakeGate) Authenticate(_ context.Context, token string) (*domain.User, error) {
	if g.err != nil {
		return nil, g.err
	}
	u, ok := g.users[token]
	if !ok {
		return nil, domain.Unauthorized("invalid or expired token")
	}
	return u, nil
}

func (g fakeGate) Authorize(u *domain.User, role domain.Role) (*domain.User, error) {
	if u.Role != role {
		return nil, domain.Forbidden("insufficient role")
	}
	return u, nil
}

func TestAuthJWT(t *testing.T) {
	g := fakeGate{users: map[string]*domain.User{
		"u-tok": {ID: 1, Username: "u", Role: domain.RoleUser},
		"a-tok": {ID: 2, Username: "a", Role: domain.RoleAdmin},
	}}
	r := gin.New()
	r.GET("/me", AuthJWT(g, ""), func(c *gin.Context) { c.String(200, CurrentUser(c).Username) })
	r.GET("/admin", AuthJWT(g, domain.RoleAdmin), func(c *gin.Context) { c.String(200, "ok") })

	get := func(path, auth string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		return serve(r, req)
	}

	w := get("/me", "")
	assert.Equal(t, 401, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	assert.Equal(t, 401, get("/me", "Bearer nope").Code)
	assert.Equal(t, 401, get("/me", "Basic u-tok").Code)

	w = get("/me", "bearer u-tok")
	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "u", w.Body.String())

	assert.Equal(t, 403, get("/admin", "Bearer u-tok").Code)
	assert.Equal(t, 200, get("/admin", "Bearer a-tok").Code)
}

func TestAuthJWT_InfraErrorIs500(t *testing.T) {
	r := gin.New()
	r.GET("/me", AuthJWT(fakeGate{err: errors.New("db down")}, ""), func(c *gin.Context) {})
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer x")
	w := serve(r, req)
	assert.Equal(t, 500, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

func TestRateLimitPerIP(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitPerIP(0.001, 2))
	r.GET("/", func(c *gin.Context) { c.Status(200) })

	req := func(ip string) int {
		rq := httptest.NewRequest(http.MethodGet, "/", nil)
		rq.RemoteAddr = ip + ":1234"
		return serve(r, rq).Code
	}
	assert.Equal(t, 200, req("10.0.0.1"))
	assert.Equal(t, 200, req("10.0.0.1"))
	assert.Equal(t, 429, req("10.0.0.1"))
	assert.Equal(t, 200, req("10.0.0.2"), "buckets are per ip")
}

func TestRateLimit_Global(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(0.001, 1))
	r.GET("/", func(c *gin.Context) { c.Status(200) })
	assert.Equal(t, 200, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	assert.Equal(t, 429, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
}

func TestMaxBodyBytes(t *testing.T) {
	r := gin.New()
	r.Use(MaxBodyBytes(4))
	r.POST("/", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			c.Status(413)
			return
		}
		c.Status(200)
	})

	assert.Equal(t, 200, serve(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("1234"))).Code)
	assert.Equal(t, 413, serve(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("12345"))).Code)

	// 未声明长度时靠 MaxBytesReader 截断
	req := httptest.NewRequest(http.MethodPost, "/", io.NopCloser(strings.NewReader("12345")))
	req.ContentLength = -1
	assert.Equal(t, 413, serve(r, req).Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(200, c.GetString(KeyRequestID)) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get(KeyRequestID))
	assert.Equal(t, w.Header().Get(KeyRequestID), w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(KeyRequestID, "abc")
	assert.Equal(t, "abc", serve(r, req).Header().Get(KeyRequestID))
}

func TestTimeout(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(10 * time.Millisecond))
	r.GET("/slow", func(c *gin.Context) { <-c.Request.Context().Done() })
	r.GET("/fast", func(c *gin.Context) { c.Status(200) })

	assert.Equal(t, 504, serve(r, httptest.NewRequest(http.MethodGet, "/slow", nil)).Code)
	assert.Equal(t, 200, serve(r, httptest.NewRequest(http.MethodGet, "/fast", nil)).Code)
}

func TestConcurrencyLimit_BusyWhenCtxDone(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(20*time.Millisecond), ConcurrencyLimit(1))
	hold := make(chan struct{})
	entered := make(chan struct{})
	r.GET("/", func(c *gin.Context) {
		close(entered)
		<-hold
		c.Status(200)
	})

	done := make(chan int)
	go func() { done <- serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code }()
	<-entered

	assert.Equal(t, 503, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	close(hold)
	<-done
}

func TestAccessLog_MasksAndLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := gin.New()
	r.Use(RequestID(), AccessLog(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(200) })
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("db exploded"))
		c.Status(500)
	})

	serve(r, httptest.NewRequest(http.MethodGet, "/ok?token=abc&x=1", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	q := entries[0].ContextMap()["query"]
	assert.Contains(t, q, "token")
	assert.NotContains(t, toString(q), "abc")
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Contains(t, entries[1].ContextMap()["errors"], "db exploded")
}

func toString(v any) string {
	if m, ok := v.(map[string][]string); ok {
		var b strings.Builder
		for k, vs := range m {
			b.WriteString(k + "=" + strings.Join(vs, ","))
		}
		return b.String()
	}
	return ""
}
