package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-gin-gorm-cms/internal/core/config"
	"go-gin-gorm-cms/internal/domain"
	"go-gin-gorm-cms/internal/repo"
	"go-gin-gorm-cms/internal/service"
	"go-gin-gorm-cms/internal/storage"
	"go-gin-gorm-cms/internal/testutil"
)

type testAPI struct {
	t         *testing.T
	r         *gin.Engine
	uploadDir string
	users     *repo.UserRepo
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	db := testutil.OpenTestDB(t)
	users, items := repo.NewUserRepo(db), repo.NewItemRepo(db)
	comments, audits := repo.NewCommentRepo(db), repo.NewAuditRepo(db)
	tokens := testutil.Tokens(t)

	up := config.Upload{Dir: t.TempDir(), URLPrefix: "/uploads", MaxMB: 1}
	files, err := storage.NewUploads(up.Dir, up.MaxBytes())
	require.NoError(t, err)

	r := NewAPIEngine(Deps{
		DB:       db,
		Gate:     service.NewGate(tokens, users),
		Auth:     service.NewAuthService(users, testutil.Hasher(), tokens, nil),
		Items:    service.NewItemService(items, service.ItemOptions{Files: files, URLPrefix: up.URLPrefix}),
		Comments: service.NewCommentService(items, comments),
		Admin:    service.NewAdminService(users, audits, nil),
		Limits:   config.Limits{MaxBodyMB: 4, TimeoutSec: 5},
		Upload:   up,
		Mode:     gin.TestMode,
	})
	return &testAPI{t: t, r: r, uploadDir: up.Dir, users: users}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)
	return w
}

func (a *testAPI) upload(path, token, filename string, content []byte) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(a.t, mw.WriteField("note", "x"))
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(a.t, err)
	_, err = fw.Write(content)
	require.NoError(a.t, err)
	require.NoError(a.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type envelope struct {
	Code int            `json:"code"`
	Msg  string         `json:"msg"`
	Data map[string]any `json:"data"`
}

// register + login，返回 access token
func (a *testAPI) login(username string) string {
	a.t.Helper()
	creds := map[string]string{"username": username, "password": username + "pass"}
	w := a.do(http.MethodPost, "/api/register", "", creds)
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	w = a.do(http.MethodPost, "/api/login", "", creds)
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	return decode[service.TokenPair](a.t, w).AccessToken
}

func (a *testAPI) makeAdmin(username string) {
	a.t.Helper()
	u, err := a.users.FindByUsername(a.t.Context(), username)
	require.NoError(a.t, err)
	u.Role = domain.RoleAdmin
	require.NoError(a.t, a.users.Update(a.t.Context(), u))
}

func (a *testAPI) seedItems(token string) []domain.Item {
	a.t.Helper()
	var out []domain.Item
	for i := 1; i <= 6; i++ {
		cat := "beta"
		if i%2 == 0 {
			cat = "alpha"
		}
		w := a.do(http.MethodPost, "/api/items", token, map[string]string{"title": fmt.Sprintf("Demo Item %d", i), "category": cat})
		require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
		out = append(out, decode[domain.Item](a.t, w))
	}
	return out
}

func TestRegisterLoginMe(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(http.MethodPost, "/api/register", "", map[string]string{"username": "alice", "password": "secret"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":1,"username":"alice","role":"user"}`, w.Body.String())

	w = a.do(http.MethodPost, "/api/register", "", map[string]string{"username": "alice", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decode[envelope](t, w)
	assert.Equal(t, 400, env.Code)
	assert.Equal(t, "username already taken", env.Msg)

	w = a.do(http.MethodPost, "/api/register", "", map[string]string{"username": "bob"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPost, "/api/login", "", map[string]string{"username": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPost, "/api/login", "", map[string]string{"username": "alice", "password": "secret"})
	require.Equal(t, http.StatusOK, w.Code)
	pair := decode[service.TokenPair](t, w)
	assert.Equal(t, "bearer", pair.TokenType)

	w = a.do(http.MethodGet, "/api/me", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", decode[domain.User](t, w).Username)
	assert.NotContains(t, w.Body.String(), "password")

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/me", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/me", "junk", nil).Code)
}

func TestRefreshKinds(t *testing.T) {
	a := newTestAPI(t)
	creds := map[string]string{"username": "alice", "password": "secret"}
	a.do(http.MethodPost, "/api/register", "", creds)
	pair := decode[service.TokenPair](t, a.do(http.MethodPost, "/api/login", "", creds))

	w := a.do(http.MethodPost, "/api/refresh", "", map[string]string{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code)
	at := decode[service.AccessToken](t, w)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/me", at.AccessToken, nil).Code)

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/api/refresh", "", map[string]string{}).Code)
	assert.Equal(t, http.StatusUnauthorized,
		a.do(http.MethodPost, "/api/refresh", "", map[string]string{"refresh_token": pair.AccessToken}).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/me", pair.RefreshToken, nil).Code)
}

func TestItems_ListSearchPaging(t *testing.T) {
	a := newTestAPI(t)
	tok := a.login("demo")
	a.seedItems(tok)

	w := a.do(http.MethodGet, "/api/items?q=item%203", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode[[]domain.Item](t, w)
	require.Len(t, items, 1)
	assert.Equal(t, "Demo Item 3", items[0].Title)

	w = a.do(http.MethodGet, "/api/items?limit=2&offset=2", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	items = decode[[]domain.Item](t, w)
	require.Len(t, items, 2)
	assert.Equal(t, "Demo Item 4", items[0].Title)
	assert.Equal(t, "Demo Item 3", items[1].Title)

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/items?limit=0", tok, nil).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/items?limit=1001", tok, nil).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/items?offset=-1", tok, nil).Code)

	w = a.do(http.MethodGet, "/api/items?offset=100", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestItems_OwnershipIsolation(t *testing.T) {
	a := newTestAPI(t)
	ta, tb := a.login("alice"), a.login("bob")

	w := a.do(http.MethodPost, "/api/items", ta, map[string]string{"title": "secret"})
	require.Equal(t, http.StatusOK, w.Code)
	it := decode[domain.Item](t, w)
	assert.Equal(t, domain.DefaultCategory, it.Category)
	path := fmt.Sprintf("/api/items/%d", it.ID)

	items := decode[[]domain.Item](t, a.do(http.MethodGet, "/api/items", tb, nil))
	assert.Empty(t, items)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodPut, path, tb, map[string]string{"title": "x"}).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, path, tb, nil).Code)

	w = a.do(http.MethodPut, path, ta, map[string]string{"title": "renamed", "description": "d"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "renamed", decode[domain.Item](t, w).Title)

	w = a.do(http.MethodDelete, path, ta, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, path, ta, nil).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodDelete, "/api/items/abc", ta, nil).Code)
}

func TestItems_UpdateResetsOmittedFields(t *testing.T) {
	a := newTestAPI(t)
	tok := a.login("alice")

	w := a.do(http.MethodPost, "/api/items", tok, map[string]string{"title": "t", "category": "alpha", "description": "d"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	it := decode[domain.Item](t, w)
	path := fmt.Sprintf("/api/items/%d", it.ID)

	w = a.do(http.MethodPut, path, tok, map[string]string{"title": "t2"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[domain.Item](t, w)
	assert.Equal(t, "t2", got.Title)
	assert.Equal(t, domain.DefaultCategory, got.Category)
	assert.Equal(t, "", got.Description)

	items := decode[[]domain.Item](t, a.do(http.MethodGet, "/api/items", tok, nil))
	require.Len(t, items, 1)
	assert.Equal(t, domain.DefaultCategory, items[0].Category)
	assert.Equal(t, "", items[0].Description)

	w = a.do(http.MethodPut, path, tok, map[string]string{"description": "no title"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStats(t *testing.T) {
	a := newTestAPI(t)
	tok := a.login("demo")
	a.seedItems(tok)

	w := a.do(http.MethodGet, "/api/stats", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"alpha":3,"beta":3}`, w.Body.String())
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/stats", "", nil).Code)
}

func TestComments(t *testing.T) {
	a := newTestAPI(t)
	ta, tb := a.login("alice"), a.login("bob")
	it := decode[domain.Item](t, a.do(http.MethodPost, "/api/items", ta, map[string]string{"title": "t"}))

	w := a.do(http.MethodPost, "/api/items/9999/comments", tb, map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "item not found", decode[envelope](t, w).Msg)
	assert.Equal(t, "[]", strings.TrimSpace(a.do(http.MethodGet, "/api/items/9999/comments", "", nil).Body.String()))

	path := fmt.Sprintf("/api/items/%d/comments", it.ID)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodPost, path, "", map[string]string{"content": "x"}).Code)
	for _, c := range []string{"first", "second"} {
		require.Equal(t, http.StatusOK, a.do(http.MethodPost, path, tb, map[string]string{"content": c}).Code)
	}
	w = a.do(http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cs := decode[[]domain.Comment](t, w)
	require.Len(t, cs, 2)
	assert.Equal(t, "first", cs[0].Content)
}

func TestAdmin_RoleGate(t *testing.T) {
	a := newTestAPI(t)
	tu := a.login("user1")
	ta := a.login("root")
	a.makeAdmin("root")

	w := a.do(http.MethodGet, "/api/admin/users", tu, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 403, decode[envelope](t, w).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/admin/users", "", nil).Code)

	w = a.do(http.MethodGet, "/api/admin/users", ta, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.User](t, w), 2)

	// user 路由只要求登录，admin 同样可以访问
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/items", ta, nil).Code)
}

func TestAdmin_UpdateUserAndAudit(t *testing.T) {
	a := newTestAPI(t)
	a.login("user1")
	ta := a.login("root")
	a.makeAdmin("root")

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPut, "/api/admin/users/1", ta, map[string]string{"role": "god"}).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodPut, "/api/admin/users/999", ta, map[string]string{"role": "admin"}).Code)

	w := a.do(http.MethodPut, "/api/admin/users/1", ta, map[string]string{"role": "admin"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.RoleAdmin, decode[domain.User](t, w).Role)

	w = a.do(http.MethodGet, "/api/admin/audit?q=UPDATE", ta, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[service.AuditPage](t, w)
	assert.EqualValues(t, 1, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "root", page.Items[0].Actor)

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/admin/audit?limit=501", ta, nil).Code)
}

func uploadFiles(t *testing.T, dir string) []string {
	t.Helper()
	ents, err := os.ReadDir(dir)
	require.NoError(t, err)
	var out []string
	for _, e := range ents {
		out = append(out, e.Name())
	}
	return out
}

func TestUpload(t *testing.T) {
	a := newTestAPI(t)
	ta, tb := a.login("alice"), a.login("bob")
	it := decode[domain.Item](t, a.do(http.MethodPost, "/api/items", ta, map[string]string{"title": "t"}))
	path := fmt.Sprintf("/api/items/%d/upload-multipart", it.ID)

	w := a.upload(path, tb, "x.txt", []byte("hello"))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, uploadFiles(t, a.uploadDir), "no file written for foreign item")

	w = a.upload(path, ta, "big.bin", bytes.Repeat([]byte("a"), 1<<20+1))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, uploadFiles(t, a.uploadDir), "no partial file left")

	w = a.upload(path, ta, "hello.txt", []byte("hello"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[domain.Item](t, w)
	require.NotNil(t, got.FileURL)
	assert.True(t, strings.HasPrefix(*got.FileURL, "/uploads/"))

	w = a.do(http.MethodGet, *got.FileURL, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello", w.Body.String())

	items := decode[[]domain.Item](t, a.do(http.MethodGet, "/api/items", ta, nil))
	require.Len(t, items, 1)
	assert.Equal(t, got.FileURL, items[0].FileURL)

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+ta)
	rw := httptest.NewRecorder()
	a.r.ServeHTTP(rw, req)
	assert.Equal(t, http.StatusBadRequest, rw.Code)

	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/uploads/missing.txt", "", nil).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	a := newTestAPI(t)
	w := a.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":1}`, w.Body.String())

	w = a.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}
