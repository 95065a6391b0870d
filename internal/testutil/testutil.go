package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"go-gin-gorm-cms/internal/core/auth"
	"go-gin-gorm-cms/internal/core/database"
	"go-gin-gorm-cms/internal/domain"
)

// OpenTestDB 打开一个独立的内存 SQLite 并迁移全部模型。
// 单连接：事务和 savepoint 都落在同一连接上，测试结果确定。
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "_" + uuid.NewString()[:8]
	db, err := database.NewGorm(database.Opts{
		Driver:       "sqlite",
		DSN:          "file:" + name + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		LogLevel:     "silent",
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(domain.Models()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// Hasher bcrypt 最低 cost，测试专用
func Hasher() *auth.PasswordHasher { return auth.NewPasswordHasher(bcrypt.MinCost) }

// CreateUser 直接落库一个用户（密码即用户名 + "pass"）
func CreateUser(t *testing.T, db *gorm.DB, username string, role domain.Role) *domain.User {
	t.Helper()
	h, err := Hasher().Hash(username + "pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &domain.User{Username: username, PasswordHash: h, Role: role}
	if err := db.WithContext(context.Background()).Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

// Tokens 测试用 TokenService（固定 secret）
func Tokens(t *testing.T) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService(auth.TokenOptions{
		Secret:     "test-secret-at-least-16-chars!!",
		Issuer:     "cms-test",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	return ts
}
