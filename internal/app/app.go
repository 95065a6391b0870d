package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"go-gin-gorm-cms/internal/core/auth"
	"go-gin-gorm-cms/internal/core/cache"
	"go-gin-gorm-cms/internal/core/config"
	"go-gin-gorm-cms/internal/core/database"
	"go-gin-gorm-cms/internal/core/logger"
	"go-gin-gorm-cms/internal/domain"
	"go-gin-gorm-cms/internal/repo"
	"go-gin-gorm-cms/internal/service"
	"go-gin-gorm-cms/internal/storage"
)

// App 两个二进制共用的依赖装配
type App struct {
	Cfg   *config.Config
	Log   *zap.Logger
	DB    *gorm.DB
	Cache *cache.Cache

	Users    *repo.UserRepo
	Gate     *service.Gate
	Auth     *service.AuthService
	Items    *service.ItemService
	Comments *service.CommentService
	Admin    *service.AdminService
	Seeder   *service.Seeder
	Uploads  *storage.Uploads
}

func New(ctx context.Context, cfg *config.Config, l *zap.Logger) (*App, error) {
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		PrepareStmt:        cfg.DB.PrepareStmt,
		LogLevel:           cfg.DB.LogLevel,
		LogWriter:          logger.ToWriter(l.Named("gorm"), zapcore.WarnLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	l.Info("database connected", zap.String("driver", cfg.DB.Driver), zap.String("dsn", database.MaskDSN(cfg.DB.DSN)))

	if cfg.DB.AutoMigrate {
		if err := db.WithContext(ctx).AutoMigrate(domain.Models()...); err != nil {
			return nil, fmt.Errorf("automigrate: %w", err)
		}
		l.Info("automigrate done")
	}

	c := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if c.Enabled() {
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := c.Ping(pctx)
		cancel()
		if err != nil {
			// 缓存只是加速，连不上也照常启动
			l.Warn("redis unreachable, stats cache will fall back to db", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			l.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
		}
	}

	tokens, err := auth.NewTokenService(auth.TokenOptions{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		AccessTTL:  cfg.JWT.AccessTTL(),
		RefreshTTL: cfg.JWT.RefreshTTL(),
		Leeway:     cfg.JWT.Leeway(),
	})
	if err != nil {
		return nil, err
	}

	uploads, err := storage.NewUploads(cfg.Upload.Dir, cfg.Upload.MaxBytes())
	if err != nil {
		return nil, err
	}

	users, items := repo.NewUserRepo(db), repo.NewItemRepo(db)
	comments, audits := repo.NewCommentRepo(db), repo.NewAuditRepo(db)

	a := &App{Cfg: cfg, Log: l, DB: db, Cache: c, Users: users, Uploads: uploads}
	a.Gate = service.NewGate(tokens, users)
	a.Auth = service.NewAuthService(users, auth.NewPasswordHasher(auth.DefaultCost), tokens, l.Named("auth"))
	a.Items = service.NewItemService(items, service.ItemOptions{
		Files:     uploads,
		Cache:     c,
		StatsTTL:  time.Duration(cfg.Redis.StatsTTLSec) * time.Second,
		URLPrefix: cfg.Upload.URLPrefix,
		Logger:    l.Named("items"),
	})
	a.Comments = service.NewCommentService(items, comments)
	a.Admin = service.NewAdminService(users, audits, l.Named("admin"))
	a.Seeder = service.NewSeeder(a.Auth, users, a.Items)
	return a, nil
}

func (a *App) Close() {
	if err := a.Cache.Close(); err != nil {
		a.Log.Warn("redis close", zap.Error(err))
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
