package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"go-gin-gorm-cms/internal/app"
	"go-gin-gorm-cms/internal/core/config"
	"go-gin-gorm-cms/internal/core/logger"
	"go-gin-gorm-cms/internal/core/server"
	"go-gin-gorm-cms/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, cleanup := logger.New(logger.FromConfig(cfg.Log))
	defer cleanup()
	defer logger.RedirectStdLog(log, zapcore.InfoLevel)()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("bootstrap failed", zap.Error(err))
	}
	defer a.Close()

	mode := gin.DebugMode
	if cfg.IsProd() {
		mode = gin.ReleaseMode
	}
	r := router.NewAPIEngine(router.Deps{
		Logger:   log,
		DB:       a.DB,
		Gate:     a.Gate,
		Auth:     a.Auth,
		Items:    a.Items,
		Comments: a.Comments,
		Admin:    a.Admin,
		Limits:   cfg.Limits,
		Upload:   config.Upload{Dir: a.Uploads.Dir(), URLPrefix: cfg.Upload.URLPrefix, MaxMB: cfg.Upload.MaxMB},
		Mode:     mode,
	})

	// HTTP Server
	addr := server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	srv := server.BuildServer(
		addr, r,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
	)

	// 启动日志
	host4human := cfg.App.HTTP.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.HTTP.Port)
	log.Info("cms api starting",
		zap.String("env", cfg.App.Env),
		zap.String("open", baseURL),
		zap.String("health", baseURL+"/health"),
		zap.String("api", baseURL+"/api"),
		zap.Bool("redis", a.Cache.Enabled()),
	)

	if err := server.Run(ctx, srv, log, 10*time.Second); err != nil {
		log.Error("cms api stopped with error", zap.Error(err))
		return
	}
	log.Info("cms api stopped gracefully")
}
