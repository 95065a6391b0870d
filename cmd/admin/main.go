package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"go-gin-gorm-cms/internal/app"
	"go-gin-gorm-cms/internal/core/config"
	"go-gin-gorm-cms/internal/core/logger"
)

const usage = `usage: admin [-config path] <command> [args]

commands:
  seed               create demo/demopass, admin/adminpass and demo items
  promote <username> grant the admin role (recorded in the audit log)
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("admin", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file (default $CONFIG_PATH or ./configs/config.local.yaml)")
	actor := fs.String("actor", "cli", "actor name written to audit records")
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	_ = godotenv.Load()
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}
	log, cleanup := logger.New(logger.FromConfig(cfg.Log))
	defer cleanup()

	ctx := context.Background()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("bootstrap failed", zap.Error(err))
		return 1
	}
	defer a.Close()

	switch cmd := fs.Arg(0); cmd {
	case "seed":
		res, err := a.Seeder.Run(ctx)
		if err != nil {
			log.Error("seed failed", zap.Error(err))
			return 1
		}
		log.Info("seed done", zap.Int("users", res.Users), zap.Int("items", res.Items))
	case "promote":
		if fs.NArg() != 2 {
			fs.Usage()
			return 2
		}
		u, err := a.Admin.Promote(ctx, *actor, fs.Arg(1))
		if err != nil {
			log.Error("promote failed", zap.String("username", fs.Arg(1)), zap.Error(err))
			return 1
		}
		log.Info("user promoted", zap.String("username", u.Username), zap.Uint("id", u.ID))
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		fs.Usage()
		return 2
	}
	return 0
}
