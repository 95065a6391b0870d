package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
}

type App struct {
	Name string
	Env  string
	HTTP HTTP
}

type Log struct {
	Level string
	JSON  bool
	// 非空时额外写入文件并按大小切割
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type JWT struct {
	Secret            string
	Issuer            string
	AccessTokenTTLMin int
	RefreshTTLHours   int
	LeewaySec         int
}

func (j JWT) AccessTTL() time.Duration  { return time.Duration(j.AccessTokenTTLMin) * time.Minute }
func (j JWT) RefreshTTL() time.Duration { return time.Duration(j.RefreshTTLHours) * time.Hour }
func (j JWT) Leeway() time.Duration     { return time.Duration(j.LeewaySec) * time.Second }

type Redis struct {
	Addr        string `mapstructure:"addr"`
	Password    string `mapstructure:"password"`
	DB          int    `mapstructure:"db"`
	StatsTTLSec int    `mapstructure:"statsttlsec"`
}

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	PrepareStmt        bool
	LogLevel           string
}

type Upload struct {
	Dir       string
	URLPrefix string
	MaxMB     int
}

func (u Upload) MaxBytes() int64 { return int64(u.MaxMB) << 20 }

// Limits 入口保护（限流/并发/请求体/超时）
type Limits struct {
	RPS           float64
	Burst         int
	PerIPRPS      float64
	PerIPBurst    int
	MaxConcurrent int64
	MaxBodyMB     int64
	TimeoutSec    int
	CORSOrigins   []string
}

type Config struct {
	App    App
	Log    Log
	JWT    JWT
	DB     DB
	Redis  Redis `mapstructure:"redis"`
	Upload Upload
	Limits Limits
}

const devSecret = "dev-secret-key-change-me"

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "cms-api")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8000)
	v.SetDefault("app.http.readtimeoutsec", 15)
	v.SetDefault("app.http.writetimeoutsec", 60)
	v.SetDefault("app.http.idletimeoutsec", 60)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.maxsizemb", 100)
	v.SetDefault("log.maxbackups", 7)
	v.SetDefault("log.maxagedays", 30)
	v.SetDefault("log.compress", true)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "cms-api")
	v.SetDefault("jwt.accesstokenttlmin", 24*60)
	v.SetDefault("jwt.refreshttlhours", 7*24)
	v.SetDefault("jwt.leewaysec", 0)

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "file:cms.db?_pragma=busy_timeout(5000)")
	v.SetDefault("db.username", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.maxopenconns", 20)
	v.SetDefault("db.maxidleconns", 5)
	v.SetDefault("db.connmaxlifetimemin", 30)
	v.SetDefault("db.automigrate", true)
	v.SetDefault("db.preparestmt", false)
	v.SetDefault("db.loglevel", "warn")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.statsttlsec", 60)

	v.SetDefault("upload.dir", "uploads")
	v.SetDefault("upload.urlprefix", "/uploads")
	v.SetDefault("upload.maxmb", 10)

	v.SetDefault("limits.rps", 200)
	v.SetDefault("limits.burst", 400)
	v.SetDefault("limits.periprps", 20)
	v.SetDefault("limits.peripburst", 40)
	v.SetDefault("limits.maxconcurrent", 300)
	v.SetDefault("limits.maxbodymb", 16)
	v.SetDefault("limits.timeoutsec", 30)
	v.SetDefault("limits.corsorigins", []string{"*"})
}

// Load 读取 YAML（可选）+ APP_ 前缀环境变量。path 为空时取 CONFIG_PATH，
// 再退回 ./configs/config.local.yaml；文件不存在时只用默认值和环境变量。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat config %s: %w", path, err)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) IsProd() bool { return strings.EqualFold(c.App.Env, "prod") }

// Validate 校验关键项；非生产环境下缺省 secret 用开发值兜底
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		if c.IsProd() {
			return errors.New("jwt.secret is required in prod (APP_JWT_SECRET)")
		}
		c.JWT.Secret = devSecret
	}
	if c.IsProd() && len(c.JWT.Secret) < 16 {
		return errors.New("jwt.secret must be at least 16 characters")
	}
	if c.JWT.AccessTokenTTLMin <= 0 || c.JWT.RefreshTTLHours <= 0 {
		return errors.New("jwt ttl must be positive")
	}
	if c.Upload.MaxMB <= 0 {
		return errors.New("upload.maxmb must be positive")
	}
	if c.Upload.Dir == "" {
		return errors.New("upload.dir is required")
	}
	switch c.DB.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported db.driver %q", c.DB.Driver)
	}
	return nil
}
