package database

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"net/url"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	// 纯 Go 的 sqlite 驱动，注册名 "sqlite"
	_ "modernc.org/sqlite"
)

var ErrUnsupportedDriver = errors.New("database: unsupported driver")

type Opts struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	PrepareStmt        bool
	LogLevel           string
	// gorm 日志输出，通常是 logger.ToWriter(zap)；为空丢弃
	LogWriter io.Writer
}

func dialector(o Opts) (gorm.Dialector, error) {
	switch o.Driver {
	case "sqlite":
		return gormsqlite.Dialector{DriverName: "sqlite", DSN: o.DSN}, nil
	case "postgres":
		return postgres.Open(o.DSN), nil
	case "mysql":
		return mysql.Open(normalizeMySQLDSN(o.DSN, o.Username, o.Password)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, o.Driver)
	}
}

func NewGorm(o Opts) (*gorm.DB, error) {
	dial, err := dialector(o)
	if err != nil {
		return nil, err
	}
	lvl := logger.Warn
	switch o.LogLevel {
	case "silent":
		lvl = logger.Silent
	case "error":
		lvl = logger.Error
	case "info":
		lvl = logger.Info
	}
	w := o.LogWriter
	if w == nil {
		w = io.Discard
	}
	gl := logger.New(stdlog.New(w, "", 0), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  lvl,
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(dial, &gorm.Config{
		Logger:                 gl,
		PrepareStmt:            o.PrepareStmt,
		CreateBatchSize:        200,
		SkipDefaultTransaction: true, // 写操作由 Action 统一开 Tx
		TranslateError:         true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if o.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(o.MaxOpenConns)
	}
	if o.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(o.MaxIdleConns)
	}
	if o.ConnMaxLifetimeMin > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(o.ConnMaxLifetimeMin) * time.Minute)
	}
	return db, nil
}

// MaskDSN 隐藏 user:pass@ 中的密码，仅用于日志
func MaskDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at <= 0 {
		return dsn
	}
	userinfo := dsn[:at]
	start := 0
	if i := strings.Index(userinfo, "://"); i >= 0 {
		start = i + 3
	}
	colon := strings.Index(userinfo[start:], ":")
	if colon < 0 {
		return dsn
	}
	return dsn[:start+colon+1] + "****" + dsn[at:]
}

// jdbc 风格参数 -> go-sql-driver 参数；值为空表示直接丢弃
var jdbcParams = map[string]string{
	"characterEncoding":    "charset",
	"serverTimezone":       "loc",
	"useSSL":               "tls",
	"useUnicode":           "",
	"zeroDateTimeBehavior": "",
}

// normalizeMySQLDSN 接受 mysql:// 或 jdbc:mysql:// URL，转成 user:pass@tcp(host)/db?...；
// 原生 DSN 只在没有凭据时补上 user/pass。
func normalizeMySQLDSN(input, user, pass string) string {
	in := strings.TrimPrefix(strings.TrimSpace(input), "jdbc:")
	if in == "" {
		return in
	}
	if !strings.HasPrefix(in, "mysql://") {
		if user != "" && !strings.Contains(in, "@") {
			return mysqlCred(user, pass) + in
		}
		return in
	}

	u, err := url.Parse(in)
	if err != nil {
		return in // 交给驱动报错
	}
	// 显式传入的 user/pass 优先，其次 URL userinfo，最后 query
	q := u.Query()
	urlUser, urlPass := q.Get("user"), q.Get("password")
	q.Del("user")
	q.Del("password")
	if u.User != nil {
		urlUser = u.User.Username()
		if p, ok := u.User.Password(); ok {
			urlPass = p
		}
	}
	user, pass = cmp.Or(user, urlUser), cmp.Or(pass, urlPass)

	for from, to := range jdbcParams {
		v := q.Get(from)
		q.Del(from)
		if v == "" || to == "" || q.Get(to) != "" {
			continue
		}
		if to == "tls" {
			switch strings.ToLower(v) {
			case "true", "1":
				v = "true"
			case "skip-verify", "preferred":
				v = strings.ToLower(v)
			default:
				v = "false"
			}
		}
		q.Set(to, v)
	}
	if q.Get("parseTime") == "" {
		q.Set("parseTime", "true")
	}
	if q.Get("charset") == "" {
		q.Set("charset", "utf8mb4")
	}

	dsn := fmt.Sprintf("%stcp(%s)/%s", mysqlCred(user, pass), u.Host, strings.TrimPrefix(u.Path, "/"))
	if enc := q.Encode(); enc != "" {
		dsn += "?" + enc
	}
	return dsn
}

func mysqlCred(user, pass string) string {
	switch {
	case user == "":
		return ""
	case pass == "":
		return user + "@"
	}
	return user + ":" + pass + "@"
}
