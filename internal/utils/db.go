// 包 utils：数据库与缓存连接工具，统一从环境变量读取连接参数
package utils

import (
	"database/sql"
	"net/url"
	"os"
	"strconv"

	_ "github.com/lib/pq"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// BuildPostgresDSNFromEnv：由 PG_* 环境变量拼接 DSN；用户名与密码做转义
func BuildPostgresDSNFromEnv() string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     getenv("PG_HOST", "localhost") + ":" + getenv("PG_PORT", "5432"),
		Path:     "/" + getenv("PG_DB", "globe"),
		RawQuery: "sslmode=" + getenv("PG_SSLMODE", "disable"),
	}
	user := getenv("PG_USER", "postgres")
	if pass := os.Getenv("PG_PASSWORD"); pass != "" {
		u.User = url.UserPassword(user, pass)
	} else {
		u.User = url.User(user)
	}
	return u.String()
}

// OpenPostgresFromEnv：打开连接池；数据只在启动时读取一次，连接数默认较小
// 约束：sql.Open 不会建立连接，调用方需要 Ping 确认可用
func OpenPostgresFromEnv() (*sql.DB, error) {
	db, err := sql.Open("postgres", BuildPostgresDSNFromEnv())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(getenvInt("PG_MAX_OPEN_CONNS", 10))
	db.SetMaxIdleConns(getenvInt("PG_MAX_IDLE_CONNS", 5))
	return db, nil
}
