// 数据导入工具：把城市与国家元数据 JSON 写入 PostgreSQL，供服务以数据库为准加载
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"globe-api/internal/dataset"
	"globe-api/internal/logger"
	"globe-api/internal/migrate"
	"globe-api/internal/store"
	"globe-api/internal/utils"
)

// 文档注释：导入入口
// 背景：CITIES_SRC / META_SRC 可为本地路径或 http(s) 地址，缺省读取 DATA_DIR 下的同名文件；
// 写入前按结构约束校验，校验失败只告警，非法条目在解码与写库时跳过。
// 约束：整批在单个事务内提交；任一来源失败以非零状态退出。
func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()
	dir := os.Getenv("DATA_DIR")
	if dir == "" {
		dir = "data"
	}
	citiesSrc := envOr("CITIES_SRC", filepath.Join(dir, dataset.CitiesFile))
	metaSrc := envOr("META_SRC", filepath.Join(dir, dataset.MetaFile))

	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := migrate.EnsureSchema(db); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}
	st := store.AttachDB(db)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if b, err := fetch(ctx, citiesSrc); err != nil {
		l.Error("cities_fetch_error", "src", citiesSrc, "err", err)
		os.Exit(1)
	} else {
		if err := dataset.ValidateCitiesJSON(b); err != nil {
			l.Warn("cities_schema_warn", "err", err)
		}
		cities, err := dataset.DecodeCities(bytes.NewReader(b))
		if err != nil {
			l.Error("cities_decode_error", "err", err)
			os.Exit(1)
		}
		n, err := st.ImportCities(ctx, cities)
		if err != nil {
			l.Error("cities_import_error", "err", err)
			os.Exit(1)
		}
		l.Info("cities_import_success", "count", n)
	}

	if b, err := fetch(ctx, metaSrc); err != nil {
		l.Error("meta_fetch_error", "src", metaSrc, "err", err)
		os.Exit(1)
	} else {
		if err := dataset.ValidateMetaJSON(b); err != nil {
			l.Warn("meta_schema_warn", "err", err)
		}
		meta, err := dataset.DecodeMeta(bytes.NewReader(b))
		if err != nil {
			l.Error("meta_decode_error", "err", err)
			os.Exit(1)
		}
		n, err := st.ImportCountryMeta(ctx, meta)
		if err != nil {
			l.Error("meta_import_error", "err", err)
			os.Exit(1)
		}
		l.Info("meta_import_success", "count", n)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// fetch 读取本地文件或下载远程文件
func fetch(ctx context.Context, src string) ([]byte, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return os.ReadFile(src)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
