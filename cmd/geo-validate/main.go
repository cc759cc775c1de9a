package main

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"globe-api/internal/dataset"
	"globe-api/internal/logger"
	"globe-api/internal/revgeo"
)

// 文档注释：离线校验数据目录
// 背景：命中判定依赖“国家面互不重叠”，标签依赖城市/元数据文件结构正确；加载时这些问题只会被静默跳过，
// 发布数据前用本工具一次性列出：要素重叠对、无代码要素、JSON 结构错误。
// 约束：采样步长由 VALIDATE_STEP_DEG 指定（默认 0.5 度）；发现任何问题时以非零状态退出。
func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()
	dir := os.Getenv("DATA_DIR")
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}
	if dir == "" {
		dir = "data"
	}
	step := 0.5
	if s := os.Getenv("VALIDATE_STEP_DEG"); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil && v > 0 {
			step = v
		}
	}
	problems := 0

	if err := dataset.ValidateDir(dir); err != nil {
		l.Error("json_schema_error", "dir", dir, "err", err)
		problems++
	}

	ds, err := dataset.LoadDir(context.Background(), dir)
	if err != nil {
		l.Error("dataset_load_error", "dir", filepath.Clean(dir), "err", err)
		os.Exit(1)
	}
	for _, f := range ds.Features {
		if f.Code == "" {
			l.Warn("feature_without_code", "id", f.ID, "name", f.Name)
		}
	}
	for _, o := range revgeo.ValidateOverlaps(ds.Features, step) {
		l.Error("feature_overlap", "a", o.CodeA, "b", o.CodeB, "samples", o.Samples, "lon", o.Example[0], "lat", o.Example[1])
		problems++
	}
	if problems > 0 {
		l.Error("validate_failed", "problems", problems)
		os.Exit(1)
	}
	l.Info("validate_ok", "features", len(ds.Features), "cities", len(ds.Cities), "meta", len(ds.Meta))
}
