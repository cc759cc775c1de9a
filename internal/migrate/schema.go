package migrate

import (
	"database/sql"

	"globe-api/internal/logger"
)

// 背景：首次运行自动创建城市、国家元数据与统计表，保障后续导入与查询
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；仅创建最小必需结构
func EnsureSchema(db *sql.DB) error {
	for i, s := range statements {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}

var statements = []string{
	`CREATE TABLE IF NOT EXISTS _globe_cities (
            id SERIAL PRIMARY KEY,
            name_en TEXT NOT NULL,
            name_zh TEXT NOT NULL DEFAULT '',
            lat DOUBLE PRECISION NOT NULL,
            lon DOUBLE PRECISION NOT NULL,
            country_code TEXT NOT NULL DEFAULT '',
            importance DOUBLE PRECISION
        )`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_globe_city ON _globe_cities(country_code, name_en)`,
	`CREATE TABLE IF NOT EXISTS _globe_country_meta (
            code TEXT PRIMARY KEY,
            name_en TEXT NOT NULL DEFAULT '',
            name_zh TEXT NOT NULL DEFAULT '',
            capital_en TEXT NOT NULL DEFAULT '',
            capital_zh TEXT NOT NULL DEFAULT '',
            area_km2 DOUBLE PRECISION,
            pop_est DOUBLE PRECISION,
            label_lon DOUBLE PRECISION,
            label_lat DOUBLE PRECISION
        )`,
	`CREATE TABLE IF NOT EXISTS _globe_stats_total (
            id INT PRIMARY KEY,
            total_queries BIGINT NOT NULL DEFAULT 0,
            approx_queries BIGINT NOT NULL DEFAULT 0
        )`,
	`CREATE TABLE IF NOT EXISTS _globe_stats_daily (
            day DATE PRIMARY KEY,
            queries BIGINT NOT NULL DEFAULT 0
        )`,
	`INSERT INTO _globe_stats_total(id, total_queries, approx_queries)
         VALUES(1, 0, 0)
         ON CONFLICT (id) DO NOTHING`,
}
