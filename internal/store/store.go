// 包 store: 提供与 PostgreSQL 的只读数据访问层，包含城市、国家元数据与查询统计
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"globe-api/internal/dataset"
	"globe-api/internal/logger"
)

// Store: 数据库访问入口，持有连接池并提供查询/统计接口
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// Open: 使用 DSN 打开数据库连接并配置连接池参数
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	return &Store{db: db}, nil
}

// Close: 关闭数据库连接
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// 文档注释：读取全部城市
// 背景：云端城市表替代随包 cities.json，字段与导出格式一致；坐标非法的行跳过。
// 约束：国家代码统一大写；importance 为空视为 1。
func (s *Store) Cities(ctx context.Context) ([]dataset.City, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name_en, name_zh, lat, lon, country_code, importance FROM _globe_cities ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query cities: %w", err)
	}
	defer rows.Close()
	var out []dataset.City
	skipped := 0
	for rows.Next() {
		var (
			c   dataset.City
			imp sql.NullFloat64
		)
		if err := rows.Scan(&c.NameEn, &c.NameZh, &c.Lat, &c.Lon, &c.CountryCode, &imp); err != nil {
			return nil, err
		}
		if !validCity(c) {
			skipped++
			continue
		}
		c.CountryCode = strings.ToUpper(strings.TrimSpace(c.CountryCode))
		c.Importance = 1
		if imp.Valid {
			c.Importance = imp.Float64
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	logger.L().Debug("db_cities_loaded", "count", len(out), "skipped", skipped)
	return out, nil
}

func validCity(c dataset.City) bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// CountryMeta: 读取国家元数据，键为大写国家代码；面积/人口为空时记为 0（未知）
func (s *Store) CountryMeta(ctx context.Context) (map[string]dataset.CountryMeta, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT code, name_en, name_zh, capital_en, capital_zh, area_km2, pop_est, label_lon, label_lat FROM _globe_country_meta")
	if err != nil {
		return nil, fmt.Errorf("query country meta: %w", err)
	}
	defer rows.Close()
	out := make(map[string]dataset.CountryMeta)
	for rows.Next() {
		var (
			m              dataset.CountryMeta
			area, pop      sql.NullFloat64
			lblLon, lblLat sql.NullFloat64
		)
		if err := rows.Scan(&m.Code, &m.NameEn, &m.NameZh, &m.CapitalEn, &m.CapitalZh, &area, &pop, &lblLon, &lblLat); err != nil {
			return nil, err
		}
		m.Code = strings.ToUpper(strings.TrimSpace(m.Code))
		if m.Code == "" {
			continue
		}
		m.AreaKm2 = area.Float64
		m.Population = pop.Float64
		if lblLon.Valid && lblLat.Valid {
			lon, lat := lblLon.Float64, lblLat.Float64
			m.LabelLon, m.LabelLat = &lon, &lat
		}
		out[m.Code] = m
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	logger.L().Debug("db_country_meta_loaded", "count", len(out))
	return out, nil
}

// IncrStats: 成功定位后递增总计与当日计数；近似结果单独计数
// 约束：三条语句互不依赖，全部执行后合并返回错误
func (s *Store) IncrStats(ctx context.Context, approx bool) error {
	stmts := []string{
		"UPDATE _globe_stats_total SET total_queries=total_queries+1 WHERE id=1",
		"INSERT INTO _globe_stats_daily(day, queries) VALUES(current_date, 1) ON CONFLICT (day) DO UPDATE SET queries=_globe_stats_daily.queries+1",
	}
	if approx {
		stmts = append(stmts, "UPDATE _globe_stats_total SET approx_queries=approx_queries+1 WHERE id=1")
	}
	var errs []error
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			errs = append(errs, err)
		}
	}
	logger.L().Debug("stats_incr", "approx", approx, "errors", len(errs))
	return errors.Join(errs...)
}

// Totals: 统计返回结构，包含累计、近似与当日定位次数
type Totals struct {
	Total  int64
	Approx int64
	Today  int64
}

// GetTotals: 读取累计与当日定位次数，用于接口返回
// 约束：累计行由建表时写入，缺失视为错误；当日尚无查询时当日计数为 0
func (s *Store) GetTotals(ctx context.Context) (*Totals, error) {
	var t Totals
	if err := s.db.QueryRowContext(ctx, "SELECT total_queries, approx_queries FROM _globe_stats_total WHERE id=1").Scan(&t.Total, &t.Approx); err != nil {
		return nil, fmt.Errorf("read stats total: %w", err)
	}
	err := s.db.QueryRowContext(ctx, "SELECT queries FROM _globe_stats_daily WHERE day=current_date").Scan(&t.Today)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read stats daily: %w", err)
	}
	logger.L().Debug("stats_totals", "total", t.Total, "today", t.Today)
	return &t, nil
}

// 文档注释：批量写入城市（导入工具使用）
// 背景：同一事务内预编译 UPSERT，以 (country_code, name_en) 去重；重复导入只更新坐标与重要度。
// 约束：坐标非法的条目跳过；返回实际写入条数。
func (s *Store) ImportCities(ctx context.Context, cities []dataset.City) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO _globe_cities(name_en, name_zh, lat, lon, country_code, importance) VALUES($1,$2,$3,$4,$5,$6)
		ON CONFLICT (country_code, name_en) DO UPDATE SET name_zh=EXCLUDED.name_zh, lat=EXCLUDED.lat, lon=EXCLUDED.lon, importance=EXCLUDED.importance`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	n := 0
	for _, c := range cities {
		if !validCity(c) || c.NameEn == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, c.NameEn, c.NameZh, c.Lat, c.Lon, strings.ToUpper(c.CountryCode), c.Importance); err != nil {
			return n, fmt.Errorf("city %s: %w", c.NameEn, err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	logger.L().Info("db_cities_imported", "count", n, "skipped", len(cities)-n)
	return n, nil
}

// ImportCountryMeta: 按国家代码 UPSERT 元数据；面积/人口为 0 写入 NULL
func (s *Store) ImportCountryMeta(ctx context.Context, meta map[string]dataset.CountryMeta) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO _globe_country_meta(code, name_en, name_zh, capital_en, capital_zh, area_km2, pop_est, label_lon, label_lat)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (code) DO UPDATE SET name_en=EXCLUDED.name_en, name_zh=EXCLUDED.name_zh, capital_en=EXCLUDED.capital_en, capital_zh=EXCLUDED.capital_zh,
		area_km2=EXCLUDED.area_km2, pop_est=EXCLUDED.pop_est, label_lon=EXCLUDED.label_lon, label_lat=EXCLUDED.label_lat`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	n := 0
	for code, m := range meta {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		var lblLon, lblLat sql.NullFloat64
		if m.LabelLon != nil && m.LabelLat != nil {
			lblLon = sql.NullFloat64{Float64: *m.LabelLon, Valid: true}
			lblLat = sql.NullFloat64{Float64: *m.LabelLat, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, code, m.NameEn, m.NameZh, m.CapitalEn, m.CapitalZh,
			positiveOrNull(m.AreaKm2), positiveOrNull(m.Population), lblLon, lblLat); err != nil {
			return n, fmt.Errorf("meta %s: %w", code, err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	logger.L().Info("db_country_meta_imported", "count", n)
	return n, nil
}

func positiveOrNull(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: v > 0}
}
