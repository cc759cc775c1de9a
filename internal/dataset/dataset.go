// 包 dataset：启动时加载国家边界、城市与国家元数据，并构建标签记录
package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"globe-api/internal/geo"
	"globe-api/internal/logger"
	"globe-api/internal/revgeo"
)

// 数据目录中的文件名
const (
	FeaturesFile = "countries.geojson"
	CitiesFile   = "cities.json"
	MetaFile     = "country_meta.json"
)

// City 城市数据（与云端导出格式一致）
type City struct {
	NameEn      string  `json:"name_en"`
	NameZh      string  `json:"name_zh"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	CountryCode string  `json:"country_code"`
	Importance  float64 `json:"importance"`
}

// CountryMeta 国家补充信息；面积/人口为 0 表示未知
type CountryMeta struct {
	Code       string   `json:"code"`
	NameEn     string   `json:"NAME_EN"`
	NameZh     string   `json:"NAME_ZH"`
	CapitalEn  string   `json:"CAPITAL_EN"`
	CapitalZh  string   `json:"CAPITAL_ZH"`
	AreaKm2    float64  `json:"AREA_KM2"`
	Population float64  `json:"POP_EST"`
	LabelLon   *float64 `json:"LABEL_LON,omitempty"`
	LabelLat   *float64 `json:"LABEL_LAT,omitempty"`
}

// 文档注释：进程内常驻的全部静态数据
// 背景：启动时加载一次，之后只读；命中判定使用 Features，标签构建使用全部三项。
// 约束：Meta 的键为大写国家代码；Cities 已剔除坐标非法的条目。
type Dataset struct {
	Features []revgeo.Feature
	Cities   []City
	Meta     map[string]CountryMeta
}

// 文档注释：从数据目录并发加载三类数据
// 背景：三个文件相互独立，使用 errgroup 并行读取与解析，任一失败即取消其余。
// 约束：国家边界文件必需；城市与元数据文件缺失时视为空集合。
func LoadDir(ctx context.Context, dir string) (*Dataset, error) {
	ds := &Dataset{Meta: map[string]CountryMeta{}}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		feats, err := revgeo.LoadFeaturesFile(filepath.Join(dir, FeaturesFile))
		if err != nil {
			return err
		}
		ds.Features = feats
		return ctx.Err()
	})
	g.Go(func() error {
		cities, err := readOptional(ctx, filepath.Join(dir, CitiesFile), DecodeCities)
		if err != nil {
			return err
		}
		ds.Cities = cities
		return nil
	})
	g.Go(func() error {
		meta, err := readOptional(ctx, filepath.Join(dir, MetaFile), DecodeMeta)
		if err != nil {
			return err
		}
		if meta != nil {
			ds.Meta = meta
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.L().Info("dataset_loaded", "dir", dir, "features", len(ds.Features), "cities", len(ds.Cities), "meta", len(ds.Meta))
	return ds, nil
}

func readOptional[T any](ctx context.Context, path string, decode func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.L().Debug("dataset_file_missing", "path", path)
		return zero, nil
	}
	if err != nil {
		return zero, err
	}
	defer f.Close()
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	v, err := decode(f)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return v, nil
}

type rawCity struct {
	NameEn      string   `json:"name_en"`
	En          string   `json:"en"`
	Name        string   `json:"name"`
	NameZh      string   `json:"name_zh"`
	Zh          string   `json:"zh"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
	CountryCode string   `json:"country_code"`
	CC          string   `json:"cc"`
	Importance  *float64 `json:"importance"`
	Score       *float64 `json:"score"`
}

// DecodeCities 解析城市数组；兼容 en/name/zh/cc/score 等旧字段，重要度缺省为 1，
// 坐标缺失或越界的条目丢弃，国家代码统一大写。
func DecodeCities(r io.Reader) ([]City, error) {
	var raw []rawCity
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, err
	}
	out := make([]City, 0, len(raw))
	for _, c := range raw {
		if c.Lat == nil || c.Lon == nil || !geo.ValidLonLat(*c.Lon, *c.Lat) || math.Abs(*c.Lat) > 90 {
			continue
		}
		imp := 1.0
		if c.Importance != nil {
			imp = *c.Importance
		} else if c.Score != nil {
			imp = *c.Score
		}
		out = append(out, City{
			NameEn:      firstNonEmpty(c.NameEn, c.En, c.Name),
			NameZh:      firstNonEmpty(c.NameZh, c.Zh),
			Lat:         *c.Lat,
			Lon:         *c.Lon,
			CountryCode: strings.ToUpper(strings.TrimSpace(firstNonEmpty(c.CountryCode, c.CC))),
			Importance:  imp,
		})
	}
	logger.L().Debug("dataset_cities_decoded", "count", len(out), "dropped", len(raw)-len(out))
	return out, nil
}

// DecodeMeta 解析以国家代码为键的元数据对象
func DecodeMeta(r io.Reader) (map[string]CountryMeta, error) {
	var raw map[string]CountryMeta
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, err
	}
	out := make(map[string]CountryMeta, len(raw))
	for k, m := range raw {
		code := strings.ToUpper(strings.TrimSpace(k))
		if code == "" {
			continue
		}
		m.Code = code
		out[code] = m
	}
	return out, nil
}

// Source 城市与元数据的外部来源（如数据库）
type Source interface {
	Cities(ctx context.Context) ([]City, error)
	CountryMeta(ctx context.Context) (map[string]CountryMeta, error)
}

// Merge 用外部来源覆盖文件中的城市与元数据；来源返回空集合时保留文件数据
func (ds *Dataset) Merge(ctx context.Context, src Source) error {
	cities, err := src.Cities(ctx)
	if err != nil {
		return fmt.Errorf("cities: %w", err)
	}
	meta, err := src.CountryMeta(ctx)
	if err != nil {
		return fmt.Errorf("country meta: %w", err)
	}
	if len(cities) > 0 {
		ds.Cities = cities
	}
	for code, m := range meta {
		ds.Meta[code] = m
	}
	logger.L().Info("dataset_merged", "cities", len(cities), "meta", len(meta))
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
