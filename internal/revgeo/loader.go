package revgeo

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"globe-api/internal/geo"
	"globe-api/internal/logger"
)

// 国家代码候选属性，按优先级排列
var codeKeys = []string{"ADM0_A3", "ISO_A3", "ISO_A2", "ISO", "CC"}

// 文档注释：从 GeoJSON FeatureCollection 加载国家面要素
// 背景：边界数据来自 Natural Earth 一类的静态文件，属性键名不统一（ADM0_A3/ISO_A3/ISO_A2/ISO/CC）。
// 约束：加载时一次性规范化出唯一的 Code，查询期不再按属性分支；非面几何被跳过；
// 要素 ID 为其在返回切片中的下标。
func LoadFeatures(r io.Reader) ([]Feature, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read geojson: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}
	out := make([]Feature, 0, len(fc.Features))
	skipped := 0
	for _, gf := range fc.Features {
		if gf == nil {
			skipped++
			continue
		}
		f, ok := NewFeature(len(out), gf.Geometry, gf.Properties)
		if !ok {
			skipped++
			continue
		}
		out = append(out, f)
	}
	logger.L().Debug("revgeo_features_loaded", "count", len(out), "skipped", skipped)
	return out, nil
}

// LoadFeaturesFile 打开文件并调用 LoadFeatures
func LoadFeaturesFile(path string) ([]Feature, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer fp.Close()
	return LoadFeatures(fp)
}

// NewFeature 由几何与属性构造要素；几何不是 Polygon/MultiPolygon 或没有有效顶点时返回 false
func NewFeature(id int, g orb.Geometry, props map[string]any) (Feature, bool) {
	var (
		mp orb.MultiPolygon
		gt GeometryType
	)
	switch v := g.(type) {
	case orb.Polygon:
		mp, gt = orb.MultiPolygon{v}, GeomPolygon
	case orb.MultiPolygon:
		mp, gt = v, GeomMultiPolygon
	default:
		return Feature{}, false
	}
	mp = cleanMultiPolygon(mp)
	if len(mp) == 0 {
		return Feature{}, false
	}
	if props == nil {
		props = map[string]any{}
	}
	var outers []orb.Ring
	for _, p := range mp {
		outers = append(outers, p[0])
	}
	f := Feature{
		ID:         id,
		Code:       NormalizeCode(props),
		Name:       firstString(props, "NAME", "ADMIN", "NAME_EN", "name"),
		NameZh:     firstString(props, "NAME_ZH", "name_zh"),
		Type:       gt,
		Polys:      mp,
		BBox:       geo.WrappedBound(outers),
		AreaKm2:    positiveOrNaN(props, "AREA_KM2"),
		Population: positiveOrNaN(props, "POP_EST"),
		Props:      props,
	}
	f.Anchor = labelAnchor(props, mp)
	return f, true
}

// NormalizeCode 取第一个非空且不为 "-99" 的代码属性，统一大写
func NormalizeCode(props map[string]any) string {
	for _, k := range codeKeys {
		s, ok := props[k].(string)
		if !ok {
			continue
		}
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || s == "-99" {
			continue
		}
		return s
	}
	return ""
}

// cleanMultiPolygon 丢弃非有限坐标与少于 3 个顶点的环；外环无效时整个多边形丢弃
func cleanMultiPolygon(mp orb.MultiPolygon) orb.MultiPolygon {
	out := make(orb.MultiPolygon, 0, len(mp))
	for _, poly := range mp {
		var np orb.Polygon
		for i, ring := range poly {
			r := make(orb.Ring, 0, len(ring))
			for _, p := range ring {
				if geo.ValidLonLat(p[0], p[1]) {
					r = append(r, p)
				}
			}
			if len(r) < 3 {
				if i == 0 {
					break
				}
				continue
			}
			np = append(np, r)
		}
		if len(np) > 0 {
			out = append(out, np)
		}
	}
	return out
}

// labelAnchor 优先使用数据提供的 LABEL_X/LABEL_Y；否则取面积最大的多边形的质心。
// 质心在以首顶点为中心展开后的坐标上计算，跨反经线的多边形不会被拉到 0° 附近。
func labelAnchor(props map[string]any, mp orb.MultiPolygon) orb.Point {
	x, okx := toFloat(props["LABEL_X"])
	y, oky := toFloat(props["LABEL_Y"])
	if okx && oky && geo.ValidLonLat(x, y) {
		return orb.Point{geo.NormalizeLon(x), y}
	}
	var (
		best     orb.Point
		bestArea = -1.0
	)
	for _, poly := range mp {
		center := poly[0][0][0]
		u, _ := geo.UnrollRing(poly[0], center)
		if len(u) < 3 {
			continue
		}
		closed := append(u, u[0])
		c, area := planar.CentroidArea(orb.Polygon{closed})
		if math.Abs(area) > bestArea {
			bestArea = math.Abs(area)
			best = orb.Point{geo.NormalizeLon(c[0]), c[1]}
		}
	}
	return best
}

func firstString(props map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := props[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// positiveOrNaN 数值属性；缺失、非数值或 <= 0 视为未知
func positiveOrNaN(props map[string]any, key string) float64 {
	if v, ok := toFloat(props[key]); ok && v > 0 {
		return v
	}
	return math.NaN()
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x) && !math.IsInf(x, 0)
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
