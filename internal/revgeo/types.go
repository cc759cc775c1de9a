package revgeo

import (
	"math"

	"github.com/paulmach/orb"
)

// GeometryType 源数据中的几何类型
type GeometryType string

const (
	GeomPolygon      GeometryType = "Polygon"
	GeomMultiPolygon GeometryType = "MultiPolygon"
)

// 文档注释：国家/地区面要素的最小数据结构
// 背景：加载后常驻内存，只读共享；命中判定、标签锚点与 LOD 元数据均从这里取。
// 约束：Polygon 要素也以单元素 MultiPolygon 存储；每个多边形第一环为外环，其余为洞；
// BBox 为固定坐标系下的反经线感知包围盒（Min[0] > Max[0] 表示跨反经线），仅用于粗过滤。
type Feature struct {
	ID     int
	Code   string // 规范化国家代码（大写 ISO3/ISO2），缺失为空
	Name   string
	NameZh string
	Type   GeometryType
	Polys  orb.MultiPolygon
	BBox   orb.Bound
	Anchor orb.Point // 标签锚点 (lon, lat)

	AreaKm2    float64 // NaN 表示未知
	Population float64 // NaN 表示未知

	Props map[string]any
}

// Valid 报告要素是否至少有一个可用的包围盒
func (f *Feature) Valid() bool {
	return f != nil && !math.IsNaN(f.BBox.Min[0]) && !math.IsNaN(f.BBox.Min[1])
}

// Overlap 构建期校验发现的两个要素重叠（同一采样点同时落在两者内部）
type Overlap struct {
	A, B    int // 要素 ID，A < B
	CodeA   string
	CodeB   string
	Samples int
	Example orb.Point
}

// Match 一次定位查询的结果
// Approx 表示结果来自最近锚点兜底而非多边形命中
type Match struct {
	Feature  *Feature
	Lon, Lat float64 // 转换后的 WGS84 坐标
	Approx   bool
	DistKm   float64
	Cached   bool
}
