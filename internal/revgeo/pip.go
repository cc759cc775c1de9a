package revgeo

import (
	"github.com/paulmach/orb"

	"globe-api/internal/geo"
)

// 文档注释：点入多边形判定（Even-Odd，支持洞与多面）
// 背景：对索引给出的候选执行精确命中判定；环在判定前以查询经度为中心展开，反经线两侧都能命中。
// 约束：先用固定坐标系包围盒粗过滤（只拒绝、不误拒）；多面按数据顺序，第一个命中的多边形即返回。
func FeatureContains(lon, lat float64, f *Feature) bool {
	if f == nil || !geo.ValidLonLat(lon, lat) {
		return false
	}
	if !geo.BoundContains(f.BBox, lon, lat) {
		return false
	}
	for _, poly := range f.Polys {
		if polygonContains(lon, lat, poly) {
			return true
		}
	}
	return false
}

// 外环命中且不在任何洞内视为命中；每次判定都以 lon 为中心重新展开
func polygonContains(lon, lat float64, poly orb.Polygon) bool {
	if len(poly) == 0 {
		return false
	}
	if !geo.PointInRingWrapped(lon, lat, poly[0], lon) {
		return false
	}
	for _, hole := range poly[1:] {
		if geo.PointInRingWrapped(lon, lat, hole, lon) {
			return false
		}
	}
	return true
}
