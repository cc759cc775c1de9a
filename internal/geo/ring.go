package geo

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
)

const (
	// 查询纬度的微小抬升，避免射线恰好穿过顶点
	rayEpsilon = 1e-9
	// 展开后的经度跨度超过该值视为环绕极点或全球（如南极洲）
	polarSpanDeg = 350.0
)

// openRing 去掉与首点重复的闭合尾点与非有限坐标
func openRing(ring orb.Ring) orb.Ring {
	out := make(orb.Ring, 0, len(ring))
	for _, p := range ring {
		if ValidLonLat(p[0], p[1]) {
			out = append(out, p)
		}
	}
	if n := len(out); n >= 2 && out[0] == out[n-1] {
		out = out[:n-1]
	}
	return out
}

// UnrollRing 以 center 为参照连续展开环：首点按 WrapLonTo 落到 center 附近，
// 其后每个顶点相对前一个顶点取最短经度差。winding 为沿环累计的经度差，
// 对普通闭合环为 0，对环绕极点的环约为 ±360。
func UnrollRing(ring orb.Ring, center float64) (out orb.Ring, winding float64) {
	pts := openRing(ring)
	if len(pts) == 0 {
		return nil, 0
	}
	out = make(orb.Ring, len(pts))
	prev := WrapLonTo(pts[0][0], center)
	out[0] = orb.Point{prev, pts[0][1]}
	for i := 1; i < len(pts); i++ {
		d := lonDelta(pts[i-1][0], pts[i][0])
		prev += d
		winding += d
		out[i] = orb.Point{prev, pts[i][1]}
	}
	winding += lonDelta(pts[len(pts)-1][0], pts[0][0])
	return out, winding
}

// RingBBoxWrapped 计算以 center 展开后的包围盒 [minLon,minLat,maxLon,maxLat]
// 约束：结果依赖 center，不是环的固定属性；最终判定须与包含测试使用同一 center
func RingBBoxWrapped(ring orb.Ring, center float64) orb.Bound {
	u, _ := UnrollRing(ring, center)
	return boundOf(u)
}

func boundOf(r orb.Ring) orb.Bound {
	if len(r) == 0 {
		return orb.Bound{Min: orb.Point{math.NaN(), math.NaN()}, Max: orb.Point{math.NaN(), math.NaN()}}
	}
	b := orb.Bound{Min: r[0], Max: r[0]}
	for _, p := range r[1:] {
		b = b.Extend(p)
	}
	return b
}

// PointInRingWrapped 偶奇规则射线法；环先以 center 连续展开，再把查询经度
// 平移到展开环的同一周期内。水平边不计入（严格的 yi > y 跨越规则）。
// 少于 3 个有效顶点的环返回 false；环绕极点的环退化为纬度区间判定。
func PointInRingWrapped(lon, lat float64, ring orb.Ring, center float64) bool {
	if !ValidLonLat(lon, lat) {
		return false
	}
	u, winding := UnrollRing(ring, center)
	if len(u) < 3 {
		return false
	}
	b := boundOf(u)
	if math.Abs(winding) > 180 || b.Max[0]-b.Min[0] > polarSpanDeg {
		return lat >= b.Min[1] && lat <= b.Max[1]
	}
	x := WrapLonTo(lon, (b.Min[0]+b.Max[0])/2)
	y := lat + rayEpsilon
	inside := false
	n := len(u)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := u[i][0], u[i][1]
		xj, yj := u[j][0], u[j][1]
		if (yi > y) != (yj > y) {
			if x < (xj-xi)*(y-yi)/(yj-yi)+xi {
				inside = !inside
			}
		}
	}
	return inside
}

// RingIsPolar 报告环是否环绕极点（连续展开后不闭合）
func RingIsPolar(ring orb.Ring) bool {
	_, w := UnrollRing(ring, 0)
	return math.Abs(w) > 180
}

// lonArc 圆周上的经度弧段：起点 start ∈ (-180,180]，长度 length ∈ [0,360]
type lonArc struct {
	start  float64
	length float64
}

// WrappedBound 计算一组环在固定坐标系下的反经线感知包围盒。
// 每个环连续展开为一段经度弧，取所有弧并集的补集中最大的空隙，包围盒即空隙之外的部分。
// 当结果跨越反经线时 Min[0] > Max[0]；环绕极点或展开跨度超过 350° 时返回 [-180,180]，
// 与 PointInRingWrapped 的纬度退化判定保持一致。
func WrappedBound(rings []orb.Ring) orb.Bound {
	minLat, maxLat := math.Inf(1), math.Inf(-1)
	var arcs []lonArc
	full := false
	for _, r := range rings {
		u, w := UnrollRing(r, 0)
		if len(u) == 0 {
			continue
		}
		b := boundOf(u)
		minLat = math.Min(minLat, b.Min[1])
		maxLat = math.Max(maxLat, b.Max[1])
		span := b.Max[0] - b.Min[0]
		if math.Abs(w) > 180 || span > polarSpanDeg {
			full = true
			continue
		}
		arcs = append(arcs, lonArc{start: NormalizeLon(b.Min[0]), length: span})
	}
	if math.IsInf(minLat, 1) {
		return orb.Bound{Min: orb.Point{math.NaN(), math.NaN()}, Max: orb.Point{math.NaN(), math.NaN()}}
	}
	if full {
		return orb.Bound{Min: orb.Point{-180, minLat}, Max: orb.Point{180, maxLat}}
	}
	minLon, maxLon, ok := arcsBound(arcs)
	if !ok {
		return orb.Bound{Min: orb.Point{-180, minLat}, Max: orb.Point{180, maxLat}}
	}
	return orb.Bound{Min: orb.Point{minLon, minLat}, Max: orb.Point{maxLon, maxLat}}
}

// arcsBound 合并圆周弧段并返回最大空隙之外的经度范围。
// 超过 180 的弧拆成两段后在 [-180,180] 上线性合并，首尾之间的空隙按回绕计算。
func arcsBound(arcs []lonArc) (minLon, maxLon float64, ok bool) {
	type seg struct{ a, b float64 }
	var segs []seg
	for _, a := range arcs {
		end := a.start + a.length
		if end > 180 {
			segs = append(segs, seg{a.start, 180}, seg{-180, end - 360})
			continue
		}
		segs = append(segs, seg{a.start, end})
	}
	if len(segs) == 0 {
		return 0, 0, false
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].a < segs[j].a })
	merged := []seg{segs[0]}
	for _, s := range segs[1:] {
		last := &merged[len(merged)-1]
		if s.a <= last.b {
			if s.b > last.b {
				last.b = s.b
			}
			continue
		}
		merged = append(merged, s)
	}
	n := len(merged)
	// 回绕空隙：从末段终点经 180 到首段起点
	bestGap := merged[0].a + 360 - merged[n-1].b
	minLon, maxLon = merged[0].a, merged[n-1].b
	for i := 0; i+1 < n; i++ {
		if gap := merged[i+1].a - merged[i].b; gap > bestGap {
			bestGap = gap
			minLon, maxLon = merged[i+1].a, merged[i].b
		}
	}
	if bestGap <= 0 {
		return 0, 0, false
	}
	return minLon, maxLon, true
}

// BoundContains 判定点是否落在固定坐标系包围盒内；Min[0] > Max[0] 表示跨反经线
func BoundContains(b orb.Bound, lon, lat float64) bool {
	if !ValidLonLat(lon, lat) {
		return false
	}
	if lat < b.Min[1] || lat > b.Max[1] {
		return false
	}
	lon = NormalizeLon(lon)
	if b.Min[0] <= b.Max[0] {
		return (lon >= b.Min[0] && lon <= b.Max[0]) || (lon == 180 && b.Min[0] == -180)
	}
	return lon >= b.Min[0] || lon <= b.Max[0]
}

// BoundIntersects 判定包围盒 b 与不跨反经线的矩形 r 是否相交；r 贴 -180 时同时按 180 判定
func BoundIntersects(b, r orb.Bound) bool {
	if math.IsNaN(b.Min[0]) || math.IsNaN(b.Min[1]) {
		return false
	}
	if r.Min[1] > b.Max[1] || r.Max[1] < b.Min[1] {
		return false
	}
	return lonOverlap(b, r.Min[0], r.Max[0]) || (r.Min[0] <= -180 && lonOverlap(b, 180, 180))
}

func lonOverlap(b orb.Bound, lo, hi float64) bool {
	if b.Min[0] <= b.Max[0] {
		return lo <= b.Max[0] && hi >= b.Min[0]
	}
	return hi >= b.Min[0] || lo <= b.Max[0]
}

// BoundCrossesAntimeridian 报告包围盒是否跨反经线
func BoundCrossesAntimeridian(b orb.Bound) bool { return b.Min[0] > b.Max[0] }
