// 包 geo：经纬度与球面几何的纯函数内核；所有外部接口使用 (lon, lat) 度数
package geo

import "math"

// NormalizeLon 将任意经度映射到 (-180, 180]
// 约束：幂等；NaN/Inf 原样返回，由调用方按“永不命中”处理
func NormalizeLon(lon float64) float64 {
	if math.IsNaN(lon) || math.IsInf(lon, 0) {
		return lon
	}
	x := math.Mod(lon, 360)
	if x <= -180 {
		x += 360
	} else if x > 180 {
		x -= 360
	}
	return x
}

// WrapLonTo 返回与 lon 同余（mod 360）且落在 [center-180, center+180) 的经度
// 背景：射线法假设平面坐标不回绕，需要先以查询点为中心展开
func WrapLonTo(lon, center float64) float64 {
	if math.IsNaN(lon) || math.IsInf(lon, 0) || math.IsNaN(center) || math.IsInf(center, 0) {
		return lon
	}
	d := math.Mod(lon-center+180, 360)
	if d < 0 {
		d += 360
	}
	return center - 180 + d
}

// lonDelta 返回从 a 到 b 的最短有向经度差，落在 (-180, 180]
func lonDelta(a, b float64) float64 {
	return NormalizeLon(b - a)
}

// ValidLonLat 报告坐标是否为有限数值（不校验范围）
func ValidLonLat(lon, lat float64) bool {
	return !math.IsNaN(lon) && !math.IsNaN(lat) && !math.IsInf(lon, 0) && !math.IsInf(lat, 0)
}
