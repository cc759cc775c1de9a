package revgeo

import (
	"math"
	"strings"
)

// CoordSys 输入坐标系
type CoordSys string

const (
	WGS84 CoordSys = "WGS-84"
	GCJ02 CoordSys = "GCJ-02"
	BD09  CoordSys = "BD-09"
)

// ParseCoordSys 解析坐标系名称（大小写与连字符不敏感）；空串视为 WGS-84
func ParseCoordSys(s string) (CoordSys, bool) {
	k := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", ""))
	switch k {
	case "", "wgs84":
		return WGS84, true
	case "gcj02":
		return GCJ02, true
	case "bd09":
		return BD09, true
	}
	return WGS84, false
}

// ToWGS84 将输入坐标转换为 WGS84
func ToWGS84(lat, lon float64, cs CoordSys) (float64, float64) {
	switch cs {
	case GCJ02:
		return gcj02ToWGS84(lat, lon)
	case BD09:
		return bd09ToWGS84(lat, lon)
	}
	return lat, lon
}

// 文档注释：坐标系转换（GCJ-02/BD-09 → WGS84）
// 背景：小程序定位接口返回 GCJ-02，国内地图 SDK 常用 BD-09，需转换后才能与全球边界对齐。
// 约束：单步近似反解，误差在数米级；中国境外的坐标原样返回。
func gcj02ToWGS84(lat, lon float64) (float64, float64) {
	glat, glon := wgs84ToGCJ02(lat, lon)
	return lat*2 - glat, lon*2 - glon
}

func bd09ToWGS84(lat, lon float64) (float64, float64) {
	x := lon - 0.0065
	y := lat - 0.006
	z := math.Sqrt(x*x+y*y) - 0.00002*math.Sin(y*math.Pi)
	theta := math.Atan2(y, x) - 0.000003*math.Cos(x*math.Pi)
	return gcj02ToWGS84(z*math.Sin(theta), z*math.Cos(theta))
}

const (
	krasovskyA  = 6378245.0
	krasovskyEE = 0.00669342162296594323
)

func wgs84ToGCJ02(lat, lon float64) (float64, float64) {
	if outOfChina(lat, lon) {
		return lat, lon
	}
	dLat := offsetLat(lon-105.0, lat-35.0)
	dLon := offsetLon(lon-105.0, lat-35.0)
	radLat := lat / 180.0 * math.Pi
	magic := math.Sin(radLat)
	magic = 1 - krasovskyEE*magic*magic
	sqrtMagic := math.Sqrt(magic)
	dLat = (dLat * 180.0) / ((krasovskyA * (1 - krasovskyEE)) / (magic * sqrtMagic) * math.Pi)
	dLon = (dLon * 180.0) / (krasovskyA / sqrtMagic * math.Cos(radLat) * math.Pi)
	return lat + dLat, lon + dLon
}

func outOfChina(lat, lon float64) bool {
	return lon < 72.004 || lon > 137.8347 || lat < 0.8293 || lat > 55.8271
}

func offsetLat(x, y float64) float64 {
	ret := -100.0 + 2.0*x + 3.0*y + 0.2*y*y + 0.1*x*y + 0.2*math.Sqrt(math.Abs(x))
	ret += (20.0*math.Sin(6.0*x*math.Pi) + 20.0*math.Sin(2.0*x*math.Pi)) * 2.0 / 3.0
	ret += (20.0*math.Sin(y*math.Pi) + 40.0*math.Sin(y/3.0*math.Pi)) * 2.0 / 3.0
	ret += (160.0*math.Sin(y/12.0*math.Pi) + 320*math.Sin(y*math.Pi/30.0)) * 2.0 / 3.0
	return ret
}

func offsetLon(x, y float64) float64 {
	ret := 300.0 + x + 2.0*y + 0.1*x*x + 0.1*x*y + 0.1*math.Sqrt(math.Abs(x))
	ret += (20.0*math.Sin(6.0*x*math.Pi) + 20.0*math.Sin(2.0*x*math.Pi)) * 2.0 / 3.0
	ret += (20.0*math.Sin(x*math.Pi) + 40.0*math.Sin(x/3.0*math.Pi)) * 2.0 / 3.0
	ret += (150.0*math.Sin(x/12.0*math.Pi) + 300.0*math.Sin(x/30.0*math.Pi)) * 2.0 / 3.0
	return ret
}
