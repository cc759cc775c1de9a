package revgeo

import (
	"github.com/paulmach/orb"

	"globe-api/internal/geo"
)

// 文档注释：geohash 编码（base32），用作格子候选缓存的键
// 背景：同一位置附近的重复点选落在同一格（7 位约 150m）；一格内可能跨国界，缓存的是格内候选而非结论。
// 约束：输入经度先规范化到 (-180,180]，180 与 -180 落在同一格。
const geohashAlphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

func encodeGeohash(lat, lon float64, precision int) string {
	h, _ := geohashCell(lat, lon, precision)
	return h
}

// geohashCell 返回 geohash 及其格子范围；范围不跨反经线
func geohashCell(lat, lon float64, precision int) (string, orb.Bound) {
	lon = geo.NormalizeLon(lon)
	if lon == 180 {
		lon = -180
	}
	latLo, latHi := -90.0, 90.0
	lonLo, lonHi := -180.0, 180.0
	out := make([]byte, 0, precision)
	ch, bit, even := 0, 0, true
	for len(out) < precision {
		if even {
			mid := (lonLo + lonHi) / 2
			if lon >= mid {
				ch |= 1 << (4 - bit)
				lonLo = mid
			} else {
				lonHi = mid
			}
		} else {
			mid := (latLo + latHi) / 2
			if lat >= mid {
				ch |= 1 << (4 - bit)
				latLo = mid
			} else {
				latHi = mid
			}
		}
		even = !even
		if bit < 4 {
			bit++
			continue
		}
		out = append(out, geohashAlphabet[ch])
		ch, bit = 0, 0
	}
	return string(out), orb.Bound{Min: orb.Point{lonLo, latLo}, Max: orb.Point{lonHi, latHi}}
}
