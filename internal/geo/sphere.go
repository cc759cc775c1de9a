package geo

import (
	"math"

	"github.com/golang/geo/r3"
)

// EarthRadiusKm 平均地球半径（千米）
const EarthRadiusKm = 6371.0

func toRad(d float64) float64 { return d * math.Pi / 180 }
func toDeg(r float64) float64 { return r * 180 / math.Pi }

// LatLonToVec3 经纬度 -> 球面三维坐标（右手系，y 轴朝北极，贴图对齐 lon+180）
func LatLonToVec3(lon, lat, radius float64) r3.Vector {
	phi := toRad(90 - lat)
	theta := toRad(lon + 180)
	return r3.Vector{
		X: -radius * math.Sin(phi) * math.Cos(theta),
		Y: radius * math.Cos(phi),
		Z: radius * math.Sin(phi) * math.Sin(theta),
	}
}

// Vec3ToLatLon 球面三维坐标 -> 经纬度，半径按向量长度自动计算；零向量返回 (0,0)
func Vec3ToLatLon(v r3.Vector) (lon, lat float64) {
	r := v.Norm()
	if r == 0 {
		return 0, 0
	}
	y := math.Max(-1, math.Min(1, v.Y/r))
	lat = toDeg(math.Asin(y))
	lon = NormalizeLon(-toDeg(math.Atan2(v.Z, v.X)))
	return lon, lat
}

// HaversineKm 球面大圆距离（千米）
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// ChordToKm 单位球弦长 -> 地表距离（千米）
func ChordToKm(chord float64) float64 {
	c := math.Max(0, math.Min(2, chord))
	return EarthRadiusKm * 2 * math.Asin(c/2)
}
