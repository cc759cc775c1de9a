package labels

import "math"

// LODLevel 国家标签的距离分档
type LODLevel string

const (
	LODNear LODLevel = "near"
	LODMid  LODLevel = "mid"
	LODFar  LODLevel = "far"
)

// CountryLOD 按相机到球心的距离分档
func (c Config) CountryLOD(camDist float64) LODLevel {
	switch {
	case camDist <= c.LODNearDistCountry:
		return LODNear
	case camDist >= c.LODFarDistCountry:
		return LODFar
	}
	return LODMid
}

// lodContext 一帧内与标签无关的 LOD 输入
type lodContext struct {
	cfg     *Config
	camDist float64
	level   LODLevel
	focused string
}

// 中/远档位只隐藏“面积与人口都已知且都偏小”的国家
func (cc CountryClass) passesLOD(c lodContext, _ *Record) bool {
	var areaMin, popMin float64
	switch c.level {
	case LODNear:
		return true
	case LODMid:
		areaMin, popMin = c.cfg.AreaMinMid, c.cfg.PopMinMid
	default:
		areaMin, popMin = c.cfg.AreaMinFar, c.cfg.PopMinFar
	}
	if math.IsNaN(cc.AreaKm2) || math.IsNaN(cc.Population) {
		return true
	}
	return !(cc.AreaKm2 < areaMin && cc.Population < popMin)
}

func (cc CityClass) passesLOD(c lodContext, r *Record) bool {
	if c.camDist > c.cfg.CitiesStartAppear {
		return false
	}
	if !cc.Key() && c.camDist > c.cfg.CitiesAllAppear {
		return false
	}
	if c.focused != "" && r.CountryCode != c.focused {
		return false
	}
	return true
}

func passesLOD(c lodContext, r *Record) bool {
	if r.Class == nil {
		return true
	}
	return r.Class.passesLOD(c, r)
}
