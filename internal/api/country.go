package api

import (
	"math"
	"net/http"
	"strconv"

	"globe-api/internal/logger"
	"globe-api/internal/revgeo"
)

// countryResult 命中判定的对外结构；Found 为 false 时其余国家字段为空
type countryResult struct {
	Found  bool    `json:"found"`
	Code   string  `json:"code,omitempty"`
	Name   string  `json:"name,omitempty"`
	NameZh string  `json:"name_zh,omitempty"`
	Approx bool    `json:"approx"`
	DistKm float64 `json:"dist_km,omitempty"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
}

func parseCoord(s string, limit float64) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > limit {
		return 0, false
	}
	return v, true
}

// 文档注释：GET /country?lat=&lon=&coord_sys=&approx=1
// 背景：点击/悬停地球时把坐标解析为国家；格子候选缓存（进程内 + 可选 Redis）在定位器内部完成。
// 约束：经度允许任意有限值（命中判定内部归一化），纬度限制在 [-90,90]；未命中返回 found=false 而不是 404。
func (s *Server) handleCountry(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, okLat := parseCoord(q.Get("lat"), 90)
	lon, okLon := parseCoord(q.Get("lon"), math.MaxFloat64)
	if !okLat || !okLon {
		writeError(w, http.StatusBadRequest, "invalid lat/lon")
		return
	}
	cs, ok := revgeo.ParseCoordSys(q.Get("coord_sys"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown coord_sys")
		return
	}
	approx := q.Get("approx") == "1" || q.Get("approx") == "true"
	ctx := r.Context()
	approxKm := 0.0
	if approx {
		approxKm = s.d.ApproxKm
	}
	m := s.d.Locator.Query(lat, lon, cs, approxKm)
	res := countryResult{Lat: m.Lat, Lon: m.Lon, Approx: m.Approx, DistKm: m.DistKm}
	if m.Feature != nil {
		res.Found = true
		res.Code = m.Feature.Code
		res.Name = m.Feature.Name
		res.NameZh = m.Feature.NameZh
		if s.d.Store != nil {
			if err := s.d.Store.IncrStats(ctx, m.Approx); err != nil {
				logger.L().Error("stats_incr_error", "err", err)
			}
		}
	}
	logger.L().Debug("country_query", "lat", m.Lat, "lon", m.Lon, "code", res.Code, "approx", res.Approx, "cached", m.Cached)
	writeJSON(w, http.StatusOK, res)
}
