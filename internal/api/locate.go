package api

import (
	"net/http"
	"strings"

	"globe-api/internal/iplocate"
	"globe-api/internal/logger"
	"globe-api/internal/revgeo"
)

// locateResult 初始聚焦点；Found 为 false 时前端使用默认视角
type locateResult struct {
	IP       string  `json:"ip"`
	Found    bool    `json:"found"`
	Code     string  `json:"code,omitempty"`
	Name     string  `json:"name,omitempty"`
	NameZh   string  `json:"name_zh,omitempty"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	HasCoord bool    `json:"has_coord"`
	Source   string  `json:"source,omitempty"`
}

// 文档注释：GET /locate
// 背景：首屏把地球转到访问者所在国家；边缘节点地理头优先，其次本地 IP 库。
// 有坐标时用命中判定得到国家，否则按国家代码/名称匹配要素并以其标注点作为聚焦坐标。
// 约束：任何一步失败都返回 found=false，不返回错误状态码。
func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	ip := iplocate.ClientIP(r)
	res := locateResult{IP: ip}
	hit, ok := iplocate.FromHeaders(r.Header)
	if !ok {
		hit, ok = s.d.IP.Lookup(ip)
	}
	if ok {
		res.Source = hit.Source
		if f := s.resolveFeature(hit); f != nil {
			res.Found = true
			res.Code, res.Name, res.NameZh = f.Code, f.Name, f.NameZh
			res.Lat, res.Lon = f.Anchor[1], f.Anchor[0]
		}
		if hit.HasCoord {
			res.Lat, res.Lon, res.HasCoord = hit.Lat, hit.Lon, true
		}
	}
	logger.L().Debug("locate", "ip", ip, "found", res.Found, "code", res.Code, "source", res.Source)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) resolveFeature(hit iplocate.Result) *revgeo.Feature {
	if hit.HasCoord {
		if f := s.d.Locator.Find(hit.Lon, hit.Lat); f != nil {
			return f
		}
	}
	for _, k := range []string{hit.CountryCode, hit.Country} {
		if code, ok := s.aliases[strings.ToUpper(strings.TrimSpace(k))]; ok {
			return s.d.Locator.ByCode(code)
		}
	}
	return nil
}
