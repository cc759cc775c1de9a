package iplocate

import (
	"net/http"
	"strconv"
	"strings"
)

// ClientIP 解析访问者 IP：优先查询参数，其次常见反向代理头，最后 RemoteAddr
func ClientIP(r *http.Request) string {
	if q := r.URL.Query().Get("ip"); q != "" {
		return q
	}
	h := r.Header
	if x := h.Get("x-forwarded-for"); x != "" {
		return strings.TrimSpace(strings.Split(x, ",")[0])
	}
	for _, k := range []string{"cf-connecting-ip", "x-real-ip", "x-client-ip", "x-edge-client-ip", "x-eo-client-ip"} {
		if x := h.Get(k); x != "" {
			return strings.TrimSpace(x)
		}
	}
	if x := h.Get("forwarded"); x != "" {
		if i := strings.Index(strings.ToLower(x), "for="); i >= 0 {
			y := strings.Trim(x[i+4:], "\" ")
			if p := strings.IndexAny(y, ";,"); p >= 0 {
				y = y[:p]
			}
			return strings.Trim(y, "\"[]")
		}
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return strings.Trim(host, "[]")
}

// 文档注释：解析边缘节点改写的地理请求头
// 背景：CDN（EdgeOne）在回源时附带访问者国家与经纬度，命中时无需本地库即可得到初始聚焦点。
// 约束：头名大小写与控制台配置一致；经纬度任一解析失败则视为无坐标；国家代码与坐标都缺失时未命中。
func FromHeaders(h http.Header) (Result, bool) {
	out := Result{
		CountryCode: strings.ToUpper(firstHeader(h, "X-EO-Geo-CountryCodeAlpha3", "X-EO-Geo-CountryCodeAlpha2")),
		Country:     h.Get("X-EO-Geo-Country"),
		Region:      h.Get("X-EO-Geo-Region"),
		City:        h.Get("X-EO-Geo-City"),
		IP:          h.Get("X-EO-Client-IP"),
		Source:      "edge",
	}
	lat, errLat := strconv.ParseFloat(h.Get("X-EO-Geo-Latitude"), 64)
	lon, errLon := strconv.ParseFloat(h.Get("X-EO-Geo-Longitude"), 64)
	if errLat == nil && errLon == nil && lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180 {
		out.Lat, out.Lon, out.HasCoord = lat, lon, true
	}
	if out.CountryCode == "" && !out.HasCoord {
		return Result{}, false
	}
	return out, true
}

func firstHeader(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(h.Get(k)); v != "" {
			return v
		}
	}
	return ""
}
