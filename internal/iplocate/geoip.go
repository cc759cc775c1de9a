package iplocate

import (
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
	"github.com/oschwald/maxminddb-golang"
)

// 文档注释：mmdb 数据源
// 背景：MaxMind/DB-IP 的 City 与 Country 库使用 GeoIP2 结构，走 geoip2 的类型化解码；
// 其他厂商（如 IPinfo）的 mmdb 字段扁平且命名不一，用 maxminddb 解码为通用 map 再取字段。
// 约束：按元数据中的 database_type 选择解码方式；未知坐标在 mmdb 中编码为 (0,0)，视为无坐标。
type GeoIP struct {
	r    *geoip2.Reader
	city bool
	raw  *maxminddb.Reader
}

func OpenGeoIP(path string) (*GeoIP, error) {
	mr, err := maxminddb.Open(path)
	if err != nil {
		return nil, err
	}
	dt := mr.Metadata.DatabaseType
	if !isGeoIP2Layout(dt) {
		return &GeoIP{raw: mr}, nil
	}
	_ = mr.Close()
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &GeoIP{r: r, city: strings.Contains(dt, "City")}, nil
}

func isGeoIP2Layout(databaseType string) bool {
	for _, p := range []string{"GeoIP2-", "GeoLite2-", "DBIP-"} {
		if strings.HasPrefix(databaseType, p) {
			return true
		}
	}
	return false
}

func (g *GeoIP) Lookup(ip string) (Result, bool) {
	addr := net.ParseIP(ip)
	if addr == nil {
		return Result{}, false
	}
	if g.raw != nil {
		var rec map[string]any
		if err := g.raw.Lookup(addr, &rec); err != nil {
			return Result{}, false
		}
		return fromRawRecord(rec)
	}
	if !g.city {
		rec, err := g.r.Country(addr)
		if err != nil || rec.Country.IsoCode == "" {
			return Result{}, false
		}
		return Result{CountryCode: rec.Country.IsoCode, Country: rec.Country.Names["en"], Source: "geoip2"}, true
	}
	rec, err := g.r.City(addr)
	if err != nil || rec.Country.IsoCode == "" {
		return Result{}, false
	}
	out := Result{
		CountryCode: rec.Country.IsoCode,
		Country:     rec.Country.Names["en"],
		City:        rec.City.Names["en"],
		Source:      "geoip2",
	}
	if len(rec.Subdivisions) > 0 {
		out.Region = rec.Subdivisions[0].Names["en"]
	}
	if rec.Location.Latitude != 0 || rec.Location.Longitude != 0 {
		out.Lat, out.Lon, out.HasCoord = rec.Location.Latitude, rec.Location.Longitude, true
	}
	return out, true
}

// fromRawRecord 扁平 mmdb 记录：country 可能是代码也可能是名称，坐标键有 latitude/lat 与 longitude/lng 两种写法
func fromRawRecord(rec map[string]any) (Result, bool) {
	str := func(keys ...string) string {
		for _, k := range keys {
			if s, ok := rec[k].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
		return ""
	}
	num := func(keys ...string) (float64, bool) {
		for _, k := range keys {
			switch v := rec[k].(type) {
			case float64:
				return v, true
			case float32:
				return float64(v), true
			}
		}
		return 0, false
	}
	out := Result{
		CountryCode: str("country_code", "iso_code"),
		Country:     str("country_name"),
		Region:      str("region", "subdivision"),
		City:        str("city"),
		Source:      "mmdb",
	}
	if c := str("country"); c != "" {
		if out.CountryCode == "" && len(c) <= 3 {
			out.CountryCode = c
		} else if out.Country == "" {
			out.Country = c
		}
	}
	out.CountryCode = strings.ToUpper(out.CountryCode)
	if lat, ok := num("latitude", "lat"); ok {
		if lon, ok := num("longitude", "lng", "lon"); ok && (lat != 0 || lon != 0) {
			out.Lat, out.Lon, out.HasCoord = lat, lon, true
		}
	}
	if out.CountryCode == "" && out.Country == "" && !out.HasCoord {
		return Result{}, false
	}
	return out, true
}

func (g *GeoIP) Close() error {
	if g.raw != nil {
		return g.raw.Close()
	}
	return g.r.Close()
}
