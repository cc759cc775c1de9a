package iplocate

import (
	"strings"

	"github.com/lionsoul2014/ip2region/binding/golang/xdb"
)

// Region ip2region IPv4 数据库（仅地名，无坐标）
type Region struct {
	s *xdb.Searcher
}

// OpenRegion 以文件方式打开 xdb，不整体载入内存
func OpenRegion(path string) (*Region, error) {
	s, err := xdb.NewWithFileOnly(xdb.IPv4, path)
	if err != nil {
		return nil, err
	}
	return &Region{s: s}, nil
}

func (r *Region) Lookup(ip string) (Result, bool) {
	region, err := r.s.SearchByStr(ip)
	if err != nil || region == "" {
		return Result{}, false
	}
	out := parseRegion(region)
	if out.Country == "" {
		return Result{}, false
	}
	out.Source = "ip2region"
	return out, true
}

func (r *Region) Close() error {
	r.s.Close()
	return nil
}

// parseRegion 解析 "国家|区域|省份|城市|运营商"；0 与 unknown 视为空
func parseRegion(s string) Result {
	parts := strings.Split(s, "|")
	field := func(i int) string {
		if i >= len(parts) {
			return ""
		}
		v := strings.TrimSpace(parts[i])
		if v == "0" || strings.EqualFold(v, "unknown") {
			return ""
		}
		return v
	}
	out := Result{Country: field(0), Region: field(2), City: field(3)}
	if out.Region == "" {
		out.Region = field(1)
	}
	return out
}
