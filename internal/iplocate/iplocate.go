// 包 iplocate：按访问者 IP 推断初始聚焦位置（国家与可选坐标），多个数据源按顺序兜底
package iplocate

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"globe-api/internal/logger"
)

// Result 一次 IP 定位结果；HasCoord 为 false 时 Lat/Lon 无意义
type Result struct {
	IP          string  `json:"ip"`
	CountryCode string  `json:"country_code,omitempty"` // ISO2 或 ISO3，来源不提供时为空
	Country     string  `json:"country,omitempty"`
	Region      string  `json:"region,omitempty"`
	City        string  `json:"city,omitempty"`
	Lat         float64 `json:"lat,omitempty"`
	Lon         float64 `json:"lon,omitempty"`
	HasCoord    bool    `json:"has_coord"`
	Source      string  `json:"source"`
}

// Source 单个定位数据源
type Source interface {
	Lookup(ip string) (Result, bool)
}

// 文档注释：链式定位器
// 背景：本地 mmdb 提供坐标与国家代码，IPIP 与 ip2region 只有中文地名；按注册顺序查询，第一个命中即返回。
// 约束：nil 数据源跳过；非法 IP 直接未命中。
type Locator struct {
	sources []Source
	closers []func() error
}

func New(sources ...Source) *Locator {
	return &Locator{sources: sources}
}

// Paths 本地数据文件路径；空路径表示不启用对应数据源
type Paths struct {
	MMDB     string
	XDB      string
	IPDB     string
	IPDBLang string
}

// 文档注释：按 mmdb、ipdb、xdb 的顺序打开本地数据源
// 背景：各数据源相互独立，一个文件损坏或缺失不影响其余数据源。
// 约束：始终返回可用的 Locator；打开失败的数据源被跳过，错误以路径为前缀合并返回。
func Open(p Paths) (*Locator, error) {
	l := &Locator{}
	var errs []error
	if p.MMDB != "" {
		if g, err := OpenGeoIP(p.MMDB); err != nil {
			errs = append(errs, fmt.Errorf("mmdb %s: %w", p.MMDB, err))
		} else {
			l.sources = append(l.sources, g)
			l.closers = append(l.closers, g.Close)
		}
	}
	if p.IPDB != "" {
		if db, err := OpenIPDB(p.IPDB, p.IPDBLang); err != nil {
			errs = append(errs, fmt.Errorf("ipdb %s: %w", p.IPDB, err))
		} else {
			l.sources = append(l.sources, db)
		}
	}
	if p.XDB != "" {
		if r, err := OpenRegion(p.XDB); err != nil {
			errs = append(errs, fmt.Errorf("xdb %s: %w", p.XDB, err))
		} else {
			l.sources = append(l.sources, r)
			l.closers = append(l.closers, r.Close)
		}
	}
	logger.L().Debug("iplocate_ready", "sources", len(l.sources), "failed", len(errs))
	return l, errors.Join(errs...)
}

// Append 在链尾追加数据源（在线来源放在本地库之后）
func (l *Locator) Append(s Source) {
	if s != nil {
		l.sources = append(l.sources, s)
	}
}

// Enabled 是否至少有一个数据源
func (l *Locator) Enabled() bool { return l != nil && len(l.sources) > 0 }

func (l *Locator) Lookup(ip string) (Result, bool) {
	if l == nil || net.ParseIP(strings.TrimSpace(ip)) == nil {
		return Result{}, false
	}
	ip = strings.TrimSpace(ip)
	for _, s := range l.sources {
		if s == nil {
			continue
		}
		r, ok := s.Lookup(ip)
		if ok && !coherent(r) {
			logger.L().Debug("iplocate_incoherent", "ip", ip, "source", r.Source, "country", r.Country, "region", r.Region)
			continue
		}
		if ok {
			r.IP = ip
			logger.L().Debug("iplocate_hit", "ip", ip, "source", r.Source, "country", r.CountryCode)
			return r, true
		}
	}
	logger.L().Debug("iplocate_miss", "ip", ip)
	return Result{}, false
}

func (l *Locator) Close() error {
	if l == nil {
		return nil
	}
	var errs []error
	for _, c := range l.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	l.closers = nil
	return errors.Join(errs...)
}
