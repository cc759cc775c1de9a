package labels

import (
	"math"

	"github.com/golang/geo/r3"

	"globe-api/internal/geo"
)

// Kind 标签种类
type Kind string

const (
	KindCountry Kind = "country"
	KindCity    Kind = "city"
)

// 文档注释：标签类别（带类别数据的变体）
// 背景：国家与城市的“重要性”语义不同，LOD 判定各自独立；用变体类型承载各自的数据，
// 避免把一个数值字段按种类解释成不同含义。
// 约束：只有 CountryClass 与 CityClass 两种实现。
type Class interface {
	Kind() Kind
	passesLOD(c lodContext, r *Record) bool
}

// CountryClass 国家标签；NaN 表示未知，未知数据不会导致隐藏
type CountryClass struct {
	AreaKm2    float64
	Population float64
}

func (CountryClass) Kind() Kind { return KindCountry }

// CityClass 城市标签；Tier 1 为重点城市，其余为次要城市
type CityClass struct {
	Tier int
}

func (CityClass) Kind() Kind { return KindCity }

// Key 报告是否为重点城市
func (c CityClass) Key() bool { return c.Tier == 1 }

// Record 一个可显示的标签，加载后只读
type Record struct {
	ID          string
	Lon, Lat    float64
	Text        map[string]string
	Importance  float64
	CountryCode string // 城市所属国家；国家标签为自身代码
	Class       Class
}

// Kind 标签种类；未设置类别时视为国家
func (r *Record) Kind() Kind {
	if r.Class == nil {
		return KindCountry
	}
	return r.Class.Kind()
}

// Valid 坐标是否可用
func (r *Record) Valid() bool {
	return geo.ValidLonLat(r.Lon, r.Lat) && math.Abs(r.Lat) <= 90
}

// Position 球面上方 altitude 处的局部坐标（球半径 1）
func (r *Record) Position(altitude float64) r3.Vector {
	return geo.LatLonToVec3(r.Lon, r.Lat, 1+altitude)
}

// DisplayText 按语言取文本，依次回退 en、zh、ID
func (r *Record) DisplayText(lang string) string {
	if s := r.Text[lang]; s != "" {
		return s
	}
	if s := r.Text["en"]; s != "" {
		return s
	}
	if s := r.Text["zh"]; s != "" {
		return s
	}
	return r.ID
}
