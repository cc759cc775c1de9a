package dataset

import (
	"math"
	"strings"

	"globe-api/internal/labels"
)

// CityTier 城市标签的显示档位
type CityTier string

const (
	TierNone CityTier = "none"
	TierKey  CityTier = "key"
	TierMore CityTier = "more"
)

// ParseCityTier 未知取值回退到 more
func ParseCityTier(s string) CityTier {
	switch CityTier(strings.ToLower(strings.TrimSpace(s))) {
	case TierNone:
		return TierNone
	case TierKey:
		return TierKey
	}
	return TierMore
}

// 大国标签的重要度加成
var majorCountries = map[string]bool{
	"CHN": true, "RUS": true, "USA": true, "CAN": true, "BRA": true, "AUS": true, "IND": true,
}

// FilterCities key 只保留 round(重要度)==1 的重点城市；more 保留重要度 >= 1 的城市
func FilterCities(cities []City, tier CityTier) []City {
	if tier == TierNone {
		return nil
	}
	var out []City
	for _, c := range cities {
		switch tier {
		case TierKey:
			if math.Round(c.Importance) == 1 {
				out = append(out, c)
			}
		default:
			if c.Importance >= 1 {
				out = append(out, c)
			}
		}
	}
	return out
}

// 文档注释：由数据集构建全部标签记录
// 背景：国家标签取元数据中的标注点，缺省用要素锚点；面积/人口先取元数据，再取边界属性，都缺失时为未知。
// 城市标签 ID 为 CITY_<国家代码>_<英文名>，重复 ID 只保留第一条。
// 约束：无国家代码的要素不生成标签；返回顺序为先国家后城市，与输入顺序一致。
func BuildLabels(ds *Dataset, tier CityTier) []labels.Record {
	if ds == nil {
		return nil
	}
	seen := make(map[string]bool)
	out := make([]labels.Record, 0, len(ds.Features)+len(ds.Cities))
	for i := range ds.Features {
		f := &ds.Features[i]
		if f.Code == "" || seen[f.Code] {
			continue
		}
		seen[f.Code] = true
		m := ds.Meta[f.Code]
		lon, lat := f.Anchor[0], f.Anchor[1]
		if m.LabelLon != nil && m.LabelLat != nil {
			lon, lat = *m.LabelLon, *m.LabelLat
		}
		imp := 1.0
		if majorCountries[f.Code] {
			imp = 2
		}
		out = append(out, labels.Record{
			ID:          f.Code,
			Lon:         lon,
			Lat:         lat,
			Text:        texts(firstNonEmpty(m.NameEn, f.Name, f.Code), firstNonEmpty(f.NameZh, m.NameZh)),
			Importance:  imp,
			CountryCode: f.Code,
			Class: labels.CountryClass{
				AreaKm2:    knownOr(m.AreaKm2, f.AreaKm2),
				Population: knownOr(m.Population, f.Population),
			},
		})
	}
	for _, c := range FilterCities(ds.Cities, tier) {
		cc := c.CountryCode
		if cc == "" {
			cc = "UNK"
		}
		id := "CITY_" + cc + "_" + firstNonEmpty(c.NameEn, c.NameZh)
		if seen[id] {
			continue
		}
		seen[id] = true
		t := int(math.Round(c.Importance))
		imp := 1.0
		if t == 1 {
			imp = 2
		}
		out = append(out, labels.Record{
			ID:          id,
			Lon:         c.Lon,
			Lat:         c.Lat,
			Text:        texts(firstNonEmpty(c.NameEn, c.NameZh), firstNonEmpty(c.NameZh, c.NameEn)),
			Importance:  imp,
			CountryCode: c.CountryCode,
			Class:       labels.CityClass{Tier: t},
		})
	}
	return out
}

func texts(en, zh string) map[string]string {
	m := make(map[string]string, 2)
	if en != "" {
		m["en"] = en
	}
	if zh != "" {
		m["zh"] = zh
	}
	return m
}

// knownOr 元数据值为正时优先，否则使用要素属性（可能为 NaN）
func knownOr(meta, prop float64) float64 {
	if meta > 0 {
		return meta
	}
	if prop > 0 {
		return prop
	}
	return math.NaN()
}
