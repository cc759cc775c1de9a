package revgeo

import (
	"sort"

	"github.com/paulmach/orb"

	"globe-api/internal/logger"
)

// 文档注释：构建期重叠校验
// 背景：边界数据偶有两国多边形互相覆盖的情况；与其在查询逻辑里写死坐标特例，
// 不如在构建期按采样网格把冲突报出来，回到源数据修正。
// 约束：采样点取每个网格单元的中心；同一点落在多个要素内时按要素对计数；结果按命中样本数降序。
func ValidateOverlaps(features []Feature, stepDeg float64) []Overlap {
	if !(stepDeg > 0) {
		stepDeg = 0.5
	}
	ix := BuildIndex(features, 1)
	type pair struct{ a, b int }
	found := make(map[pair]*Overlap)
	var hits []int
	for lat := -90 + stepDeg/2; lat < 90; lat += stepDeg {
		for lon := -180 + stepDeg/2; lon < 180; lon += stepDeg {
			hits = hits[:0]
			for _, id := range ix.HomeCell(lon, lat) {
				if FeatureContains(lon, lat, &features[id]) {
					hits = append(hits, id)
				}
			}
			if len(hits) < 2 {
				continue
			}
			sort.Ints(hits)
			for i := 0; i < len(hits); i++ {
				for j := i + 1; j < len(hits); j++ {
					k := pair{hits[i], hits[j]}
					o, ok := found[k]
					if !ok {
						o = &Overlap{
							A: k.a, B: k.b,
							CodeA: features[k.a].Code, CodeB: features[k.b].Code,
							Example: orb.Point{lon, lat},
						}
						found[k] = o
					}
					o.Samples++
				}
			}
		}
	}
	out := make([]Overlap, 0, len(found))
	for _, o := range found {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Samples != out[j].Samples {
			return out[i].Samples > out[j].Samples
		}
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	logger.L().Debug("revgeo_overlaps_checked", "features", len(features), "step_deg", stepDeg, "pairs", len(out))
	return out
}
