package revgeo

import (
	"math"

	"globe-api/internal/geo"
	"globe-api/internal/logger"
)

// 候选收集的同心圈半径（单位：网格）
var gatherRadii = []int{0, 1, 2, 3, 4, 6, 8}

// 文档注释：经纬度网格空间索引
// 背景：每次点选/悬停都对全部国家做射线法代价过高；按包围盒把要素 ID 投到固定网格，
// 查询时从所在网格向外逐圈放宽收集候选，再由调用方做精确判定。
// 约束：跨反经线的包围盒拆成 [-180,maxLon] 与 [minLon,180] 两段插入；
// 结果只是候选超集，不能替代 FeatureContains。
type Index struct {
	cellSize   float64
	lonBuckets int
	latBuckets int
	cells      [][]int // lonBuckets*latBuckets，行优先按纬度
	features   int
}

// BuildIndex 构建网格索引；cellSizeDeg <= 0 时取 1°
func BuildIndex(features []Feature, cellSizeDeg float64) *Index {
	if !(cellSizeDeg > 0) {
		cellSizeDeg = 1
	}
	ix := &Index{
		cellSize:   cellSizeDeg,
		lonBuckets: int(math.Ceil(360 / cellSizeDeg)),
		latBuckets: int(math.Ceil(180 / cellSizeDeg)),
		features:   len(features),
	}
	ix.cells = make([][]int, ix.lonBuckets*ix.latBuckets)
	inserted := 0
	for i := range features {
		f := &features[i]
		if !f.Valid() {
			continue
		}
		b := f.BBox
		type span struct{ a, b float64 }
		ranges := []span{{b.Min[0], b.Max[0]}}
		if geo.BoundCrossesAntimeridian(b) {
			ranges = []span{{-180, b.Max[0]}, {b.Min[0], 180}}
		}
		y0, y1 := ix.latIdx(b.Min[1]), ix.latIdx(b.Max[1])
		for _, r := range ranges {
			x0, x1 := ix.lonIdx(r.a), ix.lonIdx(r.b)
			if x0 > x1 {
				x0, x1 = x1, x0
			}
			for y := y0; y <= y1; y++ {
				for x := x0; x <= x1; x++ {
					ix.add(x, y, i)
				}
				// -180 与 180 是同一条经线：贴边的范围在另一端也登记一列
				if r.a <= -180 {
					ix.add(ix.lonBuckets-1, y, i)
				}
				if r.b >= 180 {
					ix.add(0, y, i)
				}
			}
		}
		inserted++
	}
	logger.L().Debug("revgeo_index_built", "features", len(features), "inserted", inserted, "cell_deg", cellSizeDeg)
	return ix
}

func (ix *Index) add(x, y, id int) {
	k := y*ix.lonBuckets + x
	c := ix.cells[k]
	if n := len(c); n > 0 && c[n-1] == id {
		return
	}
	ix.cells[k] = append(c, id)
}

// lonIdx 插入用：直接按原始经度落格并夹紧，-180 落在第一列、180 落在最后一列
func (ix *Index) lonIdx(lon float64) int {
	return clampInt(int(math.Floor((lon+180)/ix.cellSize)), 0, ix.lonBuckets-1)
}

func (ix *Index) latIdx(lat float64) int {
	return clampInt(int(math.Floor((lat+90)/ix.cellSize)), 0, ix.latBuckets-1)
}

func (ix *Index) cell(x, y int) []int {
	x = ((x % ix.lonBuckets) + ix.lonBuckets) % ix.lonBuckets
	y = clampInt(y, 0, ix.latBuckets-1)
	return ix.cells[y*ix.lonBuckets+x]
}

// GatherCandidates 从查询点所在网格开始按半径 0,1,2,3,4,6,8 逐圈收集去重后的要素 ID。
// 经度循环回绕，纬度在两极夹紧；收集到 limit 个即返回（limit <= 0 不设上限）。
// 非有限坐标或空索引返回 nil。
func (ix *Index) GatherCandidates(lon, lat float64, limit int) []int {
	if ix == nil || !geo.ValidLonLat(lon, lat) {
		return nil
	}
	hx := ix.lonIdx(geo.NormalizeLon(lon))
	hy := ix.latIdx(lat)
	seen := make(map[int]struct{})
	var out []int
	prev := -1
	for _, r := range gatherRadii {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				// 内圈已扫描
				if absInt(dx) <= prev && absInt(dy) <= prev {
					continue
				}
				for _, id := range ix.cell(hx+dx, hy+dy) {
					if _, ok := seen[id]; ok {
						continue
					}
					seen[id] = struct{}{}
					out = append(out, id)
					if limit > 0 && len(out) >= limit {
						return out
					}
				}
			}
		}
		prev = r
	}
	return out
}

// HomeCell 查询点所在网格中的要素 ID；包围盒覆盖该点的要素必在其中。返回值只读。
func (ix *Index) HomeCell(lon, lat float64) []int {
	if ix == nil || !geo.ValidLonLat(lon, lat) {
		return nil
	}
	return ix.cell(ix.lonIdx(geo.NormalizeLon(lon)), ix.latIdx(lat))
}

// CellSize 网格边长（度）
func (ix *Index) CellSize() float64 { return ix.cellSize }

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
