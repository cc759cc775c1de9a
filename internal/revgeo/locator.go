package revgeo

import (
	"time"

	"github.com/paulmach/orb"

	"globe-api/internal/geo"
	"globe-api/internal/logger"
	"globe-api/internal/metrics"
)

// 逐级放宽的候选数量上限
var candidateSteps = []int{12, 24, 48, 80}

// 南极兜底的纬度阈值与国家代码
const (
	antarcticLat  = -60.0
	antarcticCode = "ATA"
)

// 兜底路径，用于指标标签
const (
	fallbackNone      = ""
	fallbackFullScan  = "full_scan"
	fallbackAntarctic = "antarctica"
	fallbackMiss      = "miss"
)

// 格子候选缓存使用的 geohash 位数与键前缀
const (
	cellPrecision = 7
	cellKeyPrefix = "revgeo:cell:"
)

// CellStore 跨进程共享的格子候选缓存（如 Redis），值为包围盒与格子相交的要素下标
type CellStore interface {
	Get(key string) ([]int, bool)
	Set(key string, ids []int)
}

// 文档注释：点定位器（网格候选 → PIP 命中 → 全量扫描 → 南极兜底）
// 背景：点选/悬停需要回答“这个经纬度属于哪个国家”；候选数量逐级放宽（12/24/48/80），
// 仍未命中再全量扫描，避免索引半径不足造成的漏判。
// 约束：要素集合加载后只读，Locator 可被多个 goroutine 并发查询；Find 为纯计算，
// 缓存与坐标系转换只在 Query 中发生。缓存只保存格内候选，每次查询都重新做射线判定。
type Locator struct {
	features []Feature
	index    *Index
	kd       *kdNode
	cells    *LRU[[]int]
	shared   CellStore
	ata      int

	cellSize  float64
	noIndex   bool
	cacheSize int
	cacheTTL  time.Duration
}

// Option 定位器构造选项
type Option func(*Locator)

// WithCellSize 网格边长（度）
func WithCellSize(deg float64) Option { return func(l *Locator) { l.cellSize = deg } }

// WithoutIndex 不建索引，每次查询全量扫描
func WithoutIndex() Option { return func(l *Locator) { l.noIndex = true } }

// WithCache 结果缓存容量与 TTL；capacity <= 0 关闭缓存
func WithCache(capacity int, ttl time.Duration) Option {
	return func(l *Locator) { l.cacheSize, l.cacheTTL = capacity, ttl }
}

// WithCellStore 在进程内缓存之后再查共享缓存
func WithCellStore(cs CellStore) Option { return func(l *Locator) { l.shared = cs } }

// NewLocator 构造定位器；features 在此之后不得修改
func NewLocator(features []Feature, opts ...Option) *Locator {
	l := &Locator{features: features, ata: -1, cellSize: 1, cacheSize: 4096, cacheTTL: time.Hour}
	for _, o := range opts {
		o(l)
	}
	if !l.noIndex {
		l.index = BuildIndex(features, l.cellSize)
	}
	l.kd = buildAnchorTree(features)
	l.cells = NewLRU[[]int](l.cacheSize, l.cacheTTL)
	for i := range features {
		if features[i].Code == antarcticCode {
			l.ata = i
			break
		}
	}
	logger.L().Debug("revgeo_locator_ready", "features", len(features), "indexed", l.index != nil, "antarctica", l.ata >= 0)
	return l
}

// Find 返回包含 (lon, lat) 的要素；未命中返回 nil
func (l *Locator) Find(lon, lat float64) *Feature {
	i, _ := l.find(lon, lat)
	if i < 0 {
		return nil
	}
	return &l.features[i]
}

func (l *Locator) find(lon, lat float64) (int, string) {
	if l == nil || !geo.ValidLonLat(lon, lat) {
		return -1, fallbackMiss
	}
	if l.index != nil {
		for _, k := range candidateSteps {
			ids := l.index.GatherCandidates(lon, lat, k)
			for _, id := range ids {
				if FeatureContains(lon, lat, &l.features[id]) {
					return id, fallbackNone
				}
			}
			// 候选已耗尽，更大的上限只会返回同一批
			if len(ids) < k {
				break
			}
		}
	}
	for i := range l.features {
		if FeatureContains(lon, lat, &l.features[i]) {
			return i, fallbackFullScan
		}
	}
	if lat < antarcticLat && l.ata >= 0 {
		return l.ata, fallbackAntarctic
	}
	return -1, fallbackMiss
}

// 文档注释：服务层查询
// 背景：坐标系转换 → 格子候选（进程内 LRU → 共享缓存 → 包围盒扫描）→ 射线判定 → 南极兜底；
// approxKm > 0 时未命中回退到最近锚点。
// 约束：同一格内国界两侧的点各自判定，缓存不会把前一次的结论带给后一次。
func (l *Locator) Query(lat, lon float64, cs CoordSys, approxKm float64) Match {
	start := time.Now()
	lat, lon = ToWGS84(lat, lon, cs)
	m := Match{Lon: lon, Lat: lat}
	if !geo.ValidLonLat(lon, lat) {
		return m
	}
	metrics.HitTestTotal.Inc()
	defer func() { metrics.HitTestDurationUs.Observe(float64(time.Since(start).Microseconds())) }()

	hash, cell := geohashCell(lat, lon, cellPrecision)
	ids, cached := l.cellCandidates(cellKeyPrefix+hash, cell)
	m.Cached = cached
	id, kind := l.resolve(lon, lat, ids)
	if kind != fallbackNone {
		metrics.HitTestFallbackTotal.WithLabelValues(kind).Inc()
	}
	if id >= 0 {
		m.Feature = &l.features[id]
		return m
	}
	if approxKm > 0 {
		if f, d, ok := l.Nearest(lon, lat, approxKm); ok {
			m.Feature, m.Approx, m.DistKm = f, true, d
		}
	}
	return m
}

// cellCandidates 返回包围盒与格子相交的要素下标（升序）；第二个返回值表示来自缓存
func (l *Locator) cellCandidates(key string, cell orb.Bound) ([]int, bool) {
	if ids, ok := l.cells.Get(key); ok {
		metrics.CacheHitsTotal.WithLabelValues("lru").Inc()
		return ids, true
	}
	metrics.CacheMissesTotal.WithLabelValues("lru").Inc()
	if l.shared != nil {
		if ids, ok := l.shared.Get(key); ok && l.validIDs(ids) {
			metrics.CacheHitsTotal.WithLabelValues("shared").Inc()
			l.cells.Set(key, ids)
			return ids, true
		}
		metrics.CacheMissesTotal.WithLabelValues("shared").Inc()
	}
	ids := []int{}
	for i := range l.features {
		if geo.BoundIntersects(l.features[i].BBox, cell) {
			ids = append(ids, i)
		}
	}
	l.cells.Set(key, ids)
	if l.shared != nil {
		l.shared.Set(key, ids)
	}
	return ids, false
}

// validIDs 共享缓存可能来自另一份数据集，越界下标视为未命中
func (l *Locator) validIDs(ids []int) bool {
	for _, id := range ids {
		if id < 0 || id >= len(l.features) {
			return false
		}
	}
	return true
}

func (l *Locator) resolve(lon, lat float64, ids []int) (int, string) {
	for _, id := range ids {
		if FeatureContains(lon, lat, &l.features[id]) {
			return id, fallbackNone
		}
	}
	if lat < antarcticLat && l.ata >= 0 {
		return l.ata, fallbackAntarctic
	}
	return -1, fallbackMiss
}

// Nearest 按标签锚点的大圆距离找最近要素；超过 maxKm 返回 false
func (l *Locator) Nearest(lon, lat, maxKm float64) (*Feature, float64, bool) {
	if l == nil || l.kd == nil || !geo.ValidLonLat(lon, lat) {
		return nil, 0, false
	}
	id, chord := nearest(l.kd, geo.LatLonToVec3(lon, lat, 1))
	if id < 0 {
		return nil, 0, false
	}
	d := geo.ChordToKm(chord)
	if d > maxKm {
		return nil, d, false
	}
	return &l.features[id], d, true
}

// Features 只读的要素切片
func (l *Locator) Features() []Feature { return l.features }

// ByCode 按规范化代码查找要素
func (l *Locator) ByCode(code string) *Feature {
	for i := range l.features {
		if l.features[i].Code == code {
			return &l.features[i]
		}
	}
	return nil
}
