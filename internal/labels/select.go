package labels

import (
	"math"
	"sort"
	"time"

	"github.com/golang/geo/r3"
)

// Frame 一帧的全部外部输入
type Frame struct {
	Now            time.Time
	Camera         Camera
	Viewport       Viewport
	Globe          Globe
	FocusedCountry string
	Density        Density
	Lang           string
}

// Winner 本轮入选的标签；X/Y 为含视口偏移的屏幕像素坐标
type Winner struct {
	Record *Record
	Score  float64
	X, Y   float64
	Alpha  float64
	Dot    float64

	cell cellKey
}

type candidate struct {
	rec   *Record
	score float64
	x, y  float64 // 视口内相对坐标
	alpha float64
	dot   float64
}

// view 一帧内对所有标签共享的相机量
type view struct {
	cam     Camera
	camPos  r3.Vector
	camDist float64
	globe   Globe
	vp      Viewport
}

func newView(f Frame) (view, bool) {
	if f.Camera == nil || !(f.Viewport.W > 0) || !(f.Viewport.H > 0) {
		return view{}, false
	}
	pos := f.Camera.Position()
	return view{cam: f.Camera, camPos: pos, camDist: pos.Sub(f.Globe.Offset).Norm(), globe: f.Globe, vp: f.Viewport}, true
}

// project 标签 -> (相对像素坐标, 法线·视线)；背面或投影失败返回 false
func (v *view) project(r *Record, cfg *Config) (x, y, dot float64, ok bool) {
	world := v.globe.Apply(r.Position(cfg.LabelAltitude))
	normal := world.Sub(v.globe.Offset).Normalize()
	dot = normal.Dot(v.camPos.Sub(world).Normalize())
	if math.IsNaN(dot) {
		return 0, 0, 0, false
	}
	nx, ny, ok := v.cam.Project(world)
	if !ok {
		return 0, 0, dot, false
	}
	x, y = toScreen(nx, ny, v.vp.W, v.vp.H)
	return x, y, dot, true
}

// 文档注释：每帧标签筛选
// 背景：可见性（背面剔除）→ LOD → 投影与边缘淡出 → 视口检查 → 评分 → 屏幕网格每格一名 →
// 粘滞（旧赢家仅在新候选超过 旧分×(1+增益) 时被替换）→ 按分数截取预算。
// 约束：density 为 none、相机缺失或视口退化时直接返回空；坐标非法的标签跳过；
// state 为 nil 时使用临时状态（无跨帧粘滞）。返回按分数降序、同分按 ID 升序。
func Select(f Frame, records []Record, state *SelectionState, cfg Config) []Winner {
	if f.Density == DensityNone || len(records) == 0 {
		return nil
	}
	v, ok := newView(f)
	if !ok {
		return nil
	}
	if state == nil {
		state = NewSelectionState()
	}
	level := cfg.CountryLOD(v.camDist)
	budget := cfg.Budget(v.vp.W, f.Density, level)
	lc := lodContext{cfg: &cfg, camDist: v.camDist, level: level, focused: f.FocusedCountry}
	cx, cy := v.vp.W/2, v.vp.H/2
	grid := math.Max(cfg.GridSize, 1)

	cells := make(map[cellKey][]candidate)
	for i := range records {
		r := &records[i]
		if !r.Valid() {
			continue
		}
		x, y, dot, ok := v.project(r, &cfg)
		if dot <= cfg.Cutoff {
			continue
		}
		if !passesLOD(lc, r) || !ok {
			continue
		}
		alpha := fadeAlpha(dot, x, y, v.vp.W, v.vp.H, &cfg)
		if alpha <= cfg.MinAlpha {
			continue
		}
		if cfg.StrictViewport && (x < 0 || x > v.vp.W || y < 0 || y > v.vp.H) {
			continue
		}
		kind := r.Kind()
		score := Score(ScoreInput{
			Alpha:        alpha,
			Dot:          dot,
			CenterDistPx: math.Hypot(x-cx, y-cy),
			Importance:   r.Importance,
			Kind:         kind,
			FocusedCity:  kind == KindCity && f.FocusedCountry != "" && r.CountryCode == f.FocusedCountry,
			CamDist:      v.camDist,
			Sticky:       state.recentlyShown(r.ID, f.Now),
		}, cfg)
		k := cellKey{int(math.Floor(x / grid)), int(math.Floor(y / grid))}
		cells[k] = append(cells[k], candidate{rec: r, score: score, x: x, y: y, alpha: alpha, dot: dot})
	}

	winners := state.resolve(f.Now, cells, &cfg)
	sort.SliceStable(winners, func(i, j int) bool {
		if winners[i].Score != winners[j].Score {
			return winners[i].Score > winners[j].Score
		}
		return winners[i].Record.ID < winners[j].Record.ID
	})
	if len(winners) > budget {
		winners = winners[:budget]
	}
	till := f.Now.Add(cfg.StickyDuration)
	for i := range winners {
		state.byLabel[winners[i].Record.ID] = till
		winners[i].X += v.vp.X
		winners[i].Y += v.vp.Y
	}
	return winners
}

// resolve 网格碰撞与粘滞：每格取最高分候选（同分先到者胜），再与该格的旧赢家比较。
// 旧赢家仍有效、本帧仍在同一格、且新候选分数 < 旧分×(1+增益) 时保留旧赢家（不刷新过期时间，
// 按旧分排序）；否则采用新候选并把过期时间设为 now+StickyDuration。最后清理过期条目。
func (s *SelectionState) resolve(now time.Time, cells map[cellKey][]candidate, cfg *Config) []Winner {
	keys := make([]cellKey, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	s.kept = 0
	out := make([]Winner, 0, len(keys))
	for _, k := range keys {
		cs := cells[k]
		best := 0
		for i := 1; i < len(cs); i++ {
			if cs[i].score > cs[best].score {
				best = i
			}
		}
		cand := cs[best]
		if prev, ok := s.byCell[k]; ok && now.Before(prev.expires) {
			if pi := indexOf(cs, prev.id); pi >= 0 && cand.score < prev.score*(1+cfg.StickySwitchGain) {
				p := cs[pi]
				out = append(out, Winner{Record: p.rec, Score: prev.score, X: p.x, Y: p.y, Alpha: p.alpha, Dot: p.dot, cell: k})
				s.kept++
				continue
			}
		}
		s.byCell[k] = stickyCell{id: cand.rec.ID, score: cand.score, expires: now.Add(cfg.StickyDuration)}
		out = append(out, Winner{Record: cand.rec, Score: cand.score, X: cand.x, Y: cand.y, Alpha: cand.alpha, Dot: cand.dot, cell: k})
	}
	s.purge(now)
	return out
}

func indexOf(cs []candidate, id string) int {
	for i := range cs {
		if cs[i].rec.ID == id {
			return i
		}
	}
	return -1
}
