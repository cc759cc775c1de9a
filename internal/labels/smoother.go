package labels

import (
	"math"
	"sort"
	"unicode/utf8"
)

// 平滑后仍被视为“上一帧可见”的透明度下限
const visibleAlpha = 0.01

// Rendered 交给渲染层的一条标签
type Rendered struct {
	ID       string  `json:"id"`
	Kind     Kind    `json:"kind"`
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Alpha    float64 `json:"alpha"`
	FontSize float64 `json:"font_size"`
}

type smoothed struct {
	x, y, alpha float64
}

// 文档注释：标签位置/透明度的跨帧指数平滑
// 背景：筛选结果每 10ms 才更新一次且会在网格间切换，直接跳变会闪烁；
// 每帧都以当前相机重新投影，再让显示值向目标逼近：v += (target - v) × k。
// 约束：未入选的标签目标透明度为 0，逐帧淡出；透明度 <= HideAlpha 时隐藏并丢弃状态，
// 下次出现时位置直接落到目标点。
type Smoother struct {
	byID map[string]*smoothed
}

func NewSmoother() *Smoother { return &Smoother{byID: make(map[string]*smoothed)} }

// Reset 丢弃所有平滑状态
func (s *Smoother) Reset() { clear(s.byID) }

// Len 正在跟踪的标签数
func (s *Smoother) Len() int { return len(s.byID) }

// Step 推进一帧；返回按 ID 排序的可见标签
func (s *Smoother) Step(f Frame, records []Record, winners []Winner, cfg Config) []Rendered {
	v, ok := newView(f)
	if !ok {
		return nil
	}
	selected := make(map[string]struct{}, len(winners))
	for _, w := range winners {
		selected[w.Record.ID] = struct{}{}
	}
	var out []Rendered
	for i := range records {
		r := &records[i]
		_, isSel := selected[r.ID]
		st, seen := s.byID[r.ID]
		if !isSel && (!seen || st.alpha <= visibleAlpha) {
			delete(s.byID, r.ID)
			continue
		}
		if !r.Valid() {
			continue
		}
		x, y, dot, projected := v.project(r, &cfg)
		target := 0.0
		if isSel && projected {
			target = fadeAlpha(dot, x, y, v.vp.W, v.vp.H, &cfg)
		}
		ax, ay := x+v.vp.X, y+v.vp.Y
		if !seen {
			if !projected {
				continue
			}
			st = &smoothed{x: ax, y: ay}
			s.byID[r.ID] = st
		}
		if projected {
			st.x += (ax - st.x) * cfg.PosSmooth
			st.y += (ay - st.y) * cfg.PosSmooth
		}
		st.alpha += (target - st.alpha) * cfg.AlphaSmooth
		if st.alpha <= cfg.HideAlpha {
			delete(s.byID, r.ID)
			continue
		}
		text := r.DisplayText(f.Lang)
		out = append(out, Rendered{
			ID:       r.ID,
			Kind:     r.Kind(),
			Text:     text,
			X:        st.x,
			Y:        st.y,
			Alpha:    st.alpha,
			FontSize: FontSize(cfg, v.camDist, utf8.RuneCountInString(text)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FontSize 按相机距离在基础字号与最大字号间做正弦缓动（越近越大），
// 再按文字长度衰减：超过 4 个字符的部分每字符减少 TextLengthDecay，最低保留 70%。
func FontSize(cfg Config, camDist float64, textLen int) float64 {
	span := cfg.FontScaleMaxDist - cfg.FontScaleMinDist
	var t float64
	if span > eps {
		t = math.Max(0, math.Min(span, cfg.FontScaleMaxDist-camDist)) / span
	} else if camDist <= cfg.FontScaleMinDist {
		t = 1
	}
	t = math.Sin(t * math.Pi / 2)
	size := cfg.FontBaseSize + (cfg.FontMaxSize-cfg.FontBaseSize)*t
	penalty := 1 - cfg.TextLengthDecay*math.Max(0, float64(textLen-4))
	return size * math.Max(0.7, penalty)
}
