package labels

import "math"

// 分母保护
const eps = 1e-9

// ScoreInput 单个候选的评分输入
type ScoreInput struct {
	Alpha        float64
	Dot          float64 // 法线与视线的点积
	CenterDistPx float64 // 到视口中心的像素距离
	Importance   float64
	Kind         Kind
	FocusedCity  bool // 属于当前聚焦国家的城市
	CamDist      float64
	Sticky       bool // 近期显示过
}

// Score 候选评分
// score = alpha × (0.6 + 0.4·dot) × 1/(1 + d/K)，再依次乘以重要性、种类、聚焦、
// 屏幕中心强制显示与近期显示加成。重要性不超过 1 时不加成，增大重要性不会降低分数。
func Score(in ScoreInput, cfg Config) float64 {
	k := math.Max(cfg.CenterK, eps)
	s := in.Alpha * (0.6 + 0.4*in.Dot) / (1 + math.Max(0, in.CenterDistPx)/k)
	if in.Importance > 1 {
		s *= 1 + in.Importance*cfg.ImportanceFactor
	}
	if in.Kind == KindCity {
		s *= cfg.ScoreBonusCity
		if in.FocusedCity {
			s *= cfg.FocusedCityBoost
		}
	} else {
		s *= cfg.ScoreBonusCountry
	}
	if in.CamDist < cfg.ForceDisplayMaxDist && in.CenterDistPx < cfg.ForceDisplayRadiusPx {
		s *= cfg.ForceDisplayMultiplier
	}
	if in.Sticky {
		s *= 1 + cfg.StickyLabelBonus
	}
	return s
}

// fadeAlpha 背面截止到淡入阈值之间的线性渐变，再乘四边的边缘淡出
// x, y 为视口内相对像素坐标
func fadeAlpha(dot, x, y, w, h float64, cfg *Config) float64 {
	var a float64
	if span := cfg.FadeIn - cfg.Cutoff; span > eps {
		a = clamp01((dot - cfg.Cutoff) / span)
	} else if dot > cfg.Cutoff {
		a = 1
	}
	if cfg.EdgeFadePx > eps {
		edge := math.Min(math.Min(x, w-x), math.Min(y, h-y)) / cfg.EdgeFadePx
		a *= clamp01(edge)
	}
	return a
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
