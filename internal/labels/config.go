// 包 labels：每帧标签筛选（可见性、LOD、评分、网格碰撞、粘滞、预算）与渲染平滑
package labels

import (
	"math"
	"time"
)

// Density 标签密度档位
type Density string

const (
	DensityNone    Density = "none"
	DensityFew     Density = "few"
	DensityDefault Density = "default"
	DensityMany    Density = "many"
)

// ParseDensity 未知取值回退到 default
func ParseDensity(s string) Density {
	switch Density(s) {
	case DensityNone, DensityFew, DensityMany:
		return Density(s)
	}
	return DensityDefault
}

// 文档注释：标签系统的全部可调参数
// 背景：阈值与权重均为经验值，属于呈现参数而不是算法契约；集中在一个结构里以便 YAML 覆盖。
// 约束：零值结构不可直接使用，应从 DefaultConfig 出发修改。
type Config struct {
	// 可见性与淡入淡出
	Cutoff         float64 `yaml:"cutoff"`
	FadeIn         float64 `yaml:"fade_in"`
	EdgeFadePx     float64 `yaml:"edge_fade_px"`
	MinAlpha       float64 `yaml:"min_alpha"`
	StrictViewport bool    `yaml:"strict_viewport"`

	// 网格与节流
	GridSize       float64       `yaml:"grid_size"`
	SelectInterval time.Duration `yaml:"select_interval"`

	// 粘滞
	StickySwitchGain float64       `yaml:"sticky_switch_gain"`
	StickyLabelBonus float64       `yaml:"sticky_label_bonus"`
	StickyDuration   time.Duration `yaml:"sticky_duration"`

	// 平滑
	PosSmooth   float64 `yaml:"pos_smooth"`
	AlphaSmooth float64 `yaml:"alpha_smooth"`
	HideAlpha   float64 `yaml:"hide_alpha"`

	// 字体
	FontBaseSize     float64 `yaml:"font_base_size"`
	FontMaxSize      float64 `yaml:"font_max_size"`
	FontScaleMinDist float64 `yaml:"font_scale_min_dist"`
	FontScaleMaxDist float64 `yaml:"font_scale_max_dist"`
	TextLengthDecay  float64 `yaml:"text_length_decay"`

	// 国家 LOD
	LODNearDistCountry float64 `yaml:"lod_near_dist_country"`
	LODFarDistCountry  float64 `yaml:"lod_far_dist_country"`
	AreaMinFar         float64 `yaml:"area_min_far"`
	AreaMinMid         float64 `yaml:"area_min_mid"`
	PopMinFar          float64 `yaml:"pop_min_far"`
	PopMinMid          float64 `yaml:"pop_min_mid"`

	// 城市 LOD
	CitiesStartAppear float64 `yaml:"cities_start_appear"`
	CitiesAllAppear   float64 `yaml:"cities_all_appear"`

	// 评分
	ScoreBonusCountry      float64 `yaml:"score_bonus_country"`
	ScoreBonusCity         float64 `yaml:"score_bonus_city"`
	ImportanceFactor       float64 `yaml:"importance_factor"`
	FocusedCityBoost       float64 `yaml:"focused_city_boost"`
	CenterK                float64 `yaml:"center_k"`
	ForceDisplayMaxDist    float64 `yaml:"force_display_max_dist"`
	ForceDisplayRadiusPx   float64 `yaml:"force_display_radius_px"`
	ForceDisplayMultiplier float64 `yaml:"force_display_multiplier"`

	// 预算
	MaxLabelsMobile  int                  `yaml:"max_labels_mobile"`
	MaxLabelsDesktop int                  `yaml:"max_labels_desktop"`
	MobileWidth      float64              `yaml:"mobile_width"`
	MinBudget        int                  `yaml:"min_budget"`
	DensityModifiers map[Density]float64  `yaml:"density_modifiers"`
	LODBudgetFactors map[LODLevel]float64 `yaml:"lod_budget_factors"`

	// 标签离球面的高度（球半径为 1）
	LabelAltitude float64 `yaml:"label_altitude"`
}

// DefaultConfig 默认参数
func DefaultConfig() Config {
	return Config{
		Cutoff:         0,
		FadeIn:         0.35,
		EdgeFadePx:     28,
		MinAlpha:       0.02,
		StrictViewport: true,

		GridSize:       82,
		SelectInterval: 10 * time.Millisecond,

		StickySwitchGain: 0.40,
		StickyLabelBonus: 0.25,
		StickyDuration:   1200 * time.Millisecond,

		PosSmooth:   0.5,
		AlphaSmooth: 0.32,
		HideAlpha:   0.015,

		FontBaseSize:     12,
		FontMaxSize:      18,
		FontScaleMinDist: 3.5,
		FontScaleMaxDist: 6.0,
		TextLengthDecay:  0.012,

		LODNearDistCountry: 4,
		LODFarDistCountry:  10,
		AreaMinFar:         200000,
		AreaMinMid:         60000,
		PopMinFar:          10000000,
		PopMinMid:          3000000,

		CitiesStartAppear: 8.0,
		CitiesAllAppear:   5.5,

		ScoreBonusCountry:      2.0,
		ScoreBonusCity:         1.2,
		ImportanceFactor:       0.3,
		FocusedCityBoost:       1.5,
		CenterK:                300,
		ForceDisplayMaxDist:    4.0,
		ForceDisplayRadiusPx:   50,
		ForceDisplayMultiplier: 1000,

		MaxLabelsMobile:  18,
		MaxLabelsDesktop: 30,
		MobileWidth:      768,
		MinBudget:        10,
		DensityModifiers: map[Density]float64{
			DensityNone:    0,
			DensityFew:     0.5,
			DensityDefault: 1,
			DensityMany:    2,
		},
		LODBudgetFactors: map[LODLevel]float64{
			LODNear: 1.2,
			LODMid:  1,
			LODFar:  0.6,
		},

		LabelAltitude: 0.01,
	}
}

// Budget 本轮最多显示的标签数
// budget = max(MinBudget, round(设备基数 × 密度系数 × LOD 系数))；none 档位为 0
func (c Config) Budget(width float64, d Density, lod LODLevel) int {
	if d == DensityNone {
		return 0
	}
	base := c.MaxLabelsDesktop
	if width < c.MobileWidth {
		base = c.MaxLabelsMobile
	}
	mod, ok := c.DensityModifiers[d]
	if !ok {
		mod = 1
	}
	f, ok := c.LODBudgetFactors[lod]
	if !ok {
		f = 1
	}
	n := int(math.Round(float64(base) * mod * f))
	if n < c.MinBudget {
		n = c.MinBudget
	}
	return n
}
