package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"globe-api/internal/labels"
)

// LoadLabelConfig 读取标签参数文件；path 为空时返回默认值
func LoadLabelConfig(path string) (labels.Config, error) {
	if path == "" {
		return labels.DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return labels.Config{}, err
	}
	return ParseLabelConfig(data)
}

// 文档注释：在默认参数上叠加 YAML
// 背景：文件只需写出要调整的字段；映射类字段（密度系数、LOD 预算系数）按键合并。
// 约束：未知字段报错，避免拼写错误被静默忽略；结果需通过 ValidateLabelConfig。
func ParseLabelConfig(data []byte) (labels.Config, error) {
	cfg := labels.DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return labels.Config{}, fmt.Errorf("labels config: %w", err)
	}
	if err := ValidateLabelConfig(cfg); err != nil {
		return labels.Config{}, err
	}
	return cfg, nil
}

// ValidateLabelConfig 检查会让筛选或平滑失效的取值
func ValidateLabelConfig(c labels.Config) error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	check(c.GridSize > 0, "grid_size must be > 0, got %v", c.GridSize)
	check(c.PosSmooth > 0 && c.PosSmooth <= 1, "pos_smooth must be in (0,1], got %v", c.PosSmooth)
	check(c.AlphaSmooth > 0 && c.AlphaSmooth <= 1, "alpha_smooth must be in (0,1], got %v", c.AlphaSmooth)
	check(c.FadeIn >= c.Cutoff, "fade_in (%v) must be >= cutoff (%v)", c.FadeIn, c.Cutoff)
	check(c.StickySwitchGain >= 0, "sticky_switch_gain must be >= 0, got %v", c.StickySwitchGain)
	check(c.SelectInterval >= 0, "select_interval must be >= 0, got %v", c.SelectInterval)
	check(c.StickyDuration >= 0, "sticky_duration must be >= 0, got %v", c.StickyDuration)
	check(c.MinBudget >= 0, "min_budget must be >= 0, got %v", c.MinBudget)
	check(c.LODNearDistCountry <= c.LODFarDistCountry, "lod_near_dist_country must be <= lod_far_dist_country")
	check(c.CitiesAllAppear <= c.CitiesStartAppear, "cities_all_appear must be <= cities_start_appear")
	if len(errs) > 0 {
		return fmt.Errorf("labels config: %w", errors.Join(errs...))
	}
	return nil
}
