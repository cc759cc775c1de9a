package labels

import "time"

// cellKey 屏幕网格坐标
type cellKey struct{ X, Y int }

func (a cellKey) less(b cellKey) bool {
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}

type stickyCell struct {
	id      string
	score   float64
	expires time.Time
}

// 文档注释：跨帧的筛选状态（粘滞）
// 背景：每帧从零重新选择，闪烁靠两张表抑制：每个网格上次的赢家，以及每个标签最近一次入选的时间。
// 约束：只由单个更新循环修改；条目在 now >= expires 时惰性清理；由 Engine 持有，
// 场景重建时调用 Reset。
type SelectionState struct {
	byCell  map[cellKey]stickyCell
	byLabel map[string]time.Time

	kept int // 上一轮保留旧赢家的网格数
}

func NewSelectionState() *SelectionState {
	return &SelectionState{byCell: make(map[cellKey]stickyCell), byLabel: make(map[string]time.Time)}
}

// Reset 清空全部粘滞条目
func (s *SelectionState) Reset() {
	clear(s.byCell)
	clear(s.byLabel)
	s.kept = 0
}

// Len 网格粘滞条目数与标签粘滞条目数
func (s *SelectionState) Len() (cells, labels int) {
	return len(s.byCell), len(s.byLabel)
}

// recentlyShown 标签是否仍在近期显示窗口内
func (s *SelectionState) recentlyShown(id string, now time.Time) bool {
	till, ok := s.byLabel[id]
	return ok && now.Before(till)
}

func (s *SelectionState) purge(now time.Time) {
	for k, v := range s.byCell {
		if !now.Before(v.expires) {
			delete(s.byCell, k)
		}
	}
	for k, till := range s.byLabel {
		if !now.Before(till) {
			delete(s.byLabel, k)
		}
	}
}
