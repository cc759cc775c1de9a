package labels

import (
	"time"

	"globe-api/internal/logger"
	"globe-api/internal/metrics"
)

// 文档注释：标签引擎（持有记录、粘滞状态、平滑状态与上一轮结果）
// 背景：把每帧需要跨帧保存的全部状态收拢到一个实例里，生命周期与场景一致；
// 重新筛选按 SelectInterval 节流，平滑每帧都跑并使用最近一次筛选结果。
// 约束：非并发安全，单个更新循环独占使用；多 goroutine 共享时由调用方加锁。
type Engine struct {
	cfg      Config
	records  []Record
	state    *SelectionState
	smoother *Smoother

	last       []Winner
	lastSelect time.Time
	primed     bool
}

// NewEngine records 在此之后视为只读
func NewEngine(cfg Config, records []Record) *Engine {
	e := &Engine{cfg: cfg, state: NewSelectionState(), smoother: NewSmoother()}
	e.SetRecords(records)
	return e
}

// SetRecords 替换标签集合并重置全部跨帧状态
func (e *Engine) SetRecords(records []Record) {
	e.records = records
	e.Reset()
	logger.L().Debug("labels_records_set", "count", len(records))
}

// SetConfig 替换参数；下一次 Update 立即重新筛选
func (e *Engine) SetConfig(cfg Config) {
	e.cfg = cfg
	e.primed = false
}

// Reset 清空粘滞、平滑与上一轮结果（场景重建时调用）
func (e *Engine) Reset() {
	e.state.Reset()
	e.smoother.Reset()
	e.last = nil
	e.primed = false
}

// Update 推进一帧：必要时重新筛选，然后平滑并返回要绘制的标签
func (e *Engine) Update(f Frame) []Rendered {
	if !e.primed || f.Now.Sub(e.lastSelect) >= e.cfg.SelectInterval || f.Now.Before(e.lastSelect) {
		e.last = Select(f, e.records, e.state, e.cfg)
		e.lastSelect = f.Now
		e.primed = true
		metrics.LabelSelectTotal.Inc()
		metrics.LabelWinners.Observe(float64(len(e.last)))
		metrics.LabelStickyKeptTotal.Add(float64(e.state.kept))
	}
	return e.smoother.Step(f, e.records, e.last, e.cfg)
}

// LastWinners 最近一次筛选结果（只读）
func (e *Engine) LastWinners() []Winner { return e.last }

// Records 当前标签集合（只读）
func (e *Engine) Records() []Record { return e.records }

// Config 当前参数
func (e *Engine) Config() Config { return e.cfg }

// State 粘滞状态（只读观察）
func (e *Engine) State() *SelectionState { return e.state }
