package run

import (
	"time"

	"github.com/John-Robertt/causematch/internal/config"
	"github.com/John-Robertt/causematch/internal/domain"
)

// Observer 把“运行进度/阶段/条目结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）
// - 实现必须并发安全：OnSourceDone 来自多个 goroutine
type Observer interface {
	// OnStart 在运行开始时调用。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束时调用（阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnSourceDone 在一个 cause list 来源读取完成时调用（done 是完成计数，不是下标）。
	OnSourceDone(done, total int, res domain.SourceResult, dur time.Duration)
	// OnSheetDone 在一个工作表匹配完成时调用（含被跳过的表）。
	OnSheetDone(res domain.SheetResult)
}
