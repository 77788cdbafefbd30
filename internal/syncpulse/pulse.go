// Package syncpulse 模拟机身视频时钟派生的 VD 同步信号。
//
// 部分 AF/MF 事务要求事务期间镜头能持续看到该信号作为活性输入；
// 它不属于任何帧，也不携带数据。
package syncpulse

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/lens-broker/internal/metrics"
)

// DefaultPeriod 脉冲周期
const DefaultPeriod = 20 * time.Millisecond

// Flag 同步标志：桥接循环唯一写，脉冲任务唯一读
type Flag struct {
	v atomic.Bool
}

func (f *Flag) Set()         { f.v.Store(true) }
func (f *Flag) Clear()       { f.v.Store(false) }
func (f *Flag) Active() bool { return f.v.Load() }

// Line 同步控制线
type Line interface {
	SetSyncLine(level bool) error
}

// Pulser 周期脉冲任务
type Pulser struct {
	Line     Line // 纯模拟时可为 nil
	Flag     *Flag
	Period   time.Duration
	Emulated bool
	Logger   *zap.Logger
	Metrics  *metrics.BridgeMetrics
}

// Run 运行到 ctx 取消为止
func (p *Pulser) Run(ctx context.Context) {
	period := p.Period
	if period <= 0 {
		period = DefaultPeriod
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Pulser) tick() {
	if p.Emulated || p.Line == nil || p.Flag == nil || !p.Flag.Active() {
		return
	}
	// 高后立即拉低
	err := p.Line.SetSyncLine(true)
	if err == nil {
		err = p.Line.SetSyncLine(false)
	}
	if err != nil {
		if p.Logger != nil {
			p.Logger.Debug("sync pulse failed", zap.Error(err))
		}
		return
	}
	p.Metrics.Pulse()
}
