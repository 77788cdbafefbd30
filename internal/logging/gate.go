package logging

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// FrameGate 帧日志闸门
// 固件数据下载期间逐帧打印会拖慢链路，导致 Lens Manager 超时；
// 除非开启 verbose，否则在固件数据帧在途时静默帧日志。
// 只影响日志量，不影响协议处理。
type FrameGate struct {
	base    *zap.Logger
	nop     *zap.Logger
	verbose bool
	quiet   atomic.Bool
}

// NewFrameGate 创建帧日志闸门；base 为 nil 时始终静默
func NewFrameGate(base *zap.Logger, verbose bool) *FrameGate {
	if base == nil {
		base = zap.NewNop()
	}
	return &FrameGate{base: base, nop: zap.NewNop(), verbose: verbose}
}

// Observe 根据新收到的 Broker 帧切换静默状态，firmware 表示该帧是否为固件数据帧
func (g *FrameGate) Observe(firmware bool) {
	g.quiet.Store(firmware && !g.verbose)
}

// Quiet 当前是否静默
func (g *FrameGate) Quiet() bool {
	return g.quiet.Load()
}

// L 返回当前应使用的帧日志器
func (g *FrameGate) L() *zap.Logger {
	if g.quiet.Load() {
		return g.nop
	}
	return g.base
}
