package bridge

import cfgpkg "github.com/taoyao-code/lens-broker/internal/config"

// RuntimeConfig 进程级运行开关，启动时构造一次，之后只读
type RuntimeConfig struct {
	// EmulateHardware 不连接镜头，直接返回固定应答
	EmulateHardware bool
	// SkipFirmwareTouch 复位/引导程序类操作不触碰硬件（除非 ForceFirmwareFix）
	SkipFirmwareTouch bool
	// ForceFirmwareFix 上次升级失败、镜头停留在引导程序时强制走硬件
	ForceFirmwareFix bool
	// SkipFlashClean 跳过 flash 擦除（至少完整擦除过一次后才可开启）
	SkipFlashClean bool
	// VerboseFirmwareLogging 固件数据下载期间仍逐帧打印
	VerboseFirmwareLogging bool
}

// FromConfig 由配置文件的 bridge 段构造
func FromConfig(c cfgpkg.BridgeConfig) RuntimeConfig {
	return RuntimeConfig{
		EmulateHardware:        c.EmulateHardware,
		SkipFirmwareTouch:      c.SkipFirmwareTouch,
		ForceFirmwareFix:       c.ForceFirmwareFix,
		SkipFlashClean:         c.SkipFlashClean,
		VerboseFirmwareLogging: c.VerboseFirmwareLogging,
	}
}

// Gate 旁路判定：返回 true 时条目直接回复固定应答，不发生镜头事务
type Gate func(rc RuntimeConfig) bool

// Always 任何配置下都旁路（未实现的功能）
func Always(RuntimeConfig) bool { return true }

// Emulated 模拟模式下旁路
func Emulated(rc RuntimeConfig) bool { return rc.EmulateHardware }

// FirmwareUntouched 复位、进入引导程序及引导程序子协议：未强制修复且（模拟或不触碰固件）时旁路
func FirmwareUntouched(rc RuntimeConfig) bool {
	return !rc.ForceFirmwareFix && (rc.EmulateHardware || rc.SkipFirmwareTouch)
}

// FlashCleanSkipped flash 擦除：显式跳过或固件不触碰时旁路
func FlashCleanSkipped(rc RuntimeConfig) bool {
	return rc.SkipFlashClean || FirmwareUntouched(rc)
}
