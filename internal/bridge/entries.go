package bridge

import (
	"fmt"
	"strconv"

	"github.com/taoyao-code/lens-broker/internal/protocol/broker"
	"github.com/taoyao-code/lens-broker/internal/protocol/lens"
)

// 镜头命令载荷以 '@' 开头，大多数请求填充到 19 字节
const (
	lensCmd      = 0x40
	queryPadding = 19
	bootPadding  = 11
	customBias   = 0x30
)

// 固定应答
var (
	ack = []byte{'A'}

	emulatedModel     = []byte("M45")
	emulatedProductID = []byte("s12345678\x00")
	emulatedVersion   = []byte("V0101")
	dockVersion       = []byte("G100")
	emulatedCustom    = []byte{0, 0, 0, 0, 0, 0, 0, 0x01}
	emulatedBootVer   = []byte{0x10, 0x00, 0x10, 0x02, 0x04}
)

// DefaultTable 完整命令翻译表
func DefaultTable() *Table {
	return NewTable(
		identification('M', "lens model get", emulatedModel, []byte{lensCmd, 'M'}, func(p []byte) []byte {
			return prefixed('M', decimalAt(p, 3))
		}),
		identification('K', "product id get", emulatedProductID, []byte{lensCmd, 'K', 0xFA}, func(p []byte) []byte {
			return sliceAt(p, 3, 13)
		}),
		identification('V', "lens firmware version get", emulatedVersion, []byte{lensCmd, 'V'}, func(p []byte) []byte {
			if len(p) < 5 {
				return nil
			}
			return []byte(fmt.Sprintf("V%02d%02d", p[3], p[4]))
		}),
		Family{Cmd: 'G', Entries: []Entry{
			{Name: "dock firmware version get", Bypass: Always, Canned: dockVersion},
		}},
		resetFamily(),
		focusFamily(),
		bootloaderFamily(),
		customModeFamily(),
		irisFamily(),
	)
}

// identification 单次查询/应答，模拟模式下返回固定值
func identification(cmd byte, name string, canned, query []byte, reply func([]byte) []byte) Family {
	return Family{Cmd: cmd, Entries: []Entry{{
		Name:    name,
		Bypass:  Emulated,
		Canned:  canned,
		Request: fixed(query, queryPadding),
		Await:   query,
		Reply:   reply,
	}}}
}

// resetFamily 'X'：进入引导程序与镜头复位，只确认不等待应答
func resetFamily() Family {
	return Family{Cmd: 'X', Sub: true, Entries: []Entry{
		{
			Sub: '4', Name: "enter bootloader",
			Bypass: FirmwareUntouched, Canned: ack,
			Request: withByteArg([]byte{lensCmd, 'X', '4'}, 0),
			Reply:   constant(ack),
		},
		{
			Sub: '2', Name: "lens reset 2",
			Bypass: FirmwareUntouched, Canned: ack,
			Request: fixed([]byte{lensCmd, 'X', '2'}, queryPadding),
			Reply:   constant(ack),
		},
		{
			Sub: 'B', Name: "lens reset B",
			Bypass: FirmwareUntouched, Canned: ack,
			Request: fixed([]byte{lensCmd, 'X', 'B'}, queryPadding),
			Reply:   constant(ack),
		},
	}}
}

// focusFamily 'F'：AF/MF 参数读写，事务期间需要同步脉冲
func focusFamily() Family {
	entries := []Entry{}
	params := []struct {
		sub      byte
		name     string
		get, set byte
		emulated []byte
	}{
		{'5', "AF punt", 0xCA, 0xCB, []byte{'1'}},
		{'6', "MF sense", 0xBA, 0xBB, []byte{'0'}},
	}
	for _, p := range params {
		getCmd := []byte{lensCmd, 'F', p.get}
		setCmd := []byte{lensCmd, 'F', p.set}
		entries = append(entries,
			Entry{
				Sub: p.sub, Mode: ModeGet, Name: p.name + " get",
				Bypass: Emulated, Canned: p.emulated,
				Sync:    true,
				Request: fixed(getCmd, queryPadding),
				Await:   getCmd, Wait: WaitParam,
				Reply: func(pl []byte) []byte { return decimalAt(pl, 3) },
			},
			Entry{
				Sub: p.sub, Mode: ModeSet, Name: p.name + " set",
				Bypass: Emulated, Canned: ack,
				Sync:    true,
				Request: withByteArg(setCmd, 0),
				Await:   setCmd, Wait: WaitParam,
				Reply: constant(ack),
			},
		)
	}
	// 变焦位置未实现
	entries = append(entries,
		Entry{Sub: 0x21, Mode: ModeGet, Name: "zoom punt get", Bypass: Always, Canned: []byte{'0'}},
		Entry{Sub: 0x21, Mode: ModeSet, Name: "zoom punt set", Bypass: Always, Canned: broker.Fail},
	)
	return Family{Cmd: 'F', Sub: true, GetSet: true, Entries: entries}
}

// bootloaderFamily 'B'：引导程序子协议，载荷可能是 Lens Manager 预组好的镜头帧
func bootloaderFamily() Family {
	return Family{Cmd: 'B', Sub: true, Entries: []Entry{
		{
			Sub: 0x0B, Name: "firmware reset",
			Bypass: FirmwareUntouched, Canned: []byte{0x0B, 0x04},
			Request: bootloader(0x0B),
			Reply:   constant([]byte{0x0B, 0x04}),
		},
		{
			Sub: 0x0A, Name: "firmware update prepare",
			Bypass: FirmwareUntouched, Canned: []byte{0x0A, 0x04},
			Request: bootloader(0x0A),
			Reply:   constant([]byte{0x0A, 0x04}),
		},
		{
			Sub: 0x01, Name: "bootloader version get",
			Bypass: FirmwareUntouched, Canned: emulatedBootVer,
			Request: bootloader(0x01),
			Await:   []byte{lensCmd, 'X', 0x01},
			Reply: func(p []byte) []byte {
				if len(p) < 4 {
					return nil
				}
				return []byte{0x10, 0x00, 0x10, p[3], 0x04}
			},
		},
		{
			Sub: 0x02, Name: "firmware flash cleaning",
			Bypass: FlashCleanSkipped, Canned: []byte{0x02, 0x04},
			Request: bootloader(0x02),
			Await:   []byte{lensCmd, 'X', 0x02},
			Reply:   constant([]byte{0x02, 0x04}),
		},
		{
			Sub: 0x03, Name: "firmware data download",
			Bypass: FirmwareUntouched, Canned: []byte{0x03, 0x04},
			Request: bootloader(0x03),
			Await:   []byte{0x15},
			Reply:   constant([]byte{0x03, 0x04}),
		},
		{
			Sub: 0x05, Name: "exit bootloader",
			Bypass: FirmwareUntouched, Canned: []byte{0x05, 0x04},
			Request: bootloader(0x05),
			Reply:   constant([]byte{0x05, 0x04}),
		},
	}}
}

// customModeFamily 'P'：无内容为读取，子命令 '8' 为设置
func customModeFamily() Family {
	getCmd := []byte{lensCmd, 'P', 0xFA}
	return Family{Cmd: 'P', Sub: true, Entries: []Entry{
		{
			Name:   "custom mode get",
			Bypass: Emulated, Canned: emulatedCustom,
			// 读取请求不填充
			Request: fixed(getCmd, 0),
			Await:   getCmd, Wait: WaitParam,
			Reply: func(p []byte) []byte { return sliceAt(p, 3, 11) },
		},
		{
			Sub: '8', Name: "custom mode set",
			Bypass: Emulated, Canned: ack,
			Request: withByteArg([]byte{lensCmd, 'P', '8'}, customBias),
			// 镜头以 'F' 族前缀确认
			Await: []byte{lensCmd, 'F', '8'}, Wait: WaitParam,
			Reply: constant(ack),
		},
	}}
}

// irisFamily 'I'：光圈偏移在任何模式下都未实现
func irisFamily() Family {
	zero := []byte{'0'}
	return Family{Cmd: 'I', Sub: true, Entries: []Entry{
		{Sub: ' ', Name: "iris offset reset", Bypass: Always, Canned: broker.Fail},
		{Sub: '!', Name: "iris offset +1", Bypass: Always, Canned: broker.Fail},
		{Sub: '"', Name: "iris offset -1", Bypass: Always, Canned: broker.Fail},
		{Sub: '#', Name: "iris offset save", Bypass: Always, Canned: broker.Fail},
		{Sub: '$', Name: "iris offset get", Bypass: Always, Canned: zero},
		{Sub: '2', Name: "iris offset get 2", Bypass: Always, Canned: zero},
	}}
}

// fixed 固定载荷的请求
func fixed(payload []byte, minSize int) func(*broker.Frame) (lens.Request, error) {
	return func(*broker.Frame) (lens.Request, error) {
		return lens.NewRequest(payload, minSize), nil
	}
}

// withByteArg 在前缀后追加一个由十进制参数（加偏置）得到的字节
func withByteArg(prefix []byte, bias int) func(*broker.Frame) (lens.Request, error) {
	return func(f *broker.Frame) (lens.Request, error) {
		v, err := f.Arg()
		if err != nil {
			return lens.Request{}, fmt.Errorf("parse argument: %w", err)
		}
		v += bias
		if v < 0 || v > 0xFF {
			return lens.Request{}, fmt.Errorf("argument %d out of byte range", v)
		}
		payload := append(append([]byte{}, prefix...), byte(v))
		return lens.NewRequest(payload, queryPadding), nil
	}
}

// bootloader 子命令之后若是预组帧则原样透传，否则构造 '@B'+子命令 请求
func bootloader(sub byte) func(*broker.Frame) (lens.Request, error) {
	return func(f *broker.Frame) (lens.Request, error) {
		rest := f.Args()
		if lens.IsPreframed(rest) {
			return lens.RawRequest(rest), nil
		}
		return lens.NewRequest([]byte{lensCmd, 'B', sub}, bootPadding), nil
	}
}

func constant(reply []byte) func([]byte) []byte {
	return func([]byte) []byte { return reply }
}

func decimalAt(p []byte, i int) []byte {
	if len(p) <= i {
		return nil
	}
	return strconv.AppendInt(nil, int64(p[i]), 10)
}

func sliceAt(p []byte, lo, hi int) []byte {
	if len(p) < hi {
		return nil
	}
	return append([]byte{}, p[lo:hi]...)
}

func prefixed(prefix byte, b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{prefix}, b...)
}
