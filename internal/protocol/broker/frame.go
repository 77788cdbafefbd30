package broker

import (
	"errors"
	"strconv"
	"strings"
)

// Broker 侧帧格式：0x02 | payload | 0x0D 0x0A，无校验
// 扩展形式：payload[2]==0xF0 时，payload[3:5] 为内嵌镜头帧的小端长度，
// 整帧（不含 0x02）长度 = size + 4（命令 + 子命令 + 内嵌帧 + CRLF）。
const (
	STX = 0x02
	CR  = 0x0D
	LF  = 0x0A

	lensStart = 0xF0
)

// 失败哨兵：未知命令/未实现功能统一回复 'F'
var Fail = []byte{'F'}

var ErrNoArg = errors.New("missing decimal argument")

// Frame Lens Manager 发来的一个请求
type Frame struct {
	Command byte
	Body    []byte // 命令字节之后、CRLF 之前的内容
	Raw     []byte // 0x02 之后的原始字节（含 CRLF）
}

// Sub 返回子命令字节
func (f *Frame) Sub() (byte, bool) {
	if len(f.Body) == 0 {
		return 0, false
	}
	return f.Body[0], true
}

// Args 返回子命令之后的参数字节
func (f *Frame) Args() []byte {
	if len(f.Body) < 2 {
		return nil
	}
	return f.Body[1:]
}

// Arg 解析子命令之后的十进制参数
// Lens Manager 在子命令与数值之间有一个分隔字节，例如 "F5 12" 中数值为 12
func (f *Frame) Arg() (int, error) {
	args := f.Args()
	if len(args) < 2 {
		return 0, ErrNoArg
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(args[1:])))
	if err != nil {
		return 0, err
	}
	return v, nil
}

// IsFirmwareData 判断是否为固件数据下载帧（'B' 0x03）
func IsFirmwareData(raw []byte) bool {
	return len(raw) >= 2 && raw[0] == 'B' && raw[1] == 0x03
}

// Encode 构造 Broker 应答帧
func Encode(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+3)
	out = append(out, STX)
	out = append(out, payload...)
	return append(out, CR, LF)
}

// parse 将 0x02 之后的缓冲拆成命令与内容，末尾两个字节视为终止符
func parse(buf []byte) *Frame {
	return &Frame{Command: buf[0], Body: buf[1 : len(buf)-2], Raw: buf}
}
