package lens

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// 镜头侧帧格式：
// start[1]=0xF0 | sizeLE[2] | type[1] | seq[1] | payload[..] | checksumLE[2] | 0x55
// size 为整帧长度（含 start 与终止符），即 len(payload)+8。
const (
	Start      = 0xF0
	Terminator = 0x55

	// Overhead 除载荷外的固定字节数
	Overhead = 8
	// MinSize 合法帧的最小 size（至少 1 字节载荷）
	MinSize = 9

	DefaultType = 0x02
)

var (
	ErrTimeout          = errors.New("lens response timeout")
	ErrNotPreframed     = errors.New("not a pre-framed lens block")
	ErrShortPassthrough = errors.New("pre-framed block shorter than declared size")
)

// Frame 镜头帧
type Frame struct {
	Size     uint16
	Type     byte
	Seq      byte
	Payload  []byte
	Checksum uint16
}

// Valid 校验和是否匹配（接收时不强制校验，仅用于诊断）
func (f *Frame) Valid() bool {
	return f.Checksum == Checksum(f.Size, f.Type, f.Seq, f.Payload)
}

// Checksum 16 位累加和：size 高低字节 + type + seq + 全部载荷字节（含填充）
func Checksum(size uint16, typ, seq byte, payload []byte) uint16 {
	sum := uint32(size>>8) + uint32(size&0xFF) + uint32(typ) + uint32(seq)
	for _, b := range payload {
		sum += uint32(b)
	}
	return uint16(sum & 0xFFFF)
}

// Encode 构造一帧镜头请求；minSize>0 时载荷以 0 填充到 minSize
func Encode(payload []byte, minSize int, typ, seq byte) []byte {
	n := len(payload)
	if minSize > n {
		n = minSize
	}
	padded := make([]byte, n)
	copy(padded, payload)

	size := uint16(n + Overhead)
	buf := make([]byte, 0, int(size))
	buf = append(buf, Start)
	buf = binary.LittleEndian.AppendUint16(buf, size)
	buf = append(buf, typ, seq)
	buf = append(buf, padded...)
	buf = binary.LittleEndian.AppendUint16(buf, Checksum(size, typ, seq, padded))
	return append(buf, Terminator)
}

// Passthrough 透传 Lens Manager 预先组好的镜头帧
// 严格按帧内声明的 size 截取，不重新填充、不重新计算校验（固件数据必须原样到达硬件）
func Passthrough(pre []byte) ([]byte, error) {
	if len(pre) < 3 || pre[0] != Start {
		return nil, ErrNotPreframed
	}
	size := int(binary.LittleEndian.Uint16(pre[1:3]))
	if size < MinSize {
		return nil, fmt.Errorf("%w: declared size %d", ErrNotPreframed, size)
	}
	if size > len(pre) {
		return nil, fmt.Errorf("%w: declared %d, have %d", ErrShortPassthrough, size, len(pre))
	}
	return pre[:size], nil
}

// IsPreframed 判断字节块是否为预组帧
func IsPreframed(b []byte) bool {
	return len(b) >= 3 && b[0] == Start
}

// Request 一次镜头请求：Raw 非空时走透传，否则按 Payload/MinSize 编码
type Request struct {
	Payload []byte
	MinSize int
	Type    byte
	Seq     byte
	Raw     []byte
}

// NewRequest 普通请求（type=2, seq=0）
func NewRequest(payload []byte, minSize int) Request {
	return Request{Payload: payload, MinSize: minSize, Type: DefaultType}
}

// RawRequest 透传请求
func RawRequest(pre []byte) Request {
	return Request{Raw: pre}
}

// Bytes 返回线上字节
func (r Request) Bytes() ([]byte, error) {
	if r.Raw != nil {
		return Passthrough(r.Raw)
	}
	return Encode(r.Payload, r.MinSize, r.Type, r.Seq), nil
}
