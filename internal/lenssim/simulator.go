// Package lenssim 软件镜头：解析写入的镜头帧并注入应答，用于无硬件联调与测试
package lenssim

import (
	"bytes"
	"encoding/binary"
	"sync"

	"go.uber.org/zap"

	"github.com/taoyao-code/lens-broker/internal/protocol/lens"
	"github.com/taoyao-code/lens-broker/internal/serialport"
)

// 固件数据块的确认字节
const firmwareAck = 0x15

// State 模拟镜头寄存器
type State struct {
	Model       byte
	ProductID   []byte // 10 字节，含结尾 0
	FirmwareHi  byte
	FirmwareLo  byte
	AFPunt      byte
	MFSense     byte
	Custom      [8]byte
	BootVersion byte
}

// DefaultState 出厂状态
func DefaultState() State {
	s := State{
		Model:       45,
		ProductID:   []byte("s12345678\x00"),
		FirmwareHi:  1,
		FirmwareLo:  1,
		AFPunt:      1,
		BootVersion: 2,
	}
	s.Custom[7] = 0x01
	return s
}

// Simulator 挂接在 MemPort 上的软件镜头
type Simulator struct {
	port   *serialport.MemPort
	logger *zap.Logger

	mu       sync.Mutex
	state    State
	buf      []byte
	silent   bool
	requests [][]byte
	blocks   int
}

// New 创建模拟镜头并挂接到 port 的写入钩子
func New(port *serialport.MemPort, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Simulator{port: port, logger: logger, state: DefaultState()}
	port.OnWrite = s.handle
	return s
}

// SetSilent 静默时接收请求但不应答（模拟镜头无响应）
func (s *Simulator) SetSilent(v bool) {
	s.mu.Lock()
	s.silent = v
	s.mu.Unlock()
}

// State 返回寄存器快照
func (s *Simulator) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.ProductID = append([]byte{}, s.state.ProductID...)
	return st
}

// Requests 返回已收到的请求载荷（含填充）
func (s *Simulator) Requests() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.requests))
	copy(out, s.requests)
	return out
}

// FirmwareBlocks 已接收的固件数据块数量
func (s *Simulator) FirmwareBlocks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocks
}

func (s *Simulator) handle(p []byte) {
	s.mu.Lock()
	s.buf = append(s.buf, p...)
	var replies [][]byte
	for {
		payload, ok := s.next()
		if !ok {
			break
		}
		s.requests = append(s.requests, payload)
		if r := s.answer(payload); r != nil && !s.silent {
			replies = append(replies, lens.Encode(r, 0, lens.DefaultType, 0))
		}
	}
	s.mu.Unlock()

	for _, r := range replies {
		s.port.Feed(r)
	}
}

// next 从缓冲中取出一帧载荷，坏帧丢弃并重新同步
func (s *Simulator) next() ([]byte, bool) {
	for {
		i := bytes.IndexByte(s.buf, lens.Start)
		if i < 0 {
			s.buf = s.buf[:0]
			return nil, false
		}
		s.buf = s.buf[i:]
		if len(s.buf) < 3 {
			return nil, false
		}
		size := int(binary.LittleEndian.Uint16(s.buf[1:3]))
		if size < lens.MinSize {
			s.buf = s.buf[1:]
			continue
		}
		if len(s.buf) < size {
			return nil, false
		}
		frame := s.buf[:size]
		s.buf = s.buf[size:]
		if frame[size-1] != lens.Terminator {
			s.logger.Warn("lenssim: bad terminator")
			continue
		}
		return append([]byte{}, frame[5:size-3]...), true
	}
}

// answer 生成应答载荷；nil 表示该请求无应答
func (s *Simulator) answer(p []byte) []byte {
	st := &s.state
	if len(p) == 0 || p[0] != '@' {
		// 透传的固件数据块
		s.blocks++
		return []byte{firmwareAck}
	}
	if len(p) < 2 {
		return nil
	}
	at := func(i int) byte {
		if i < len(p) {
			return p[i]
		}
		return 0
	}
	switch p[1] {
	case 'M':
		return []byte{'@', 'M', 0, st.Model}
	case 'K':
		return append([]byte{'@', 'K', 0xFA}, st.ProductID...)
	case 'V':
		return []byte{'@', 'V', 0, st.FirmwareHi, st.FirmwareLo}
	case 'F':
		switch at(2) {
		case 0xCA:
			return []byte{'@', 'F', 0xCA, st.AFPunt}
		case 0xCB:
			st.AFPunt = at(3)
			return []byte{'@', 'F', 0xCB}
		case 0xBA:
			return []byte{'@', 'F', 0xBA, st.MFSense}
		case 0xBB:
			st.MFSense = at(3)
			return []byte{'@', 'F', 0xBB}
		}
	case 'P':
		switch at(2) {
		case 0xFA:
			return append([]byte{'@', 'P', 0xFA}, st.Custom[:]...)
		case '8':
			st.Custom[7] = at(3) - 0x30
			return []byte{'@', 'F', '8'}
		}
	case 'B':
		switch at(2) {
		case 0x01:
			return []byte{'@', 'X', 0x01, st.BootVersion}
		case 0x02:
			return []byte{'@', 'X', 0x02}
		case 0x03:
			s.blocks++
			return []byte{firmwareAck}
		}
	}
	// 复位、进入/退出引导程序等不应答
	return nil
}
