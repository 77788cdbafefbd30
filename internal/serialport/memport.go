package serialport

import (
	"io"
	"sync"
	"time"
)

// Line 控制线名称
const (
	LineSync    = "sync"
	LineRequest = "request"
)

// LineEvent 控制线电平变化记录
type LineEvent struct {
	Line  string
	Level bool
}

// MemPort 内存串口
// 用于软件模拟镜头与测试：写入的数据可被 OnWrite 钩子消费，读取的数据由 Feed 注入。
type MemPort struct {
	mu       sync.Mutex
	rx       []byte
	tx       []byte
	events   []LineEvent
	timeout  time.Duration
	eof      bool
	closed   bool
	notify   chan struct{}
	closedCh chan struct{}

	// OnWrite 写入钩子，在锁外同步调用
	OnWrite func(p []byte)
	// OnLine 控制线钩子，在锁外同步调用
	OnLine func(ev LineEvent)
}

// NewMemPort 创建内存串口，默认阻塞读
func NewMemPort() *MemPort {
	return &MemPort{
		timeout:  -1,
		notify:   make(chan struct{}, 1),
		closedCh: make(chan struct{}),
	}
}

// Feed 注入待读数据
func (m *MemPort) Feed(p []byte) {
	m.mu.Lock()
	m.rx = append(m.rx, p...)
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// CloseInput 输入耗尽后 Read 返回 io.EOF
func (m *MemPort) CloseInput() {
	m.mu.Lock()
	m.eof = true
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Written 返回迄今写入的全部数据（副本）
func (m *MemPort) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.tx))
	copy(out, m.tx)
	return out
}

// Events 返回控制线变化记录（副本）
func (m *MemPort) Events() []LineEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LineEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Read 有数据立即返回；无数据时按读超时等待，超时返回 (0, nil)，与真实串口一致
func (m *MemPort) Read(b []byte) (int, error) {
	for {
		m.mu.Lock()
		if len(m.rx) > 0 {
			n := copy(b, m.rx)
			m.rx = m.rx[n:]
			m.mu.Unlock()
			return n, nil
		}
		if m.closed || m.eof {
			m.mu.Unlock()
			return 0, io.EOF
		}
		timeout := m.timeout
		m.mu.Unlock()

		if timeout < 0 {
			select {
			case <-m.notify:
			case <-m.closedCh:
			}
			continue
		}
		timer := time.NewTimer(timeout)
		select {
		case <-m.notify:
			timer.Stop()
		case <-m.closedCh:
			timer.Stop()
		case <-timer.C:
			return 0, nil
		}
	}
}

func (m *MemPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	m.tx = append(m.tx, p...)
	hook := m.OnWrite
	m.mu.Unlock()
	if hook != nil {
		cp := make([]byte, len(p))
		copy(cp, p)
		hook(cp)
	}
	return len(p), nil
}

func (m *MemPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.closedCh)
	}
	return nil
}

// SetReadTimeout t<=0 表示阻塞读
func (m *MemPort) SetReadTimeout(t time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t <= 0 {
		t = -1
	}
	m.timeout = t
	return nil
}

func (m *MemPort) SetSyncLine(level bool) error {
	m.line(LineEvent{Line: LineSync, Level: level})
	return nil
}

func (m *MemPort) SetRequestLine(level bool) error {
	m.line(LineEvent{Line: LineRequest, Level: level})
	return nil
}

// SetDTR / SetRTS 使 MemPort 也能被 LensPort 包装
func (m *MemPort) SetDTR(level bool) error { return m.SetSyncLine(level) }
func (m *MemPort) SetRTS(level bool) error { return m.SetRequestLine(level) }

func (m *MemPort) line(ev LineEvent) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	hook := m.OnLine
	m.mu.Unlock()
	if hook != nil {
		hook(ev)
	}
}
