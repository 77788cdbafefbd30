// Package serialport 提供两条串口链路的打开与控制线管理。
//
// 镜头侧串口同时承载两根控制线：DTR 接 body_vd_lens（VD 同步脉冲），
// RTS 接 body_cs_lens（请求帧片选）。两者由 LensPort 独占管理。
package serialport

import (
	"fmt"
	"io"
	"sync"
	"time"

	tarm "github.com/tarm/serial"
	"go.bug.st/serial"

	cfgpkg "github.com/taoyao-code/lens-broker/internal/config"
)

// Port 最小串口抽象（Broker 侧只需要字节流）
type Port interface {
	io.ReadWriteCloser
}

// modemPort 带调制解调控制线的串口（go.bug.st/serial.Port 满足该接口）
type modemPort interface {
	io.ReadWriteCloser
	SetDTR(dtr bool) error
	SetRTS(rts bool) error
	SetReadTimeout(t time.Duration) error
}

func mode(baud int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// OpenBroker 打开面向 Lens Manager 的串口（阻塞读，无超时）
func OpenBroker(cfg cfgpkg.BrokerConfig) (Port, error) {
	switch cfg.Driver {
	case "tarm":
		p, err := tarm.OpenPort(&tarm.Config{
			Name:     cfg.Device,
			Baud:     cfg.Baud,
			Size:     8,
			Parity:   tarm.ParityNone,
			StopBits: tarm.Stop1,
		})
		if err != nil {
			return nil, fmt.Errorf("open broker port %s: %w", cfg.Device, err)
		}
		return p, nil
	case "bugst", "":
		p, err := serial.Open(cfg.Device, mode(cfg.Baud))
		if err != nil {
			return nil, fmt.Errorf("open broker port %s: %w", cfg.Device, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown broker driver %q", cfg.Driver)
	}
}

// LensPort 镜头侧串口
// 所有控制线操作经同一把锁串行化：同步脉冲与请求片选不会交错在同一对电平切换之间。
// 数据写入不持有该锁，脉冲不会阻塞请求帧的发送。
type LensPort struct {
	p  modemPort
	mu sync.Mutex
}

// NewLensPort 包装任意带控制线的串口
func NewLensPort(p modemPort) *LensPort {
	return &LensPort{p: p}
}

// OpenLens 打开镜头串口（8N1）
func OpenLens(cfg cfgpkg.LensConfig) (*LensPort, error) {
	p, err := serial.Open(cfg.Device, mode(cfg.Baud))
	if err != nil {
		return nil, fmt.Errorf("open lens port %s: %w", cfg.Device, err)
	}
	return NewLensPort(p), nil
}

func (l *LensPort) Read(b []byte) (int, error)  { return l.p.Read(b) }
func (l *LensPort) Write(b []byte) (int, error) { return l.p.Write(b) }
func (l *LensPort) Close() error                { return l.p.Close() }

// SetReadTimeout 设置读超时；t<=0 表示阻塞读
func (l *LensPort) SetReadTimeout(t time.Duration) error {
	if t <= 0 {
		t = serial.NoTimeout
	}
	return l.p.SetReadTimeout(t)
}

// SetSyncLine 设置 VD 同步线（DTR）电平
func (l *LensPort) SetSyncLine(level bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.p.SetDTR(level)
}

// SetRequestLine 设置请求片选线（RTS）电平
func (l *LensPort) SetRequestLine(level bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.p.SetRTS(level)
}

// Wake 上电唤醒序列：RTS 高-低-高，DTR 拉低
// sleep 为 nil 时使用 time.Sleep
func (l *LensPort) Wake(sleep func(time.Duration)) error {
	if sleep == nil {
		sleep = time.Sleep
	}
	sleep(500 * time.Millisecond)
	steps := []struct {
		rts   bool
		pause time.Duration
	}{
		{true, 100 * time.Millisecond},
		{false, 100 * time.Millisecond},
		{true, 0},
	}
	for _, s := range steps {
		if err := l.SetRequestLine(s.rts); err != nil {
			return fmt.Errorf("wake rts: %w", err)
		}
		if s.pause > 0 {
			sleep(s.pause)
		}
	}
	if err := l.SetSyncLine(false); err != nil {
		return fmt.Errorf("wake dtr: %w", err)
	}
	return nil
}
