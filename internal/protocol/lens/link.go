package lens

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/lens-broker/internal/logging"
	"github.com/taoyao-code/lens-broker/internal/metrics"
)

// Port 镜头传输层：字节流 + 读超时 + 请求片选线
type Port interface {
	Source
	io.Writer
	SetRequestLine(level bool) error
}

// Link 镜头链路：发送请求、等待匹配应答
// 协议不支持多路复用，同一时刻只有一个事务在途。
type Link struct {
	port    Port
	dec     *Decoder
	gate    *logging.FrameGate
	metrics *metrics.BridgeMetrics
}

// NewLink 创建镜头链路；gate/m 可为 nil
func NewLink(port Port, byteTimeout time.Duration, gate *logging.FrameGate, m *metrics.BridgeMetrics) *Link {
	if gate == nil {
		gate = logging.NewFrameGate(nil, false)
	}
	return &Link{
		port:    port,
		dec:     NewDecoder(port, byteTimeout, gate.L, m),
		gate:    gate,
		metrics: m,
	}
}

// Send 发送一帧：片选拉低 -> 写 -> 片选拉高
func (l *Link) Send(req Request) error {
	out, err := req.Bytes()
	if err != nil {
		return err
	}
	if err := l.port.SetRequestLine(false); err != nil {
		return fmt.Errorf("assert request line: %w", err)
	}
	n, werr := l.port.Write(out)
	if err := l.port.SetRequestLine(true); err != nil && werr == nil {
		werr = fmt.Errorf("release request line: %w", err)
	}
	if werr != nil {
		return fmt.Errorf("write lens frame: %w", werr)
	}
	if n != len(out) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(out))
	}
	l.metrics.LensFrame("tx")
	l.gate.L().Info("lens tx", zap.String("raw", hex.EncodeToString(out)))
	return nil
}

// Await 等待载荷以 prefix 开头的应答；不匹配的帧静默丢弃
// timeout<=0 表示不限时
func (l *Link) Await(prefix []byte, timeout time.Duration) (*Frame, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		remaining := time.Duration(0)
		if !deadline.IsZero() {
			remaining = time.Until(deadline)
			if remaining <= 0 {
				return nil, ErrTimeout
			}
		}
		f, err := l.dec.Decode(remaining)
		if err != nil {
			return nil, err
		}
		l.metrics.LensFrame("rx")
		l.gate.L().Info("lens rx",
			zap.Uint16("size", f.Size),
			zap.Uint8("type", f.Type),
			zap.Uint8("seq", f.Seq),
			zap.String("payload", hex.EncodeToString(f.Payload)),
			zap.Bool("checksum_ok", f.Valid()))
		if bytes.HasPrefix(f.Payload, prefix) {
			return f, nil
		}
		l.metrics.Discard("unmatched")
		l.gate.L().Debug("lens frame does not match awaited prefix", zap.String("want", hex.EncodeToString(prefix)))
	}
}
