package lens

import (
	"encoding/binary"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/taoyao-code/lens-broker/internal/metrics"
)

// Source 镜头侧可设置读超时的字节源
// 读超时到期时 Read 返回 (0, nil)，与 go.bug.st/serial 行为一致；t<=0 表示阻塞读
type Source interface {
	io.Reader
	SetReadTimeout(t time.Duration) error
}

// DefaultByteTimeout 帧头/帧体单次读取的默认超时
const DefaultByteTimeout = 500 * time.Millisecond

// errStall 帧体读取中途停顿
var errStall = errors.New("frame body stalled")

// Decoder 镜头帧解码器（带重新同步）
type Decoder struct {
	src         Source
	byteTimeout time.Duration
	log         func() *zap.Logger
	metrics     *metrics.BridgeMetrics
	warn        rate.Sometimes
}

// NewDecoder 创建解码器；byteTimeout 约束帧头/帧体的单次读取，<=0 时取 DefaultByteTimeout
func NewDecoder(src Source, byteTimeout time.Duration, log func() *zap.Logger, m *metrics.BridgeMetrics) *Decoder {
	if byteTimeout <= 0 {
		byteTimeout = DefaultByteTimeout
	}
	if log == nil {
		nop := zap.NewNop()
		log = func() *zap.Logger { return nop }
	}
	return &Decoder{
		src:         src,
		byteTimeout: byteTimeout,
		log:         log,
		metrics:     m,
		warn:        rate.Sometimes{First: 3, Interval: 5 * time.Second},
	}
}

// Decode 读取下一帧合法帧
// timeout 约束整次解码，<=0 表示不限；帧体读取同时受 byteTimeout 与剩余时间约束。
// size<9 或终止符错误的帧被丢弃并继续寻找。
// 校验和只读取不校验。
func (d *Decoder) Decode(timeout time.Duration) (*Frame, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		if err := d.scan(deadline); err != nil {
			return nil, err
		}

		var head [4]byte
		if err := d.readFull(head[:], deadline); err != nil {
			if errors.Is(err, errStall) {
				d.discard("stall", nil)
				continue
			}
			return nil, err
		}
		size := binary.LittleEndian.Uint16(head[0:2])
		if size < MinSize {
			d.discard("size", head[:])
			continue
		}

		// 载荷 + 校验和(2) + 终止符(1)
		body := make([]byte, int(size)-Overhead+3)
		if err := d.readFull(body, deadline); err != nil {
			if errors.Is(err, errStall) {
				d.discard("stall", head[:])
				continue
			}
			return nil, err
		}
		if body[len(body)-1] != Terminator {
			d.discard("terminator", head[:])
			continue
		}

		n := len(body) - 3
		return &Frame{
			Size:     size,
			Type:     head[2],
			Seq:      head[3],
			Payload:  body[:n],
			Checksum: binary.LittleEndian.Uint16(body[n : n+2]),
		}, nil
	}
}

// scan 丢弃字节直到读到起始字节
func (d *Decoder) scan(deadline time.Time) error {
	var b [1]byte
	for {
		timeout := time.Duration(0)
		if !deadline.IsZero() {
			timeout = time.Until(deadline)
			if timeout <= 0 {
				return ErrTimeout
			}
		}
		if err := d.src.SetReadTimeout(timeout); err != nil {
			return err
		}
		n, err := d.src.Read(b[:])
		if err != nil {
			return err
		}
		if n == 1 && b[0] == Start {
			return nil
		}
	}
}

// readFull 读满 p；单次读超时视为停顿，超过 deadline 返回 ErrTimeout
func (d *Decoder) readFull(p []byte, deadline time.Time) error {
	for off := 0; off < len(p); {
		timeout := d.byteTimeout
		if !deadline.IsZero() {
			left := time.Until(deadline)
			if left <= 0 {
				return ErrTimeout
			}
			if left < timeout {
				timeout = left
			}
		}
		if err := d.src.SetReadTimeout(timeout); err != nil {
			return err
		}
		n, err := d.src.Read(p[off:])
		if err != nil {
			return err
		}
		if n == 0 {
			return errStall
		}
		off += n
	}
	return nil
}

func (d *Decoder) discard(reason string, head []byte) {
	d.metrics.Discard(reason)
	d.warn.Do(func() {
		d.log().Warn("lens frame discarded, resync", zap.String("reason", reason), zap.Binary("head", head))
	})
}
