package broker

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/taoyao-code/lens-broker/internal/logging"
	"github.com/taoyao-code/lens-broker/internal/metrics"
)

// Decoder Broker 帧流式解码器
type Decoder struct {
	r       *bufio.Reader
	gate    *logging.FrameGate
	metrics *metrics.BridgeMetrics
}

// NewDecoder 创建解码器；gate/m 可为 nil
func NewDecoder(r io.Reader, gate *logging.FrameGate, m *metrics.BridgeMetrics) *Decoder {
	if gate == nil {
		gate = logging.NewFrameGate(nil, false)
	}
	return &Decoder{r: bufio.NewReader(r), gate: gate, metrics: m}
}

// Decode 阻塞读取下一帧，流关闭时返回 io.EOF 或底层错误
func (d *Decoder) Decode() (*Frame, error) {
	for {
		// 丢弃 0x02 之前的所有字节
		if _, err := d.r.ReadBytes(STX); err != nil {
			return nil, err
		}
		buf, err := d.readLine()
		if err != nil {
			return nil, err
		}
		if len(buf) > 2 && buf[2] == lensStart {
			// 内嵌镜头帧可能包含 CRLF，按声明长度补齐
			want := int(binary.LittleEndian.Uint16(buf[3:5])) + 4
			if len(buf) < want {
				rest := make([]byte, want-len(buf))
				if _, err := io.ReadFull(d.r, rest); err != nil {
					return nil, fmt.Errorf("read embedded lens frame: %w", err)
				}
				buf = append(buf, rest...)
			}
		}
		if len(buf) < 3 {
			// 空帧：0x02 后直接 CRLF
			continue
		}

		d.gate.Observe(IsFirmwareData(buf))
		d.metrics.BrokerFrame("rx")
		d.gate.L().Info("broker rx", zap.String("raw", "02"+hex.EncodeToString(buf)))
		return parse(buf), nil
	}
}

// readLine 读取到 CRLF（含）为止
func (d *Decoder) readLine() ([]byte, error) {
	var buf []byte
	for {
		chunk, err := d.r.ReadBytes(LF)
		buf = append(buf, chunk...)
		if err != nil {
			return nil, err
		}
		if len(buf) >= 2 && buf[len(buf)-2] == CR {
			return buf, nil
		}
	}
}

// Encoder Broker 应答发送器
type Encoder struct {
	w       io.Writer
	gate    *logging.FrameGate
	metrics *metrics.BridgeMetrics
}

// NewEncoder 创建发送器；gate/m 可为 nil
func NewEncoder(w io.Writer, gate *logging.FrameGate, m *metrics.BridgeMetrics) *Encoder {
	if gate == nil {
		gate = logging.NewFrameGate(nil, false)
	}
	return &Encoder{w: w, gate: gate, metrics: m}
}

// Send 编码并写出一帧应答
func (e *Encoder) Send(payload []byte) error {
	out := Encode(payload)
	n, err := e.w.Write(out)
	if err != nil {
		return fmt.Errorf("write broker frame: %w", err)
	}
	if n != len(out) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(out))
	}
	e.metrics.BrokerFrame("tx")
	e.gate.L().Info("broker tx", zap.String("raw", hex.EncodeToString(out)))
	return nil
}
