package bridge

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/taoyao-code/lens-broker/internal/logging"
	"github.com/taoyao-code/lens-broker/internal/metrics"
	"github.com/taoyao-code/lens-broker/internal/protocol/broker"
	"github.com/taoyao-code/lens-broker/internal/protocol/lens"
	"github.com/taoyao-code/lens-broker/internal/syncpulse"
)

const (
	DefaultResponseTimeout = 10 * time.Second
	DefaultParamTimeout    = time.Second

	// Broker 侧读错误后的重试间隔
	minRetryDelay = 10 * time.Millisecond
	maxRetryDelay = time.Second
)

// Options 桥接循环依赖
type Options struct {
	Runtime RuntimeConfig
	// Table 为 nil 时使用 DefaultTable
	Table *Table
	// Link 镜头链路；纯模拟时为 nil
	Link *lens.Link
	// Flag 同步标志，与 syncpulse.Pulser 共享
	Flag *syncpulse.Flag

	ResponseTimeout time.Duration
	ParamTimeout    time.Duration

	Logger  *zap.Logger
	Gate    *logging.FrameGate
	Metrics *metrics.BridgeMetrics
}

// Stats 桥接运行统计（供健康检查使用）
type Stats struct {
	Requests            int64
	LastRequest         time.Time
	ConsecutiveTimeouts int64
	LensAttached        bool
}

type loopStats struct {
	requests    atomic.Int64
	lastRequest atomic.Int64 // unix nano
	timeouts    atomic.Int64
}

// Loop 桥接循环：逐个处理 Broker 请求，同一时刻最多一个镜头事务
type Loop struct {
	rc              RuntimeConfig
	table           *Table
	link            *lens.Link
	flag            *syncpulse.Flag
	responseTimeout time.Duration
	paramTimeout    time.Duration

	dec     *broker.Decoder
	enc     *broker.Encoder
	logger  *zap.Logger
	gate    *logging.FrameGate
	metrics *metrics.BridgeMetrics
	stats   loopStats
	warn    rate.Sometimes
}

// New 创建桥接循环，port 为 Broker 侧字节流
func New(port io.ReadWriter, opts Options) *Loop {
	if opts.Table == nil {
		opts.Table = DefaultTable()
	}
	if opts.Flag == nil {
		opts.Flag = &syncpulse.Flag{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Gate == nil {
		opts.Gate = logging.NewFrameGate(opts.Logger, opts.Runtime.VerboseFirmwareLogging)
	}
	if opts.ResponseTimeout <= 0 {
		opts.ResponseTimeout = DefaultResponseTimeout
	}
	if opts.ParamTimeout <= 0 {
		opts.ParamTimeout = DefaultParamTimeout
	}
	return &Loop{
		rc:              opts.Runtime,
		table:           opts.Table,
		link:            opts.Link,
		flag:            opts.Flag,
		responseTimeout: opts.ResponseTimeout,
		paramTimeout:    opts.ParamTimeout,
		dec:             broker.NewDecoder(port, opts.Gate, opts.Metrics),
		enc:             broker.NewEncoder(port, opts.Gate, opts.Metrics),
		logger:          opts.Logger,
		gate:            opts.Gate,
		metrics:         opts.Metrics,
		warn:            rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
}

// Run 持续处理请求，直到 Broker 流关闭或 ctx 取消
// 解码阻塞期间无法感知 ctx，调用方需关闭串口以解除阻塞。
// 连续的读错误（如 USB 串口被拔出）按指数退避重试，告警限频。
func (l *Loop) Run(ctx context.Context) error {
	delay := minRetryDelay
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := l.Serve(ctx)
		if err == nil {
			delay = minRetryDelay
			continue
		}
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return err
		}
		l.warn.Do(func() {
			l.logger.Warn("broker transaction aborted", zap.Error(err), zap.Duration("retry_in", delay))
		})
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if delay *= 2; delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

// Serve 处理一个请求：解码 -> 查表 -> 镜头事务 -> 回复恰好一帧
func (l *Loop) Serve(ctx context.Context) error {
	frame, err := l.dec.Decode()
	if err != nil {
		return err
	}
	start := time.Now()
	l.stats.requests.Add(1)
	l.stats.lastRequest.Store(start.UnixNano())

	key, entry := l.table.Lookup(frame)
	tx := &txn{
		id:    uuid.NewString(),
		frame: frame,
		key:   key,
		entry: entry,
	}
	tx.log = l.gate.L().With(zap.String("txn", tx.id), zap.Stringer("key", key))
	name := "unknown"
	if entry != nil {
		name = entry.Name
		tx.log.Info("command", zap.String("name", name))
	}

	reply, result := l.execute(tx)
	l.metrics.Command(name, result)

	if err := l.enc.Send(reply); err != nil {
		return err
	}
	l.metrics.ObserveTransaction(time.Since(start))
	return nil
}

// Stats 返回运行统计快照
func (l *Loop) Stats() Stats {
	s := Stats{
		Requests:            l.stats.requests.Load(),
		ConsecutiveTimeouts: l.stats.timeouts.Load(),
		LensAttached:        l.link != nil,
	}
	if ns := l.stats.lastRequest.Load(); ns > 0 {
		s.LastRequest = time.Unix(0, ns)
	}
	return s
}
