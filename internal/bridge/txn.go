package bridge

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/lens-broker/internal/protocol/broker"
	"github.com/taoyao-code/lens-broker/internal/protocol/lens"
)

// 事务结果（指标标签）
const (
	resultOK      = "ok"
	resultBypass  = "bypass"
	resultFail    = "fail"
	resultTimeout = "timeout"
)

// txn 一次 Broker 请求对应的事务
type txn struct {
	id    string
	frame *broker.Frame
	key   Key
	entry *Entry
	log   *zap.Logger
}

// execute 执行条目，返回应答载荷与结果标签
// 同步标志仅在镜头事务期间置位，返回前清除。
func (l *Loop) execute(tx *txn) ([]byte, string) {
	e := tx.entry
	if e == nil {
		tx.log.Warn("unknown command", zap.Binary("body", tx.frame.Body))
		return broker.Fail, resultFail
	}
	if e.Bypass != nil && e.Bypass(l.rc) {
		return e.Canned, resultBypass
	}
	if e.Request == nil || e.Reply == nil {
		tx.log.Error("table entry has no lens transaction", zap.String("name", e.Name))
		return broker.Fail, resultFail
	}
	if l.link == nil {
		tx.log.Error("lens link not available", zap.String("name", e.Name))
		return broker.Fail, resultFail
	}

	req, err := e.Request(tx.frame)
	if err != nil {
		tx.log.Warn("bad request", zap.Error(err))
		return broker.Fail, resultFail
	}

	if e.Sync {
		l.flag.Set()
		defer l.flag.Clear()
	}

	if err := l.link.Send(req); err != nil {
		tx.log.Error("lens send failed", zap.Error(err))
		return broker.Fail, resultFail
	}

	result := resultOK
	var payload []byte
	if e.Await != nil {
		f, err := l.link.Await(e.Await, l.timeout(e.Wait))
		switch {
		case err == nil:
			payload = f.Payload
			l.stats.timeouts.Store(0)
		case errors.Is(err, lens.ErrTimeout):
			// 超时视为无数据，由条目决定应答
			result = resultTimeout
			l.stats.timeouts.Add(1)
			l.metrics.Timeout()
			tx.log.Warn("lens response timeout")
		default:
			result = resultFail
			tx.log.Error("lens receive failed", zap.Error(err))
		}
	}

	reply := e.Reply(payload)
	if reply == nil {
		if result == resultOK {
			result = resultFail
		}
		return broker.Fail, result
	}
	return reply, result
}

func (l *Loop) timeout(w Wait) time.Duration {
	if w == WaitParam {
		return l.paramTimeout
	}
	return l.responseTimeout
}
