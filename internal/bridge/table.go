package bridge

import (
	"fmt"

	"github.com/taoyao-code/lens-broker/internal/protocol/broker"
	"github.com/taoyao-code/lens-broker/internal/protocol/lens"
)

// Mode 同一子命令下的读/写变体
type Mode uint8

const (
	ModeNone Mode = iota
	ModeGet
	ModeSet
)

func (m Mode) String() string {
	switch m {
	case ModeGet:
		return "get"
	case ModeSet:
		return "set"
	default:
		return ""
	}
}

// Key 分发键
type Key struct {
	Cmd  byte
	Sub  byte
	Mode Mode
}

func (k Key) String() string {
	s := printable(k.Cmd)
	if k.Sub != 0 {
		s += printable(k.Sub)
	}
	if k.Mode != ModeNone {
		s += "/" + k.Mode.String()
	}
	return s
}

func printable(b byte) string {
	if b > 0x20 && b < 0x7F {
		return string(rune(b))
	}
	return fmt.Sprintf("<%02x>", b)
}

// Wait 等待镜头应答的时限类别
type Wait uint8

const (
	// WaitResponse 使用 lens.responseTimeout
	WaitResponse Wait = iota
	// WaitParam 使用 lens.paramTimeout（AF/MF 参数、自定义模式）
	WaitParam
)

// Entry 一条命令的静态定义
type Entry struct {
	Sub  byte
	Mode Mode
	Name string

	// Bypass 为 true 时直接回复 Canned
	Bypass Gate
	Canned []byte

	// Sync 事务期间需要 VD 同步脉冲
	Sync bool
	// Request 构造镜头请求；返回错误时回复失败哨兵
	Request func(f *broker.Frame) (lens.Request, error)
	// Await 期望的应答载荷前缀；nil 表示发送后不等待
	Await []byte
	Wait  Wait
	// Reply 由应答载荷（未等待或超时时为 nil）格式化 Broker 应答；返回 nil 表示失败哨兵
	Reply func(payload []byte) []byte
}

// Family 一个顶层命令及其分发方式
type Family struct {
	Cmd byte
	// Sub 内容首字节作为子命令
	Sub bool
	// GetSet 子命令后有参数为 set，否则为 get
	GetSet bool
	Entries []Entry
}

// Table 命令翻译表，构造后只读
type Table struct {
	families map[byte]Family
	entries  map[Key]*Entry
}

// NewTable 构造翻译表；重复键视为编程错误
func NewTable(families ...Family) *Table {
	t := &Table{
		families: make(map[byte]Family, len(families)),
		entries:  make(map[Key]*Entry),
	}
	for _, fam := range families {
		t.families[fam.Cmd] = fam
		for i := range fam.Entries {
			e := &fam.Entries[i]
			k := Key{Cmd: fam.Cmd, Sub: e.Sub, Mode: e.Mode}
			if _, dup := t.entries[k]; dup {
				panic(fmt.Sprintf("bridge: duplicate table entry %s", k))
			}
			t.entries[k] = e
		}
	}
	return t
}

// KeyOf 计算帧的分发键
func (t *Table) KeyOf(f *broker.Frame) Key {
	k := Key{Cmd: f.Command}
	fam, ok := t.families[f.Command]
	if !ok {
		return k
	}
	if fam.Sub {
		if sub, ok := f.Sub(); ok {
			k.Sub = sub
		}
	}
	if fam.GetSet {
		if len(f.Args()) > 0 {
			k.Mode = ModeSet
		} else {
			k.Mode = ModeGet
		}
	}
	return k
}

// Lookup 查找条目；未知命令或子命令返回 nil
func (t *Table) Lookup(f *broker.Frame) (Key, *Entry) {
	k := t.KeyOf(f)
	return k, t.entries[k]
}

// Len 条目总数
func (t *Table) Len() int { return len(t.entries) }
