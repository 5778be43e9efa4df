package errlog

import (
	"fmt"
	"time"
)

// 集中式错误日志
// 所有核心操作的失败（校验错误、对象不存在、状态冲突）都会追加到这里，
// 并带上触发失败的完整命令文本，供 show error-log 查询
// 数据包的正常丢弃（TTL耗尽、无路由等）属于转发结果，不会进入错误日志

// 错误类别，与核心操作的失败分类一一对应
const (
	// KindValidation 输入不合法：地址、掩码或TTL格式错误
	KindValidation = "ValidationError"

	// KindNotFound 对象不存在：设备、接口、路由、策略或快照键
	KindNotFound = "NotFoundError"

	// KindStateConflict 状态冲突：例如连接已被占用的接口
	KindStateConflict = "StateConflict"

	// KindQueueEmpty 队列为空时执行tick
	KindQueueEmpty = "QueueEmpty"

	// KindCommand 无法识别或不完整的命令
	KindCommand = "CommandError"
)

// Entry 一条错误记录
type Entry struct {
	// Seq 单调递增的序号，从1开始
	Seq uint64

	// Time 记录时间
	Time time.Time

	// Kind 错误类别，例如 ValidationError、NotFoundError
	Kind string

	// Message 错误描述
	Message string

	// Command 触发错误的命令原文，可能为空
	Command string
}

// String 返回错误记录的单行文本表示
func (e Entry) String() string {
	s := fmt.Sprintf("[%d] [%s] %s: %s",
		e.Seq, e.Time.Format("2006-01-02 15:04:05"), e.Kind, e.Message)
	if e.Command != "" {
		s += " | 命令: " + e.Command
	}
	return s
}

// Log 追加式错误日志
// 由主流程创建一次，按引用传给需要记录错误的组件，不做全局单例
type Log struct {
	entries []Entry
	nextSeq uint64
}

// New 创建空的错误日志
func New() *Log {
	return &Log{nextSeq: 1}
}

// Append 追加一条错误记录并返回其序号
func (l *Log) Append(kind, message, command string) uint64 {
	seq := l.nextSeq
	l.nextSeq++
	l.entries = append(l.entries, Entry{
		Seq:     seq,
		Time:    time.Now(),
		Kind:    kind,
		Message: message,
		Command: command,
	})
	return seq
}

// Last 返回最近n条记录，按从旧到新排列
// n <= 0 时返回全部记录
func (l *Log) Last(n int) []Entry {
	start := 0
	if n > 0 && n < len(l.entries) {
		start = len(l.entries) - n
	}

	out := make([]Entry, len(l.entries)-start)
	copy(out, l.entries[start:])
	return out
}

// Len 返回记录总数
func (l *Log) Len() int {
	return len(l.entries)
}
