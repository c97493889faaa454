package diag

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

var levelNames = [...]string{Debug: "debug", Info: "info", Warn: "warn", Error: "error"}

func (l Level) String() string {
	if l < Debug || l > Error {
		return "info"
	}
	return levelNames[l]
}

// ParseLevel 解析级别名；未知值回退 info。
func ParseLevel(s string) Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		return Warn
	}
	for lv, name := range levelNames {
		if name == s {
			return Level(lv)
		}
	}
	return Info
}

// LineSink 接收一行已编码事件（不含换行）。
type LineSink interface {
	WriteLine(b []byte) error
}

// Logger 每个事件输出一行 JSON。nil *Logger 可安全调用，全部丢弃。
type Logger struct {
	corrID string
	level  Level
	mu     sync.Mutex
	sink   LineSink
}

// DefaultMaxBytes 为日志文件轮转阈值。
const DefaultMaxBytes = 10 * 1024 * 1024

// NewLogger 写入 dir 下的轮转文件；dir 为空时使用 "logs"。
func NewLogger(corrID, level, dir string) *Logger {
	if strings.TrimSpace(dir) == "" {
		dir = "logs"
	}
	return NewLoggerTo(corrID, level, NewRotatingFile(dir, DefaultMaxBytes))
}

// NewLoggerTo 使用给定 sink；sink 为 nil 时写 stderr。
func NewLoggerTo(corrID, level string, sink LineSink) *Logger {
	return &Logger{corrID: corrID, level: ParseLevel(level), sink: sink}
}

func (l *Logger) CorrID() string {
	if l == nil {
		return ""
	}
	return l.corrID
}

// Event 为落盘的事件结构。Job 为输出工件标识，Batch 为作业内批序号。
type Event struct {
	Level  string            `json:"level"`
	TS     string            `json:"ts"`
	CorrID string            `json:"corr_id"`
	Comp   string            `json:"comp"`
	Stage  string            `json:"stage"` // start|finish|debug|warn|error
	Code   string            `json:"code,omitempty"`
	DurMS  int64             `json:"dur_ms,omitempty"`
	Count  int64             `json:"count,omitempty"`
	Job    string            `json:"job,omitempty"`
	Batch  string            `json:"batch,omitempty"`
	Msg    string            `json:"msg"`
	Err    string            `json:"err,omitempty"`
	KV     map[string]string `json:"kv,omitempty"`
}

func (l *Logger) emit(lv Level, ev Event) {
	if l == nil || lv < l.level {
		return
	}
	ev.Level = lv.String()
	ev.TS = NowUTC()
	ev.CorrID = l.corrID
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sink != nil {
		err := l.sink.WriteLine(b)
		if err == nil {
			return
		}
		fmt.Fprintf(os.Stderr, "logger sink error: %v\n", err)
	}
	_, _ = os.Stderr.Write(append(b, '\n'))
}

// Close 关闭底层 sink（若支持）。
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.sink.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Scope 绑定作业与批次，事件自动携带 job/batch 字段。
type Scope struct {
	l     *Logger
	job   string
	batch string
}

// Job 返回作业作用域。
func (l *Logger) Job(job string) Scope { return Scope{l: l, job: job} }

// Batch 返回同一作业下指定批次的作用域。
func (s Scope) Batch(i int64) Scope {
	s.batch = strconv.FormatInt(i, 10)
	return s
}

// 运行级别（无作业）的快捷方法。
func (l *Logger) Start(comp, msg string) *Timer { return Scope{l: l}.Start(comp, msg) }
func (l *Logger) Debug(comp, msg string, kv map[string]string) {
	Scope{l: l}.Debug(comp, msg, kv)
}
func (l *Logger) Warn(comp, msg string, kv map[string]string) { Scope{l: l}.Warn(comp, msg, kv) }
func (l *Logger) Fail(comp, msg string, err error, since *time.Time) Code {
	return Scope{l: l}.Fail(comp, msg, err, since)
}

// Start 记录 start 事件并返回计时器。
func (s Scope) Start(comp, msg string) *Timer {
	s.l.emit(Info, Event{Comp: comp, Stage: "start", Job: s.job, Batch: s.batch, Msg: msg})
	return &Timer{s: s, comp: comp, t0: time.Now()}
}

func (s Scope) Debug(comp, msg string, kv map[string]string) {
	s.l.emit(Debug, Event{Comp: comp, Stage: "debug", Job: s.job, Batch: s.batch, Msg: msg, KV: kv})
}

// Warn 记录可恢复的异常（空句等）。
func (s Scope) Warn(comp, msg string, kv map[string]string) {
	s.l.emit(Warn, Event{Comp: comp, Stage: "warn", Job: s.job, Batch: s.batch, Msg: msg, KV: kv})
}

// Fail 记录 error 事件并累加错误指标，返回分类代码。
func (s Scope) Fail(comp, msg string, err error, since *time.Time) Code {
	code := Classify(err)
	ev := Event{Comp: comp, Stage: "error", Code: string(code), Job: s.job, Batch: s.batch, Msg: msg}
	if err != nil {
		ev.Err = err.Error()
	}
	if since != nil {
		ev.DurMS = time.Since(*since).Milliseconds()
	}
	s.l.emit(Error, ev)
	IncOp(comp, "error", "error")
	if code != CodeUnknown {
		IncError(comp, string(code))
	}
	return code
}

// Timer 用于 start→finish 计时。
type Timer struct {
	s    Scope
	comp string
	t0   time.Time
}

// Finish 记录 finish 事件，count 为本阶段处理量（句数或字节数）。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil {
		return
	}
	dur := time.Since(t.t0).Milliseconds()
	ObserveDuration(t.comp, "finish", dur)
	IncOp(t.comp, "finish", "success")
	t.s.l.emit(Info, Event{Comp: t.comp, Stage: "finish", DurMS: dur, Count: count, Job: t.s.job, Batch: t.s.batch, Msg: msg})
}

// Since 返回计时起点，供 Fail 使用。
func (t *Timer) Since() *time.Time {
	if t == nil {
		return nil
	}
	return &t.t0
}
