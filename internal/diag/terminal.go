package diag

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Terminal: 终端信息提示（非日志）。
// - 输出到提供的 io.Writer（默认 stderr）。
// - TTY: 单行 \r 覆盖；非 TTY: 每个事件一行（含节流后的批次进度）。
// - 并发安全；写失败后进入禁用态为 no-op。
// 数字按英文千分位格式化（12,345）。
type Terminal struct {
	w       io.Writer
	p       *message.Printer
	enabled bool
	isTTY   bool

	concurrency int
	batchSize   int
	jobsDone    int
	runStart    time.Time

	curJob       string
	sentences    int64
	batchesTotal int
	batchesDone  int

	lastLen   int
	lastFlush time.Time

	mu sync.Mutex
}

// NewTerminal 构造终端提示器；enabled=false 时总是 no-op。
func NewTerminal(w io.Writer, enabled bool) *Terminal {
	if w == nil {
		w = os.Stderr
	}
	t := &Terminal{w: w, enabled: enabled, p: message.NewPrinter(language.English)}
	// CI 环境视为非 TTY
	if os.Getenv("CI") == "" {
		if f, ok := w.(*os.File); ok {
			if fi, err := f.Stat(); err == nil {
				t.isTTY = fi.Mode()&os.ModeCharDevice != 0
			}
		}
	}
	return t
}

// RunStart: 记录运行参数。
func (t *Terminal) RunStart(concurrency, batchSize int) {
	t.with(func() {
		t.concurrency = concurrency
		t.batchSize = batchSize
		t.jobsDone = 0
		t.runStart = time.Now()
		t.println(t.p.Sprintf("[run] 并发=%d | 批大小=%d", concurrency, batchSize))
	})
}

// JobStart: 标记当前作业与计划批次。
func (t *Terminal) JobStart(name string, sentences int64, batchesTotal int) {
	t.with(func() {
		t.curJob = shortenBase(name, 48)
		t.sentences = sentences
		t.batchesTotal = batchesTotal
		t.batchesDone = 0
		t.lastFlush = time.Time{}
		if !t.isTTY {
			t.println(t.p.Sprintf("[job] %s | 句子=%d | 计划批次=%d", t.curJob, sentences, batchesTotal))
		}
	})
}

// BatchProgress: 已完成批次数（单调递增）。
// TTY 下单行覆盖、≥100ms 节流；非 TTY 下分行打印、≥2s 节流。首批与最后一批总是输出。
func (t *Terminal) BatchProgress(done int) {
	t.with(func() {
		if done > t.batchesDone {
			t.batchesDone = done
		}
		now := time.Now()
		if done < t.batchesTotal && now.Sub(t.lastFlush) < t.progressEvery() {
			return
		}
		t.lastFlush = now
		if !t.isTTY {
			t.println(t.p.Sprintf("[batch] %s | %d/%d", t.curJob, t.batchesDone, t.batchesTotal))
			return
		}
		t.printInline(t.p.Sprintf("[job] %s | 进度 %d/%d | 并发 %d | 用时 %s",
			t.curJob, t.batchesDone, t.batchesTotal, t.concurrency, formatSince(t.runStart)))
	})
}

// JobFinish: 完成当前作业（换行输出）。
func (t *Terminal) JobFinish(ok bool, dur time.Duration) {
	t.with(func() {
		t.jobsDone++
		status := "done"
		if !ok {
			status = "fail"
		}
		if t.isTTY && t.lastLen > 0 {
			t.printInline("")
		}
		t.println(t.p.Sprintf("[%s] %s | 句子 %d | 批次 %d/%d | 用时 %s",
			status, t.curJob, t.sentences, t.batchesDone, t.batchesTotal, formatDur(dur)))
	})
}

// RunFinish: 结束总览。
func (t *Terminal) RunFinish(ok bool, dur time.Duration) {
	t.with(func() {
		tag := "ok"
		if !ok {
			tag = "fail"
		}
		t.println(t.p.Sprintf("[%s] 全部完成 | 作业 %d | 总用时 %s", tag, t.jobsDone, formatDur(dur)))
	})
}

func (t *Terminal) progressEvery() time.Duration {
	if t.isTTY {
		return 100 * time.Millisecond
	}
	return 2 * time.Second
}

func (t *Terminal) with(fn func()) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	fn()
}

func (t *Terminal) println(s string) {
	if !t.enabled {
		return
	}
	if _, err := io.WriteString(t.w, s+"\n"); err != nil {
		t.enabled = false
	}
	t.lastLen = 0
}

// printInline: \r + 内容，新行较短时以空格覆盖旧尾。
func (t *Terminal) printInline(s string) {
	if !t.enabled {
		return
	}
	l := visLen(s)
	var b strings.Builder
	b.WriteByte('\r')
	b.WriteString(s)
	if t.lastLen > l {
		b.WriteString(strings.Repeat(" ", t.lastLen-l))
	}
	if _, err := io.WriteString(t.w, b.String()); err != nil {
		t.enabled = false
		return
	}
	t.lastLen = l
}

// shortenBase: 取基名并按 rune 数截断（尾部省略号）。
func shortenBase(s string, max int) string {
	base := filepath.Base(strings.TrimSpace(s))
	if max <= 0 || base == "." {
		return ""
	}
	rs := []rune(base)
	if len(rs) <= max {
		return base
	}
	return string(rs[:max-1]) + "…"
}

func visLen(s string) int { return len([]rune(s)) }

func formatSince(t0 time.Time) string { return formatDur(time.Since(t0)) }

func formatDur(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", max(d.Milliseconds(), 0))
	}
	return fmt.Sprintf("%.1fs", float64(d.Milliseconds())/1000.0)
}
