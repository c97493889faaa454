package diag

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// LogPrefix 为日志文件名前缀。
const LogPrefix = "spanproj"

// DefaultKeep 为保留的历史日志文件数。
const DefaultKeep = 20

// RotatingFile 追加写 dir/spanproj-current.txt；超过 maxBytes 时改名为
// spanproj-<UTC 时间戳>.txt，并只保留最近 keep 个历史文件。
type RotatingFile struct {
	mu   sync.Mutex
	dir  string
	max  int64
	keep int
	f    *os.File
	size int64
}

func NewRotatingFile(dir string, maxBytes int64) *RotatingFile {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &RotatingFile{dir: dir, max: maxBytes, keep: DefaultKeep}
}

// WithKeep 设置历史文件保留数；<=0 表示不清理。
func (w *RotatingFile) WithKeep(n int) *RotatingFile {
	w.keep = n
	return w
}

func (w *RotatingFile) current() string {
	return filepath.Join(w.dir, LogPrefix+"-current.txt")
}

func (w *RotatingFile) WriteLine(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.open(); err != nil {
		return err
	}
	n := int64(len(b)) + 1
	// 空文件不轮转，单行超限也照写
	if w.size > 0 && w.size+n > w.max {
		if err := w.rotate(); err != nil {
			return err
		}
	}
	buf := make([]byte, 0, n)
	buf = append(append(buf, b...), '\n')
	m, err := w.f.Write(buf)
	w.size += int64(m)
	return err
}

func (w *RotatingFile) open() error {
	if w.f != nil {
		return nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.current(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w.f, w.size = f, 0
	if st, err := f.Stat(); err == nil {
		w.size = st.Size()
	}
	return nil
}

func (w *RotatingFile) rotate() error {
	_ = w.f.Close()
	w.f = nil
	ts := time.Now().UTC().Format("20060102-150405.000000000")
	dst := filepath.Join(w.dir, fmt.Sprintf("%s-%s.txt", LogPrefix, ts))
	if err := os.Rename(w.current(), dst); err != nil {
		return fmt.Errorf("rotate log: %w", err)
	}
	w.prune()
	return w.open()
}

// prune 删除超出保留数的最旧历史文件；时间戳命名保证字典序即时间序。
func (w *RotatingFile) prune() {
	if w.keep <= 0 {
		return
	}
	old, err := doublestar.FilepathGlob(filepath.Join(w.dir, LogPrefix+"-2*.txt"), doublestar.WithFilesOnly())
	if err != nil || len(old) <= w.keep {
		return
	}
	sort.Strings(old)
	for _, p := range old[:len(old)-w.keep] {
		_ = os.Remove(p)
	}
}

func (w *RotatingFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}
