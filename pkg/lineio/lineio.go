// Package lineio 提供按行读取与计数的最小工具，口径与逐行迭代一致：
// 每个 '\n' 结束一行；末尾无换行的非空残段计为一行。
package lineio

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
)

// DefaultBufSize 为读缓冲区默认大小。
const DefaultBufSize = 64 * 1024

// ReadLine 读取一行，归一 CRLF→LF 并去除结尾换行；
// 仅当已无任何内容时返回 eof=true。
func ReadLine(br *bufio.Reader) (line string, eof bool, err error) {
	s, err := br.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", false, err
		}
		if s == "" {
			return "", true, nil
		}
	}
	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")
	return s, false, nil
}

// CountLines 统计 r 中的行数（与 ReadLine 的迭代次数一致）。
func CountLines(ctx context.Context, r io.Reader) (int64, error) {
	buf := make([]byte, DefaultBufSize)
	var n int64
	var last byte
	seen := false
	for {
		if err := CtxErr(ctx); err != nil {
			return 0, err
		}
		k, err := r.Read(buf)
		if k > 0 {
			n += int64(bytes.Count(buf[:k], []byte{'\n'}))
			last = buf[k-1]
			seen = true
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	if seen && last != '\n' {
		n++
	}
	return n, nil
}

// NewReader 以 size 构造缓冲读取器；size<=0 使用默认值。
func NewReader(r io.Reader, size int) *bufio.Reader {
	if size <= 0 {
		size = DefaultBufSize
	}
	return bufio.NewReaderSize(r, size)
}

// CtxErr 非阻塞检查 ctx 是否已结束。
func CtxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
