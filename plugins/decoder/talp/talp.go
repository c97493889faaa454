package talp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"spanproj/pkg/contract"
	"spanproj/pkg/lineio"
)

// Options 为 talp 解码器的可选配置（最小必要）。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。<=0 使用默认 64KiB。
	BufSize int `json:"buf_size"`
}

// Decoder 解码 talp 对齐格式：每行一句，空白分隔的 "i-j"（0 起，源-目标）。
// 与产生对齐的后端（fast_align/mgiza/simalign/awesome 等）无关。
type Decoder struct {
	bufSize int
}

// New 创建 talp 解码器。
func New(opts *Options) *Decoder {
	b := 0
	if opts != nil && opts.BufSize > 0 {
		b = opts.BufSize
	}
	return &Decoder{bufSize: b}
}

var _ contract.Decoder = (*Decoder)(nil)

// ParseLine 将一行对齐记录解析为 Alignment。
// 同一源下标的目标按出现顺序追加，重复保留。
func ParseLine(line string) (contract.Alignment, error) {
	fields := strings.Fields(line)
	a := make(contract.Alignment, len(fields))
	for _, tok := range fields {
		i, j, err := parsePair(tok)
		if err != nil {
			return nil, fmt.Errorf("%w: unable to split pair %q from alignment line %q", contract.ErrMalformed, tok, line)
		}
		a.Add(i, j)
	}
	return a, nil
}

func parsePair(tok string) (int, int, error) {
	parts := strings.Split(tok, "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want 2 parts, got %d", len(parts))
	}
	i, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	j, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}
	if i < 0 || j < 0 {
		return 0, 0, fmt.Errorf("negative index")
	}
	return i, j, nil
}

// Scan 返回逐行对齐迭代器；空行得到空 Alignment。
func (d *Decoder) Scan(r io.Reader) contract.AlignmentScanner {
	return &scanner{br: lineio.NewReader(r, d.bufSize)}
}

// Count 返回行数，即对齐记录数。
func (d *Decoder) Count(ctx context.Context, r io.Reader) (int64, error) {
	return lineio.CountLines(ctx, r)
}

type scanner struct {
	br   *bufio.Reader
	line int64
}

func (s *scanner) Next() (contract.Alignment, error) {
	line, eof, err := lineio.ReadLine(s.br)
	if err != nil {
		return nil, err
	}
	if eof {
		return nil, io.EOF
	}
	s.line++
	a, err := ParseLine(line)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", s.line, err)
	}
	return a, nil
}
