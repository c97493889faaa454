package plaintext

import (
	"bufio"
	"context"
	"io"
	"strings"

	"spanproj/pkg/contract"
	"spanproj/pkg/lineio"
)

// Options 为目标文本切分器的可选配置。
type Options struct {
	BufSize int `json:"buf_size"`
}

// Splitter: 每行一句，按空白分词。
type Splitter struct {
	bufSize int
}

func New(opts *Options) *Splitter {
	b := 0
	if opts != nil && opts.BufSize > 0 {
		b = opts.BufSize
	}
	return &Splitter{bufSize: b}
}

var _ contract.TargetSplitter = (*Splitter)(nil)

func (s *Splitter) Scan(r io.Reader) contract.TokenScanner {
	return &scanner{br: lineio.NewReader(r, s.bufSize)}
}

// Count 返回行数。
func (s *Splitter) Count(ctx context.Context, r io.Reader) (int64, error) {
	return lineio.CountLines(ctx, r)
}

type scanner struct {
	br *bufio.Reader
}

func (sc *scanner) Next() ([]string, error) {
	line, eof, err := lineio.ReadLine(sc.br)
	if err != nil {
		return nil, err
	}
	if eof {
		return nil, io.EOF
	}
	return strings.Fields(line), nil
}
