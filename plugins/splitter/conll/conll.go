package conll

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"spanproj/pkg/contract"
	"spanproj/pkg/lineio"
)

// Options 为 conll Splitter 的可选配置（最小必要）。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。<=0 使用默认 64KiB。
	BufSize int `json:"buf_size"`
}

// Splitter 解析 "<word> <tag>" 块格式；空行为句界。
// 标签词表：O，或 <prefix>-<type>，prefix ∈ {B, I, U, L}；
// 兼容 BIOES：S 视为 U，E 视为 L。
type Splitter struct {
	bufSize int
}

// New 创建 conll Splitter。
func New(opts *Options) *Splitter {
	b := 0
	if opts != nil && opts.BufSize > 0 {
		b = opts.BufSize
	}
	return &Splitter{bufSize: b}
}

var _ contract.Splitter = (*Splitter)(nil)

// Scan 返回逐句迭代器。每个空行闭合一句（可能为空句）；末尾无空行的非空块再闭合一句。
func (s *Splitter) Scan(r io.Reader) contract.SourceScanner {
	return &scanner{br: lineio.NewReader(r, s.bufSize)}
}

// Count 按与 Scan 相同的口径统计句数。
func (s *Splitter) Count(ctx context.Context, r io.Reader) (int64, error) {
	br := lineio.NewReader(r, s.bufSize)
	var n int64
	open := false
	for {
		if err := lineio.CtxErr(ctx); err != nil {
			return 0, err
		}
		line, eof, err := lineio.ReadLine(br)
		if err != nil {
			return 0, err
		}
		if eof {
			break
		}
		if strings.TrimSpace(line) == "" {
			n++
			open = false
			continue
		}
		open = true
	}
	if open {
		n++
	}
	return n, nil
}

type scanner struct {
	br   *bufio.Reader
	line int64
	done bool
}

func (sc *scanner) Next() (contract.SourceSentence, error) {
	if sc.done {
		return contract.SourceSentence{}, io.EOF
	}
	var b builder
	for {
		line, eof, err := lineio.ReadLine(sc.br)
		if err != nil {
			return contract.SourceSentence{}, err
		}
		if eof {
			sc.done = true
			if len(b.words) == 0 {
				return contract.SourceSentence{}, io.EOF
			}
			return b.sentence(), nil
		}
		sc.line++
		if strings.TrimSpace(line) == "" {
			return b.sentence(), nil
		}
		if err := b.add(line); err != nil {
			return contract.SourceSentence{}, fmt.Errorf("line %d %q: %w", sc.line, line, err)
		}
	}
}

// builder 按位置累积单句的词与 span。
type builder struct {
	words []string
	spans []contract.Span
}

func (b *builder) sentence() contract.SourceSentence {
	return contract.SourceSentence{Words: b.words, Spans: b.spans}
}

func (b *builder) add(line string) error {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return fmt.Errorf("%w: want \"<word> <tag>\", got %d fields", contract.ErrMalformed, len(fields))
	}
	word, tag := fields[0], fields[1]
	pos := len(b.words)
	b.words = append(b.words, word)
	if tag == contract.TagOutside {
		return nil
	}
	prefix, typ, err := SplitTag(tag)
	if err != nil {
		return err
	}
	switch prefix {
	case "B", "U", "S":
		b.open(typ, pos)
	case "I", "L", "E":
		if n := len(b.spans); n > 0 {
			last := &b.spans[n-1]
			if last.Last() == pos-1 && last.Type == typ {
				last.Indices = append(last.Indices, pos)
				return nil
			}
		}
		// 容忍以 I 开头等不良输入：另起新 span
		b.open(typ, pos)
	default:
		return fmt.Errorf("%w: unknown tag prefix %q in %q", contract.ErrMalformed, prefix, tag)
	}
	return nil
}

func (b *builder) open(typ string, pos int) {
	b.spans = append(b.spans, contract.Span{Type: typ, Indices: []int{pos}})
}

// SplitTag 将 "<prefix>-<type>" 拆为前缀与类型；类型中可含 '-'。
func SplitTag(tag string) (prefix, typ string, err error) {
	parts := strings.SplitN(tag, "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: tag %q lacks \"-<type>\" suffix", contract.ErrMalformed, tag)
	}
	return parts[0], parts[1], nil
}
