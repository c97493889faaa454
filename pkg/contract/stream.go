package contract

import (
	"context"
	"io"
)

// Reader: 输入源抽象（文件系统等）。
// 约束：
// 1) 仅提供字节流，不做业务解析；
// 2) 压缩输入（如 .xz/.gz）由实现透明解压；
// 3) 不在内部起并发。
type Reader interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// SourceScanner: 标注源句的拉取式迭代器；结束时返回 io.EOF。
type SourceScanner interface {
	Next() (SourceSentence, error)
}

// Splitter: 将 "<word> <tag>" 块格式拆为 SourceSentence 序列。
// 约束：
// 1) 空行为句界；每个空行闭合一句（可能为空句）；
// 2) Count 与 Scan 的句数口径一致；
// 3) 无内部并发、幂等。
type Splitter interface {
	Scan(r io.Reader) SourceScanner
	Count(ctx context.Context, r io.Reader) (int64, error)
}

// TokenScanner: 目标句（已分词）的拉取式迭代器；结束时返回 io.EOF。
type TokenScanner interface {
	Next() ([]string, error)
}

// TargetSplitter: 每行一句、空白分词的目标文本。
type TargetSplitter interface {
	Scan(r io.Reader) TokenScanner
	Count(ctx context.Context, r io.Reader) (int64, error)
}

// AlignmentScanner: 对齐记录的拉取式迭代器；结束时返回 io.EOF。
type AlignmentScanner interface {
	Next() (Alignment, error)
}

// Decoder: 将每行 "i-j" 记录解码为 Alignment。
type Decoder interface {
	Scan(r io.Reader) AlignmentScanner
	Count(ctx context.Context, r io.Reader) (int64, error)
}

// Batcher: 将一个批次切为 n 个连续分片（分片间不重叠、不重排、不丢失）。
type Batcher interface {
	Make(ctx context.Context, items []Item, n int) ([]Shard, error)
}

// Projector: 单句 span 投影；纯计算，无 I/O，可并发调用。
type Projector interface {
	Project(src SourceSentence, target []string, a Alignment) ([]string, error)
}

// Assembler: 将按序投影结果渲染为输出文本。
// 约束：
//  1. Index 严格升序；
//  2. Words 与 Tags 等长；
//  3. 违规返回 ErrSeqInvalid。
type Assembler interface {
	Assemble(ctx context.Context, out []Projection) (io.Reader, error)
}
