package filesystem

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"

	"spanproj/pkg/contract"
)

// Options 为 FileSystem Reader 的可选配置（最小必要）。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。默认 64KiB。
	BufSize int `json:"buf_size"`
	// Decompress: 按扩展名透明解压 .xz/.gz，默认 true。
	Decompress *bool `json:"decompress"`
}

// FileSystem 实现基于文件系统与 STDIN 的 Reader。
type FileSystem struct {
	bufSize    int
	decompress bool
}

// New 创建 FileSystem Reader。
func New(opts *Options) *FileSystem {
	const defaultBuf = 64 * 1024
	b := defaultBuf
	if opts != nil && opts.BufSize > 0 {
		b = opts.BufSize
	}
	d := true
	if opts != nil && opts.Decompress != nil {
		d = *opts.Decompress
	}
	return &FileSystem{bufSize: b, decompress: d}
}

var _ contract.Reader = (*FileSystem)(nil)

// Open 打开单个输入；"-" 表示 STDIN。
// 仅接受常规文件（允许指向常规文件的符号链接），目录与设备等返回 ErrPathInvalid。
func (r *FileSystem) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if path == "-" {
		// STDIN 不由本 Reader 关闭
		return newBufferedCloser(io.NopCloser(os.Stdin), r.bufSize), nil
	}
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty path", contract.ErrPathInvalid)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", contract.ErrPathInvalid, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !r.decompress {
		return newBufferedCloser(f, r.bufSize), nil
	}
	rc, err := wrapCompressed(path, bufio.NewReaderSize(f, r.bufSize), f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return rc, nil
}

// wrapCompressed 按扩展名选择解压器；未知扩展名原样返回。
func wrapCompressed(path string, br *bufio.Reader, c io.Closer) (io.ReadCloser, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".xz"):
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, err
		}
		return &bufferedCloser{Reader: bufio.NewReader(xr), c: c}, nil
	case strings.HasSuffix(lower, ".gz"):
		gr, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		return &bufferedCloser{Reader: bufio.NewReader(gr), c: multiCloser{gr, c}}, nil
	default:
		return &bufferedCloser{Reader: br, c: c}, nil
	}
}

// bufferedCloser 将 bufio.Reader 与底层 Closer 组合为 ReadCloser。
type bufferedCloser struct {
	*bufio.Reader
	c io.Closer
}

func newBufferedCloser(c io.ReadCloser, bufSize int) *bufferedCloser {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	return &bufferedCloser{Reader: bufio.NewReaderSize(c, bufSize), c: c}
}

func (b *bufferedCloser) Close() error { return b.c.Close() }

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for _, c := range m {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
