package filesystem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"spanproj/pkg/contract"
)

// Options: 最小必要选项。
type Options struct {
	// OutputDir: 输出根目录（必需）。
	OutputDir string `json:"output_dir"`
	// Atomic: 是否先写同目录临时文件再替换。
	// 默认 false：边投影边落盘，运行中途失败时已写出的批次保留在目标文件中。
	Atomic *bool `json:"atomic,omitempty"`
	// Flat: 仅保留文件名，丢弃 id 中的目录层级。默认 false。
	Flat *bool `json:"flat,omitempty"`
	// PermFile/PermDir: 可选权限；为 0 表示使用默认 0644/0755。
	PermFile os.FileMode `json:"perm_file,omitempty"`
	PermDir  os.FileMode `json:"perm_dir,omitempty"`
	// BufSize: 写缓冲区大小；<=0 使用 64KiB。
	BufSize int `json:"buf_size,omitempty"`
}

// Disk 将装配结果写入 OutputDir 下由 ArtifactID 映射的路径。
type Disk struct {
	root    string
	atomic  bool
	flat    bool
	permF   os.FileMode
	permD   os.FileMode
	bufSize int
}

// New 创建文件系统 Writer。
func New(opts *Options) (*Disk, error) {
	if opts == nil || strings.TrimSpace(opts.OutputDir) == "" {
		return nil, fmt.Errorf("%w: output_dir is required", contract.ErrPathInvalid)
	}
	d := &Disk{root: opts.OutputDir, permF: 0o644, permD: 0o755, bufSize: 64 * 1024}
	if opts.BufSize > 0 {
		d.bufSize = opts.BufSize
	}
	if opts.PermFile != 0 {
		d.permF = opts.PermFile
	}
	if opts.PermDir != 0 {
		d.permD = opts.PermDir
	}
	if opts.Flat != nil {
		d.flat = *opts.Flat
	}
	if opts.Atomic != nil {
		d.atomic = *opts.Atomic
	}
	return d, nil
}

var _ contract.Writer = (*Disk)(nil)

// Resolve 返回 id 对应的落盘路径（不访问文件系统）。
func (d *Disk) Resolve(id contract.ArtifactID) (string, error) {
	return d.mapPath(id)
}

// Write 将 r 的全部字节写入 id 对应路径；父目录按需创建。
func (d *Disk) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	dest, err := d.mapPath(id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), d.permD); err != nil {
		return err
	}
	if d.atomic {
		return d.writeAtomic(ctx, dest, r)
	}
	return d.writeStream(ctx, dest, r)
}

// mapPath: Clean + Join + 越界校验。
func (d *Disk) mapPath(id contract.ArtifactID) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(string(id)))
	if d.flat {
		rel = filepath.Base(rel)
	}
	switch {
	case rel == "." || rel == ".." || rel == string(filepath.Separator):
		return "", contract.ErrPathInvalid
	case filepath.IsAbs(rel), filepath.VolumeName(rel) != "":
		return "", contract.ErrPathInvalid
	case strings.HasPrefix(rel, ".."+string(filepath.Separator)):
		return "", contract.ErrPathInvalid
	}
	return filepath.Join(d.root, rel), nil
}

func (d *Disk) writeStream(ctx context.Context, dest string, r io.Reader) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, d.permF)
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(f, d.bufSize)
	_, err = io.Copy(bw, readerWithCtx(ctx, r))
	// 出错时仍尽量冲刷已得到的字节
	if ferr := bw.Flush(); err == nil {
		err = ferr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func (d *Disk) writeAtomic(ctx context.Context, dest string, r io.Reader) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	_ = os.Chmod(tmpPath, d.permF)

	bw := bufio.NewWriterSize(tmp, d.bufSize)
	if _, err := io.Copy(bw, readerWithCtx(ctx, r)); err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := replaceFile(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	_ = syncDir(dir)
	return nil
}

// readerWithCtx: 在每次 Read 前检查 ctx 是否已取消。
func readerWithCtx(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
