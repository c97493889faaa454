package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"spanproj/pkg/contract"
	rfs "spanproj/plugins/reader/filesystem"
	sconll "spanproj/plugins/splitter/conll"
	wfs "spanproj/plugins/writer/filesystem"
)

// newExtractCmd: 将标注文件的词列转为每行一句的纯文本（外部对齐/翻译工具的输入）。
func newExtractCmd(stdout io.Writer) *cobra.Command {
	var src, out string
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "抽取源标注文件的词序列（每行一句，空格分隔）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := extract(cmd.Context(), src, out, stdout)
			if err != nil {
				if errors.Is(err, contract.ErrPathInvalid) {
					return configErr("%w", err)
				}
				return runErr(err)
			}
			if out != "-" {
				fmt.Fprintf(stdout, "已写出 %d 句: %s\n", n, out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&src, "source", "", "源语言标注文件（可为 .xz/.gz，- 表示 STDIN）")
	cmd.Flags().StringVar(&out, "output", "-", "输出文件（- 表示 STDOUT）")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func extract(ctx context.Context, src, out string, stdout io.Writer) (int64, error) {
	rc, err := rfs.New(nil).Open(ctx, src)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	sc := sconll.New(nil).Scan(rc)

	pr, pw := io.Pipe()
	var n int64
	go func() {
		bw := bufio.NewWriter(pw)
		for {
			if err := ctx.Err(); err != nil {
				_ = pw.CloseWithError(err)
				return
			}
			s, err := sc.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				_ = pw.CloseWithError(err)
				return
			}
			bw.WriteString(strings.Join(s.Words, " "))
			if err := bw.WriteByte('\n'); err != nil {
				_ = pw.CloseWithError(err)
				return
			}
			n++
		}
		_ = pw.CloseWithError(bw.Flush())
	}()

	if out == "-" {
		if _, err = io.Copy(stdout, pr); err != nil {
			_ = pr.CloseWithError(err)
			return 0, err
		}
		return n, nil
	}
	atomic := true
	w, err := wfs.New(&wfs.Options{OutputDir: filepath.Dir(out), Atomic: &atomic})
	if err != nil {
		_ = pr.CloseWithError(err)
		return 0, err
	}
	if err := w.Write(ctx, contract.ArtifactID(filepath.Base(out)), pr); err != nil {
		_ = pr.CloseWithError(err)
		return 0, err
	}
	return n, nil
}
