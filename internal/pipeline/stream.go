package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"spanproj/pkg/contract"
)

// triple: 三路同步输入（标注源句、目标句、对齐）。
type triple struct {
	closers []io.Closer
	src     contract.SourceScanner
	tgt     contract.TokenScanner
	aln     contract.AlignmentScanner
	next    int64
}

func openTriple(ctx context.Context, comp Components, job Job) (*triple, error) {
	t := &triple{}
	open := func(path string) (io.Reader, error) {
		rc, err := comp.Reader.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		t.closers = append(t.closers, rc)
		return rc, nil
	}
	r, err := open(job.Source)
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("open source: %w", err)
	}
	t.src = comp.Source.Scan(r)
	if r, err = open(job.Target); err != nil {
		t.Close()
		return nil, fmt.Errorf("open target: %w", err)
	}
	t.tgt = comp.Target.Scan(r)
	if r, err = open(job.Alignment); err != nil {
		t.Close()
		return nil, fmt.Errorf("open alignment: %w", err)
	}
	t.aln = comp.Align.Scan(r)
	return t, nil
}

func (t *triple) Close() {
	for _, c := range t.closers {
		_ = c.Close()
	}
	t.closers = nil
}

// read 同步读取至多 n 个句对；三路须同时结束。
func (t *triple) read(ctx context.Context, n int) ([]contract.Item, error) {
	items := make([]contract.Item, 0, n)
	for len(items) < n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, serr := t.src.Next()
		tgt, terr := t.tgt.Next()
		aln, aerr := t.aln.Next()
		eof := [3]bool{errors.Is(serr, io.EOF), errors.Is(terr, io.EOF), errors.Is(aerr, io.EOF)}
		for i, err := range []error{serr, terr, aerr} {
			if err != nil && !eof[i] {
				return nil, fmt.Errorf("%s stream: %w", streamNames[i], err)
			}
		}
		if eof[0] && eof[1] && eof[2] {
			break
		}
		if eof[0] || eof[1] || eof[2] {
			return nil, fmt.Errorf("%w: streams end at different sentence (%d)", contract.ErrPrecondition, t.next)
		}
		items = append(items, contract.Item{Index: t.next, Source: src, Target: tgt, Align: aln})
		t.next++
	}
	return items, nil
}

var streamNames = [3]string{"source", "target", "alignment"}

// countAll 统计三路句数；不一致返回 ErrPrecondition。
func countAll(ctx context.Context, comp Components, job Job) (int64, error) {
	counters := [3]func(context.Context, io.Reader) (int64, error){comp.Source.Count, comp.Target.Count, comp.Align.Count}
	paths := [3]string{job.Source, job.Target, job.Alignment}
	var n [3]int64
	for i := range paths {
		rc, err := comp.Reader.Open(ctx, paths[i])
		if err != nil {
			return 0, fmt.Errorf("open %s: %w", streamNames[i], err)
		}
		n[i], err = counters[i](ctx, rc)
		_ = rc.Close()
		if err != nil {
			return 0, fmt.Errorf("count %s: %w", streamNames[i], err)
		}
	}
	if n[0] != n[1] || n[0] != n[2] {
		return 0, fmt.Errorf("%w: sentence counts differ: source=%d target=%d alignment=%d (%s, %s, %s)",
			contract.ErrPrecondition, n[0], n[1], n[2], job.Source, job.Target, job.Alignment)
	}
	return n[0], nil
}
