// Package span 实现基于词对齐的 span 标签投影：
// 原始投影 → 标点剔除 → 断裂修补 → 跨 span 冲突消解 → 标签发射。
//
// 修补与冲突阶段均在闭区间 (start, end, type) 列表上进行；
// 排序、合并与取舍规则见各函数注释。
package span

import (
	"fmt"
	"sort"

	"github.com/davecgh/go-spew/spew"

	"spanproj/pkg/contract"
)

// Options 为投影器配置；指针字段为 nil 时取默认值。
type Options struct {
	// RemovePunct: 剔除仅含标点的目标词，默认 true。
	RemovePunct *bool `json:"remove_punct"`
	// FillGapSize: 断裂修补允许吸收的最大间隙，默认 1；0 表示不修补。
	FillGapSize *int `json:"fill_gap_size"`
	// PunctFold: 标点判定前的归一方式，"none"（默认）或 "nfkc"。
	PunctFold string `json:"punct_fold"`
}

// 丢弃原因（用于指标）。
const (
	DropUnaligned   = "unaligned"
	DropPunctuation = "punctuation"
	DropMerged      = "merged"
	DropCollision   = "collision"
)

// Observer 接收 span 丢弃事件；实现须并发安全。
type Observer interface {
	SpanDropped(reason string, n int)
}

// Projector 无内部可变状态，可被多个 worker 并发调用。
type Projector struct {
	removePunct bool
	fillGap     int
	fold        bool
	obs         Observer
}

var _ contract.Projector = (*Projector)(nil)

// New 创建投影器；FillGapSize 为负或 PunctFold 未知时返回错误。
func New(opts *Options) (*Projector, error) {
	p := &Projector{removePunct: true, fillGap: 1}
	if opts == nil {
		return p, nil
	}
	if opts.RemovePunct != nil {
		p.removePunct = *opts.RemovePunct
	}
	if opts.FillGapSize != nil {
		if *opts.FillGapSize < 0 {
			return nil, fmt.Errorf("span: fill_gap_size must be >= 0, got %d", *opts.FillGapSize)
		}
		p.fillGap = *opts.FillGapSize
	}
	switch opts.PunctFold {
	case "", FoldNone:
	case FoldNFKC:
		p.fold = true
	default:
		return nil, fmt.Errorf("span: unknown punct_fold %q", opts.PunctFold)
	}
	return p, nil
}

// WithObserver 返回挂接了观察者的副本。
func (p *Projector) WithObserver(o Observer) *Projector {
	cp := *p
	cp.obs = o
	return &cp
}

func (p *Projector) dropped(reason string, n int) {
	if p.obs != nil && n > 0 {
		p.obs.SpanDropped(reason, n)
	}
}

// interval: 目标侧闭区间 [start, end]。
type interval struct {
	start, end int
	typ        string
}

func (iv interval) size() int { return iv.end - iv.start + 1 }

// Project 计算目标标签序列，长度恒等于 len(target)。
// 任一侧词表为空时返回全 "O"（目标为空则为空切片），不报错。
func (p *Projector) Project(src contract.SourceSentence, target []string, a contract.Alignment) ([]string, error) {
	tags := make([]string, len(target))
	for i := range tags {
		tags[i] = contract.TagOutside
	}
	if len(target) == 0 || len(src.Words) == 0 {
		return tags, nil
	}

	ivs := make([]interval, 0, len(src.Spans))
	for _, sp := range src.Spans {
		idx := rawProjection(sp, a)
		if len(idx) == 0 {
			p.dropped(DropUnaligned, 1)
			continue
		}
		if idx[len(idx)-1] >= len(target) {
			return nil, fmt.Errorf("%w: span projects outside target sentence of %d words\n%s",
				contract.ErrInvariantViolation, len(target), dump(sp, idx, src, target, a))
		}
		if p.removePunct {
			idx = trimPunct(idx, target, p.fold)
			if len(idx) == 0 {
				p.dropped(DropPunctuation, 1)
				continue
			}
		}
		start, end := longestRun(idx, p.fillGap)
		ivs = append(ivs, interval{start: start, end: end, typ: sp.Type})
	}

	sort.SliceStable(ivs, func(i, j int) bool { return ivs[i].start < ivs[j].start })
	n := len(ivs)
	ivs = mergeSameType(ivs)
	p.dropped(DropMerged, n-len(ivs))
	n = len(ivs)
	ivs = longerWins(ivs)
	p.dropped(DropCollision, n-len(ivs))

	for _, iv := range ivs {
		if iv.start < 0 || iv.end >= len(tags) {
			return nil, fmt.Errorf("%w: interval %+v outside target sentence\n%s",
				contract.ErrInvariantViolation, iv, dumpCfg.Sdump(src.Words, target, a))
		}
		tags[iv.start] = contract.PrefixB + "-" + iv.typ
		for k := iv.start + 1; k <= iv.end; k++ {
			tags[k] = contract.PrefixI + "-" + iv.typ
		}
	}
	return tags, nil
}

// rawProjection: span 内各源下标对齐目标的并集，去重升序。
func rawProjection(sp contract.Span, a contract.Alignment) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, i := range sp.Indices {
		for _, j := range a.Targets(i) {
			if _, ok := seen[j]; ok {
				continue
			}
			seen[j] = struct{}{}
			out = append(out, j)
		}
	}
	sort.Ints(out)
	return out
}

func trimPunct(idx []int, target []string, fold bool) []int {
	out := idx[:0]
	for _, j := range idx {
		if !isPunct(target[j], fold) {
			out = append(out, j)
		}
	}
	return out
}

// longestRun 将升序下标切为连续段，相邻段间隙 ≤ fill 时合并（吸收间隙），
// 合并后的段继续与下一段比较；返回最长段，等长取最左。
func longestRun(idx []int, fill int) (int, int) {
	runs := []interval{{start: idx[0], end: idx[0]}}
	for _, j := range idx[1:] {
		if cur := &runs[len(runs)-1]; j-cur.end-1 <= fill {
			cur.end = j
		} else {
			runs = append(runs, interval{start: j, end: j})
		}
	}
	best := runs[0]
	for _, r := range runs[1:] {
		if r.size() > best.size() {
			best = r
		}
	}
	return best.start, best.end
}

// mergeSameType: 与前一区间重叠且同类型则并入，并以合并结果继续比较。
// 输入须按 start 升序。
func mergeSameType(ivs []interval) []interval {
	out := make([]interval, 0, len(ivs))
	for _, iv := range ivs {
		if n := len(out); n > 0 && out[n-1].end >= iv.start && out[n-1].typ == iv.typ {
			if iv.end > out[n-1].end {
				out[n-1].end = iv.end
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// longerWins: 相邻区间重叠时保留更长者；等长保留后者。
// 输出中相邻区间互不重叠，且仍按 start 升序。
func longerWins(ivs []interval) []interval {
	out := make([]interval, 0, len(ivs))
	for _, iv := range ivs {
		if n := len(out); n > 0 && out[n-1].end >= iv.start {
			if out[n-1].size() > iv.size() {
				continue
			}
			out = out[:n-1]
		}
		out = append(out, iv)
	}
	return out
}

var dumpCfg = spew.ConfigState{Indent: "  ", SortKeys: true, DisablePointerAddresses: true, DisableCapacities: true}

func dump(sp contract.Span, idx []int, src contract.SourceSentence, target []string, a contract.Alignment) string {
	return dumpCfg.Sprintf("span: %v\nprojected: %v\nsource_words: %v\ntarget_words: %v\nalignment: %v",
		sp, idx, src.Words, target, a)
}
