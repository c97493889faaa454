// Package plan 将配置中的作业与语料目录约定展开为 pipeline.Job 列表。
package plan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"spanproj/internal/pipeline"
	"spanproj/pkg/contract"
)

// Split: 单个数据切分的成对输入（标注源文件 + 目标译文）。
type Split struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Corpus: 多方法 × 多切分的语料约定。
// 对齐文件位于 AlignmentsDir，命名为 <name>.<method>.<split>[.<suffix>].talp；
// 输出工件为 <name>.<method>.<split>.tsv（相对 Writer 的输出目录）。
type Corpus struct {
	Name          string           `json:"output_name"`
	AlignmentsDir string           `json:"alignments_dir"`
	Methods       []string         `json:"methods"`
	Splits        map[string]Split `json:"splits"`
}

// 已知对齐工具的文件名后缀（对称化启发式）。
var knownSuffix = map[string]string{
	"fast_align": "grow_diag_final-and",
	"mgiza":      "grow_diag_final-and",
	"simalign":   "itermax",
	"awesome":    "",
}

// splitOrder: 常见切分的固定顺序；其余按名称排序追加。
var splitOrder = []string{"train", "dev", "test"}

// Jobs 合并显式作业与语料发现结果；输出工件重复时报前置错误。
func Jobs(explicit []pipeline.Job, c *Corpus) ([]pipeline.Job, error) {
	out := make([]pipeline.Job, 0, len(explicit))
	for i, j := range explicit {
		if err := checkJob(j); err != nil {
			return nil, fmt.Errorf("jobs[%d]: %w", i, err)
		}
		out = append(out, j)
	}
	if c != nil {
		found, err := Discover(*c)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no jobs configured", contract.ErrPrecondition)
	}
	seen := make(map[contract.ArtifactID]string, len(out))
	for _, j := range out {
		if prev, ok := seen[j.Output]; ok {
			return nil, fmt.Errorf("%w: output %q produced by both %q and %q", contract.ErrPrecondition, j.Output, prev, j.Name)
		}
		seen[j.Output] = j.Name
	}
	return out, nil
}

func checkJob(j pipeline.Job) error {
	switch {
	case strings.TrimSpace(j.Source) == "":
		return fmt.Errorf("%w: source missing", contract.ErrPrecondition)
	case strings.TrimSpace(j.Target) == "":
		return fmt.Errorf("%w: target missing", contract.ErrPrecondition)
	case strings.TrimSpace(j.Alignment) == "":
		return fmt.Errorf("%w: alignment missing", contract.ErrPrecondition)
	case strings.TrimSpace(string(j.Output)) == "":
		return fmt.Errorf("%w: output missing", contract.ErrPrecondition)
	}
	// 作业输入先计数再投影，需读两遍；STDIN 只能读一遍
	for _, p := range [...]struct{ key, path string }{
		{"source", j.Source}, {"target", j.Target}, {"alignment", j.Alignment},
	} {
		if strings.TrimSpace(p.path) == "-" {
			return fmt.Errorf("%w: %s cannot be stdin (\"-\"), inputs are read twice", contract.ErrPrecondition, p.key)
		}
	}
	return nil
}

// Discover 按方法、切分顺序展开作业。
func Discover(c Corpus) ([]pipeline.Job, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, fmt.Errorf("%w: corpus.output_name is required", contract.ErrPrecondition)
	}
	if len(c.Methods) == 0 {
		return nil, fmt.Errorf("%w: corpus.methods is empty", contract.ErrPrecondition)
	}
	splits, err := orderedSplits(c.Splits)
	if err != nil {
		return nil, err
	}
	dir := c.AlignmentsDir
	if dir == "" {
		dir = "."
	}
	var jobs []pipeline.Job
	for _, m := range c.Methods {
		for _, s := range splits {
			aln, err := alignmentPath(dir, c.Name, m, s)
			if err != nil {
				return nil, err
			}
			sp := c.Splits[s]
			jobs = append(jobs, pipeline.Job{
				Name:      m + "." + s,
				Source:    sp.Source,
				Target:    sp.Target,
				Alignment: aln,
				Output:    contract.ArtifactID(fmt.Sprintf("%s.%s.%s.tsv", c.Name, m, s)),
			})
		}
	}
	return jobs, nil
}

func orderedSplits(m map[string]Split) ([]string, error) {
	var names []string
	for name, sp := range m {
		hasS, hasT := strings.TrimSpace(sp.Source) != "", strings.TrimSpace(sp.Target) != ""
		if hasS != hasT {
			return nil, fmt.Errorf("%w: split %q needs both source and target (source=%q target=%q)",
				contract.ErrPrecondition, name, sp.Source, sp.Target)
		}
		if hasS {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: corpus has no splits", contract.ErrPrecondition)
	}
	rank := func(s string) int {
		for i, n := range splitOrder {
			if n == s {
				return i
			}
		}
		return len(splitOrder)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := rank(names[i]), rank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})
	return names, nil
}

// alignmentPath 先尝试已知后缀的精确文件名，否则按 <name>.<method>.<split>*.talp 匹配唯一文件。
func alignmentPath(dir, name, method, split string) (string, error) {
	base := name + "." + method + "." + split
	if suf, ok := knownSuffix[method]; ok {
		fn := base + ".talp"
		if suf != "" {
			fn = base + "." + suf + ".talp"
		}
		p := filepath.Join(dir, fn)
		if st, err := os.Stat(p); err == nil && st.Mode().IsRegular() {
			return p, nil
		}
	}
	pattern := quoteMeta(base) + "*.talp"
	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			matches = nil
		} else {
			return "", fmt.Errorf("glob %s: %w", path.Join(dir, pattern), err)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: no alignment file for %s in %s", contract.ErrPrecondition, base, dir)
	case 1:
		return filepath.Join(dir, filepath.FromSlash(matches[0])), nil
	default:
		sort.Strings(matches)
		return "", fmt.Errorf("%w: ambiguous alignment files for %s: %s", contract.ErrPrecondition, base, strings.Join(matches, ", "))
	}
}

func quoteMeta(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '{', '}', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
