package contract

import (
	"fmt"
	"strings"
)

// ValidateTags 校验输出标签序列的良构性（纯函数，无 I/O）：
// - 每个标签为 "O"、"B-<type>" 或 "I-<type>"；
// - "I-<type>" 的前一位置为同类型的 B/I，或为 "O"（span 内部被剔除的标点位置）。
//
// 对于第二条：投影允许 span 内部标点位置保持 "O"，因此 I 可以跟在 O 之后，
// 但其左侧最近的非 O 标签必须属于同一 span 的类型。
func ValidateTags(tags []string) error {
	lastType := ""
	open := false
	for i, t := range tags {
		if t == TagOutside {
			continue
		}
		prefix, typ, ok := strings.Cut(t, "-")
		if !ok || typ == "" {
			return fmt.Errorf("%w: tag %q at %d", ErrInvariantViolation, t, i)
		}
		switch prefix {
		case PrefixB:
			open = true
			lastType = typ
		case PrefixI:
			if !open || lastType != typ {
				return fmt.Errorf("%w: dangling %q at %d", ErrInvariantViolation, t, i)
			}
		default:
			return fmt.Errorf("%w: prefix %q at %d", ErrInvariantViolation, prefix, i)
		}
	}
	return nil
}

// SpansFromTags 将 B/I 标签序列还原为 span（O 位置不计入）。
// 用于测试与诊断：与 ValidateTags 相同的口径，I 归入左侧最近的 B。
func SpansFromTags(tags []string) []Span {
	var out []Span
	for i, t := range tags {
		prefix, typ, ok := strings.Cut(t, "-")
		if !ok {
			continue
		}
		switch prefix {
		case PrefixB:
			out = append(out, Span{Type: typ, Indices: []int{i}})
		case PrefixI:
			if n := len(out); n > 0 && out[n-1].Type == typ {
				out[n-1].Indices = append(out[n-1].Indices, i)
			}
		}
	}
	return out
}
