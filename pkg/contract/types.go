package contract

import "sort"

// FileID: 逻辑文件ID（通常为路径，需规范化，跨平台一致）。
type FileID string

// Tag 常量：输出标签的最小词表。
const (
	TagOutside = "O"
	PrefixB    = "B"
	PrefixI    = "I"
)

// Alignment: 单句对的词对齐，源词下标 → 目标词下标列表。
// 约束：
// - 列表保持输入顺序，可含重复（去重由投影器负责）；
// - 不保证一一对应，也不保证覆盖全部源词。
type Alignment map[int][]int

// Targets 返回源下标 i 对齐到的目标下标；缺失时返回空（非错误）。
func (a Alignment) Targets(i int) []int {
	if a == nil {
		return nil
	}
	return a[i]
}

// Add 追加一条 i→j 对齐。
func (a Alignment) Add(i, j int) {
	a[i] = append(a[i], j)
}

// Sources 按升序返回出现过的源下标（用于诊断输出的稳定顺序）。
func (a Alignment) Sources() []int {
	out := make([]int, 0, len(a))
	for k := range a {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// Span: 标注单元。Indices 严格递增、无重复。
type Span struct {
	Type    string
	Indices []int
}

// First/Last 假定 Indices 非空。
func (s Span) First() int { return s.Indices[0] }
func (s Span) Last() int  { return s.Indices[len(s.Indices)-1] }

// SourceSentence: 已标注源句（词序列 + 有序 span 列表），构建后只读。
type SourceSentence struct {
	Words []string
	Spans []Span
}

// Item: 一个句对（三路输入流的同一行/块）。
// Index 为句子在流中的全局序号（0..n-1）。
type Item struct {
	Index  int64
	Source SourceSentence
	Target []string
	Align  Alignment
}

// Batch: 定长读取得到的句对批次。BatchIndex 在单个作业内严格递增。
type Batch struct {
	BatchIndex int64
	Items      []Item
}

// Shard: 批内连续切片，ShardIndex 用于按序拼回。
type Shard struct {
	ShardIndex int
	Items      []Item
}

// Projection: 单句投影结果。
// Skip 为真表示该句无可写内容（目标为空句），装配时跳过。
type Projection struct {
	Index int64
	Words []string
	Tags  []string
	Skip  bool
}
