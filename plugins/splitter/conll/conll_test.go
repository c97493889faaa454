package conll

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"spanproj/pkg/contract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, in string) []contract.SourceSentence {
	t.Helper()
	sc := New(nil).Scan(strings.NewReader(in))
	var out []contract.SourceSentence
	for {
		s, err := sc.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, s)
	}
}

// UT-CNL-01: B/I 连续构成单 span，O 断开
func TestScanBasic(t *testing.T) {
	in := "John B-PER\nSmith I-PER\nworks O\nin O\nMadrid B-LOC\n. O\n\n"
	got := scanAll(t, in)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"John", "Smith", "works", "in", "Madrid", "."}, got[0].Words)
	assert.Equal(t, []contract.Span{
		{Type: "PER", Indices: []int{0, 1}},
		{Type: "LOC", Indices: []int{4}},
	}, got[0].Spans)
}

// UT-CNL-02: 转移规则（I 开头、类型不符、U/L、BIOES）
func TestScanTransitions(t *testing.T) {
	cases := []struct {
		name string
		tags []string
		want []contract.Span
	}{
		{"I开头另起", []string{"I-PER", "I-PER"}, []contract.Span{{Type: "PER", Indices: []int{0, 1}}}},
		{"类型不符另起", []string{"B-PER", "I-LOC"}, []contract.Span{{Type: "PER", Indices: []int{0}}, {Type: "LOC", Indices: []int{1}}}},
		{"O后的I另起", []string{"B-PER", "O", "I-PER"}, []contract.Span{{Type: "PER", Indices: []int{0}}, {Type: "PER", Indices: []int{2}}}},
		{"连续B各自成span", []string{"B-PER", "B-PER"}, []contract.Span{{Type: "PER", Indices: []int{0}}, {Type: "PER", Indices: []int{1}}}},
		{"BILOU", []string{"U-ORG", "B-PER", "I-PER", "L-PER"}, []contract.Span{{Type: "ORG", Indices: []int{0}}, {Type: "PER", Indices: []int{1, 2, 3}}}},
		{"BIOES", []string{"S-ORG", "B-PER", "E-PER"}, []contract.Span{{Type: "ORG", Indices: []int{0}}, {Type: "PER", Indices: []int{1, 2}}}},
		{"类型含连字符", []string{"B-WORK-OF-ART", "I-WORK-OF-ART"}, []contract.Span{{Type: "WORK-OF-ART", Indices: []int{0, 1}}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var sb strings.Builder
			for i, tag := range c.tags {
				sb.WriteString("w")
				sb.WriteByte(byte('a' + i))
				sb.WriteString(" ")
				sb.WriteString(tag)
				sb.WriteString("\n")
			}
			got := scanAll(t, sb.String())
			require.Len(t, got, 1)
			assert.Equal(t, c.want, got[0].Spans)
		})
	}
}

// UT-CNL-03: 畸形标签与字段数
func TestScanMalformed(t *testing.T) {
	for _, in := range []string{"a B\n", "a B-\n", "a X-PER\n", "a\n", "a b c\n", "ok O\nbad PER\n"} {
		sc := New(nil).Scan(strings.NewReader(in))
		var err error
		for err == nil {
			_, err = sc.Next()
		}
		if !errors.Is(err, contract.ErrMalformed) {
			t.Fatalf("期望 ErrMalformed: %q -> %v", in, err)
		}
	}
	sc := New(nil).Scan(strings.NewReader("a O\nb PER\n"))
	_, err := sc.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

// UT-CNL-04: 句界口径，Count 与 Scan 一致
func TestCountMatchesScan(t *testing.T) {
	inputs := map[string]int64{
		"":                          0,
		"a O\n":                     1,
		"a O\n\n":                   1,
		"a O\n\nb O":                2,
		"a O\n\n\nb O\n\n":          3, // 连续空行产生空句
		"\n":                        1,
		"a O\r\nb B-PER\r\n\r\nc O": 2,
	}
	for in, want := range inputs {
		n, err := New(nil).Count(context.Background(), strings.NewReader(in))
		require.NoError(t, err)
		assert.Equal(t, want, n, "count %q", in)
		assert.Len(t, scanAll(t, in), int(want), "scan %q", in)
	}
}

// UT-CNL-05: 空句产出空词表
func TestScanEmptySentence(t *testing.T) {
	got := scanAll(t, "a O\n\n\nb O\n")
	require.Len(t, got, 3)
	assert.Empty(t, got[1].Words)
	assert.Empty(t, got[1].Spans)
}

func TestSplitTag(t *testing.T) {
	p, typ, err := SplitTag("B-PER")
	require.NoError(t, err)
	assert.Equal(t, "B", p)
	assert.Equal(t, "PER", typ)
	_, _, err = SplitTag("-PER")
	assert.ErrorIs(t, err, contract.ErrMalformed)
}
