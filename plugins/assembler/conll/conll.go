package conll

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"spanproj/pkg/contract"
	"spanproj/pkg/lineio"
)

// Options 为 conll 装配器配置。
type Options struct {
	// Separator: 词与标签之间的分隔符，默认单个空格。
	Separator string `json:"separator"`
	// Validate: 装配前校验标签良构性，默认 true。
	Validate *bool `json:"validate"`
}

type assembler struct {
	sep      string
	validate bool
}

// New 从原样 JSON Options 创建 conll 装配器。
func New(raw json.RawMessage) (contract.Assembler, error) {
	var o Options
	if len(raw) > 0 {
		dec := json.NewDecoder(strings.NewReader(string(raw)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&o); err != nil {
			return nil, err
		}
	}
	a := &assembler{sep: " ", validate: true}
	if o.Separator != "" {
		a.sep = o.Separator
	}
	if o.Validate != nil {
		a.validate = *o.Validate
	}
	return a, nil
}

// Assemble 将投影结果渲染为 "<word><sep><tag>" 块，每句后跟一个空行。
// Index 须严格升序；Words 与 Tags 须等长；Skip 的句子不输出。
// 违规返回 ErrSeqInvalid。
func (a *assembler) Assemble(ctx context.Context, out []contract.Projection) (io.Reader, error) {
	if err := lineio.CtxErr(ctx); err != nil {
		return nil, err
	}
	var sb strings.Builder
	for i, p := range out {
		if i > 0 && p.Index <= out[i-1].Index {
			return nil, fmt.Errorf("%w: index %d after %d", contract.ErrSeqInvalid, p.Index, out[i-1].Index)
		}
		if p.Skip {
			continue
		}
		if len(p.Words) != len(p.Tags) {
			return nil, fmt.Errorf("%w: sentence %d has %d words but %d tags", contract.ErrSeqInvalid, p.Index, len(p.Words), len(p.Tags))
		}
		if a.validate {
			if err := contract.ValidateTags(p.Tags); err != nil {
				return nil, fmt.Errorf("sentence %d: %w", p.Index, err)
			}
		}
		for k, w := range p.Words {
			sb.WriteString(w)
			sb.WriteString(a.sep)
			sb.WriteString(p.Tags[k])
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}
	return strings.NewReader(sb.String()), nil
}

var _ contract.Assembler = (*assembler)(nil)
