package registry

import (
	"bytes"
	"encoding/json"

	"spanproj/pkg/contract"
	aconll "spanproj/plugins/assembler/conll"
	bshard "spanproj/plugins/batcher/shard"
	dtalp "spanproj/plugins/decoder/talp"
	pspan "spanproj/plugins/projector/span"
	rfs "spanproj/plugins/reader/filesystem"
	sconll "spanproj/plugins/splitter/conll"
	sptxt "spanproj/plugins/splitter/plaintext"
	wfs "spanproj/plugins/writer/filesystem"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// 工厂签名：均接收原样 JSON Options。
type (
	NewReader         func(raw json.RawMessage) (contract.Reader, error)
	NewSplitter       func(raw json.RawMessage) (contract.Splitter, error)
	NewTargetSplitter func(raw json.RawMessage) (contract.TargetSplitter, error)
	NewDecoder        func(raw json.RawMessage) (contract.Decoder, error)
	NewBatcher        func(raw json.RawMessage) (contract.Batcher, error)
	NewProjector      func(raw json.RawMessage) (contract.Projector, error)
	NewAssembler      func(raw json.RawMessage) (contract.Assembler, error)
	NewWriter         func(raw json.RawMessage) (contract.Writer, error)
)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件系统/STDIN，按扩展名透明解压 .xz/.gz
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
}

// Splitter 工厂注册表（标注源句）。
var Splitter = map[string]NewSplitter{
	"conll": func(raw json.RawMessage) (contract.Splitter, error) {
		var opts sconll.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return sconll.New(&opts), nil
	},
}

// TargetSplitter 工厂注册表（目标句）。
var TargetSplitter = map[string]NewTargetSplitter{
	"plaintext": func(raw json.RawMessage) (contract.TargetSplitter, error) {
		var opts sptxt.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return sptxt.New(&opts), nil
	},
}

// Decoder 工厂注册表（对齐记录）。
var Decoder = map[string]NewDecoder{
	// talp: 每行空白分隔的 "i-j"
	"talp": func(raw json.RawMessage) (contract.Decoder, error) {
		var opts dtalp.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return dtalp.New(&opts), nil
	},
}

// Batcher 工厂注册表。
var Batcher = map[string]NewBatcher{
	// shard: 批内按 ceil(len/n) 连续分片
	"shard": func(raw json.RawMessage) (contract.Batcher, error) {
		var opts bshard.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return bshard.New(&opts), nil
	},
}

// Projector 工厂注册表。
var Projector = map[string]NewProjector{
	"span": func(raw json.RawMessage) (contract.Projector, error) {
		var opts pspan.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return pspan.New(&opts)
	},
}

// Assembler 工厂注册表。
var Assembler = map[string]NewAssembler{
	// conll: "<word> <tag>" 块，每句后空行
	"conll": func(raw json.RawMessage) (contract.Assembler, error) { return aconll.New(raw) },
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（默认流式写，可选原子替换）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
}
