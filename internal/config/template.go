package config

import (
	"encoding/json"

	"spanproj/internal/plan"
)

// DefaultTemplateConfig 返回一个可直接编辑的配置模板：
// - 语料发现示例（fast_align + simalign，train/dev/test）；
// - Writer 输出到 ./out，默认流式写；
// - 列出各组件的全部选项键。
func DefaultTemplateConfig() Config {
	d := Defaults()
	keep, fill := true, 1
	cfg := Config{
		BatchSize:   d.BatchSize,
		Concurrency: 0,
		Logging:     d.Logging,
		MetricsFile: "",
		Manifest:    "out/manifest.json",
		Projection:  Projection{RemovePunct: &keep, FillGapSize: &fill, PunctFold: "none"},
		Components:  d.Components,
		Corpus: &plan.Corpus{
			Name:          "corpus",
			AlignmentsDir: "alignments",
			Methods:       []string{"fast_align", "simalign"},
			Splits: map[string]plan.Split{
				"train": {Source: "data/en.train.conll", Target: "data/xx.train.txt"},
				"dev":   {Source: "data/en.dev.conll", Target: "data/xx.dev.txt"},
				"test":  {Source: "data/en.test.conll", Target: "data/xx.test.txt"},
			},
		},
	}
	cfg.Options.Reader = json.RawMessage(`{
  "buf_size": 65536,
  "decompress": true
}`)
	cfg.Options.SourceSplitter = json.RawMessage(`{"buf_size": 65536}`)
	cfg.Options.TargetSplitter = json.RawMessage(`{"buf_size": 65536}`)
	cfg.Options.Decoder = json.RawMessage(`{"buf_size": 65536}`)
	cfg.Options.Batcher = json.RawMessage(`{"min_shard": 64}`)
	// 投影参数在 projection 段给出
	cfg.Options.Projector = json.RawMessage(`{}`)
	cfg.Options.Assembler = json.RawMessage(`{
  "separator": " ",
  "validate": true
}`)
	cfg.Options.Writer = json.RawMessage(`{
  "output_dir": "out",
  "atomic": false,
  "flat": false,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536
}`)
	return cfg
}
