package config

import (
	"encoding/json"

	"spanproj/internal/plan"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON/YAML 使用 snake_case；未知字段在解析期失败。
type Config struct {
	BatchSize int `json:"batch_size"`
	// Concurrency: worker 数；0 表示 runtime.NumCPU()。
	Concurrency int     `json:"concurrency"`
	Logging     Logging `json:"logging"`
	// MetricsFile: 非空时在运行结束后写出 Prometheus textfile。
	MetricsFile string `json:"metrics_file"`
	// Manifest: 非空时写出 JSON 运行清单（输出、句数、摘要）。
	Manifest string `json:"manifest"`
	// OutputDir: 非空时覆盖 options.writer.output_dir。
	OutputDir string `json:"output_dir"`

	Projection Projection `json:"projection"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`
	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`

	// Jobs 为显式作业；Corpus 为按命名约定发现的作业。二者可并存。
	Jobs   []Job        `json:"jobs"`
	Corpus *plan.Corpus `json:"corpus"`
}

// Logging: 日志等级与目录。
type Logging struct {
	Level string `json:"level"`
	Dir   string `json:"dir"`
}

// Projection: 投影参数；覆盖 options.projector 中的同名键。
type Projection struct {
	RemovePunct *bool  `json:"remove_punct"`
	FillGapSize *int   `json:"fill_gap_size"`
	PunctFold   string `json:"punct_fold"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader         string `json:"reader" env:"READER"`
	SourceSplitter string `json:"source_splitter" env:"SOURCE_SPLITTER"`
	TargetSplitter string `json:"target_splitter" env:"TARGET_SPLITTER"`
	Decoder        string `json:"decoder" env:"DECODER"`
	Batcher        string `json:"batcher" env:"BATCHER"`
	Projector      string `json:"projector" env:"PROJECTOR"`
	Assembler      string `json:"assembler" env:"ASSEMBLER"`
	Writer         string `json:"writer" env:"WRITER"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Reader         json.RawMessage `json:"reader"`
	SourceSplitter json.RawMessage `json:"source_splitter"`
	TargetSplitter json.RawMessage `json:"target_splitter"`
	Decoder        json.RawMessage `json:"decoder"`
	Batcher        json.RawMessage `json:"batcher"`
	Projector      json.RawMessage `json:"projector"`
	Assembler      json.RawMessage `json:"assembler"`
	Writer         json.RawMessage `json:"writer"`
}

// Job: 显式作业。Output 为相对 Writer 输出目录的工件标识。
type Job struct {
	Name      string `json:"name"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	Alignment string `json:"alignment"`
	Output    string `json:"output"`
}
