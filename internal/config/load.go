package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix 为环境变量覆盖的统一前缀。
const EnvPrefix = "SPANPROJ_"

// Defaults 返回带有安全默认值的 Config 雏形。
func Defaults() Config {
	return Config{
		BatchSize: 10000,
		Logging:   Logging{Level: "info", Dir: "logs"},
		Components: Components{
			Reader:         "fs",
			SourceSplitter: "conll",
			TargetSplitter: "plaintext",
			Decoder:        "talp",
			Batcher:        "shard",
			Projector:      "span",
			Assembler:      "conll",
			Writer:         "fs",
		},
	}
}

// LoadFile 读取配置文件；.yaml/.yml 按 YAML 解析，其余按 JSON。
func LoadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(raw)
	default:
		return LoadJSON(raw)
	}
}

// LoadJSON 解析原始 JSON（严格拒绝未知字段）。
func LoadJSON(raw []byte) (Config, error) {
	var cfg Config
	if len(bytes.TrimSpace(raw)) == 0 {
		return cfg, errors.New("config: empty document")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LoadYAML 将 YAML 文档转为 JSON 后走同一严格解码路径，
// 两种格式共享一套字段名与未知字段规则。
func LoadYAML(raw []byte) (Config, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Config{}, fmt.Errorf("config: yaml: %w", err)
	}
	if doc == nil {
		return Config{}, errors.New("config: empty document")
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return Config{}, fmt.Errorf("config: yaml to json: %w", err)
	}
	return LoadJSON(js)
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if over.BatchSize != 0 {
		out.BatchSize = over.BatchSize
	}
	if over.Concurrency != 0 {
		out.Concurrency = over.Concurrency
	}
	if s := strings.TrimSpace(over.Logging.Level); s != "" {
		out.Logging.Level = s
	}
	if s := strings.TrimSpace(over.Logging.Dir); s != "" {
		out.Logging.Dir = s
	}
	if over.MetricsFile != "" {
		out.MetricsFile = over.MetricsFile
	}
	if over.Manifest != "" {
		out.Manifest = over.Manifest
	}
	if over.OutputDir != "" {
		out.OutputDir = over.OutputDir
	}

	// 投影参数：指针非空即覆盖（false/0 有语义）
	if over.Projection.RemovePunct != nil {
		v := *over.Projection.RemovePunct
		out.Projection.RemovePunct = &v
	}
	if over.Projection.FillGapSize != nil {
		v := *over.Projection.FillGapSize
		out.Projection.FillGapSize = &v
	}
	if s := strings.TrimSpace(over.Projection.PunctFold); s != "" {
		out.Projection.PunctFold = s
	}

	// 组件名（空不覆盖）
	mergeName(&out.Components.Reader, over.Components.Reader)
	mergeName(&out.Components.SourceSplitter, over.Components.SourceSplitter)
	mergeName(&out.Components.TargetSplitter, over.Components.TargetSplitter)
	mergeName(&out.Components.Decoder, over.Components.Decoder)
	mergeName(&out.Components.Batcher, over.Components.Batcher)
	mergeName(&out.Components.Projector, over.Components.Projector)
	mergeName(&out.Components.Assembler, over.Components.Assembler)
	mergeName(&out.Components.Writer, over.Components.Writer)

	// Options（完整替换对应键）
	mergeRaw(&out.Options.Reader, over.Options.Reader)
	mergeRaw(&out.Options.SourceSplitter, over.Options.SourceSplitter)
	mergeRaw(&out.Options.TargetSplitter, over.Options.TargetSplitter)
	mergeRaw(&out.Options.Decoder, over.Options.Decoder)
	mergeRaw(&out.Options.Batcher, over.Options.Batcher)
	mergeRaw(&out.Options.Projector, over.Options.Projector)
	mergeRaw(&out.Options.Assembler, over.Options.Assembler)
	mergeRaw(&out.Options.Writer, over.Options.Writer)

	if len(over.Jobs) > 0 {
		out.Jobs = append([]Job(nil), over.Jobs...)
	}
	if over.Corpus != nil {
		c := *over.Corpus
		out.Corpus = &c
	}
	return out
}

// envVars: SPANPROJ_* 可覆盖的键集合。
type envVars struct {
	BatchSize   int    `env:"BATCH_SIZE"`
	Concurrency int    `env:"CONCURRENCY"`
	LogLevel    string `env:"LOG_LEVEL"`
	LogDir      string `env:"LOG_DIR"`
	MetricsFile string `env:"METRICS_FILE"`
	Manifest    string `env:"MANIFEST"`

	RemovePunct *bool  `env:"REMOVE_PUNCT"`
	FillGapSize *int   `env:"FILL_GAP_SIZE"`
	PunctFold   string `env:"PUNCT_FOLD"`

	OutputDir string `env:"OUTPUT_DIR"`

	Components Components `envPrefix:"COMPONENTS_"`
}

// EnvOverlay 从环境变量构建一个 Config 覆盖；前缀 SPANPROJ_。
// 数值解析失败视为配置错误。
func EnvOverlay(environ []string) (Config, error) {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, EnvPrefix) {
			m[k] = v
		}
	}
	var ev envVars
	if err := env.ParseWithOptions(&ev, env.Options{Prefix: EnvPrefix, Environment: m}); err != nil {
		return Config{}, fmt.Errorf("config: env: %w", err)
	}
	over := Config{
		BatchSize:   ev.BatchSize,
		Concurrency: ev.Concurrency,
		Logging:     Logging{Level: strings.TrimSpace(ev.LogLevel), Dir: strings.TrimSpace(ev.LogDir)},
		MetricsFile: ev.MetricsFile,
		Manifest:    ev.Manifest,
		OutputDir:   strings.TrimSpace(ev.OutputDir),
		Projection: Projection{
			RemovePunct: ev.RemovePunct,
			FillGapSize: ev.FillGapSize,
			PunctFold:   ev.PunctFold,
		},
		Components: ev.Components,
	}
	return over, nil
}

func mergeName(dst *string, v string) {
	if s := strings.TrimSpace(v); s != "" {
		*dst = s
	}
}

func mergeRaw(dst *json.RawMessage, v json.RawMessage) {
	if len(v) > 0 {
		*dst = cloneRaw(v)
	}
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
