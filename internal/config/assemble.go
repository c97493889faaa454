package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"spanproj/internal/diag"
	"spanproj/internal/pipeline"
	"spanproj/internal/plan"
	"spanproj/pkg/contract"
	"spanproj/pkg/registry"
	pspan "spanproj/plugins/projector/span"
)

// Validate 对最小必要边界做静态校验（不触碰输入文件）。
func Validate(cfg Config) error {
	if cfg.BatchSize < 1 {
		return errors.New("config: batch_size must be >= 1")
	}
	if cfg.Concurrency < 0 {
		return errors.New("config: concurrency must be >= 0")
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown logging.level %q", cfg.Logging.Level)
	}
	if p := cfg.Projection.FillGapSize; p != nil && *p < 0 {
		return fmt.Errorf("config: projection.fill_gap_size must be >= 0, got %d", *p)
	}
	switch cfg.Projection.PunctFold {
	case "", pspan.FoldNone, pspan.FoldNFKC:
	default:
		return fmt.Errorf("config: unknown projection.punct_fold %q", cfg.Projection.PunctFold)
	}
	d := Defaults().Components
	checks := []struct {
		kind string
		name string
		ok   func(string) bool
	}{
		{"reader", effName(cfg.Components.Reader, d.Reader), func(n string) bool { return registry.Reader[n] != nil }},
		{"source_splitter", effName(cfg.Components.SourceSplitter, d.SourceSplitter), func(n string) bool { return registry.Splitter[n] != nil }},
		{"target_splitter", effName(cfg.Components.TargetSplitter, d.TargetSplitter), func(n string) bool { return registry.TargetSplitter[n] != nil }},
		{"decoder", effName(cfg.Components.Decoder, d.Decoder), func(n string) bool { return registry.Decoder[n] != nil }},
		{"batcher", effName(cfg.Components.Batcher, d.Batcher), func(n string) bool { return registry.Batcher[n] != nil }},
		{"projector", effName(cfg.Components.Projector, d.Projector), func(n string) bool { return registry.Projector[n] != nil }},
		{"assembler", effName(cfg.Components.Assembler, d.Assembler), func(n string) bool { return registry.Assembler[n] != nil }},
		{"writer", effName(cfg.Components.Writer, d.Writer), func(n string) bool { return registry.Writer[n] != nil }},
	}
	for _, c := range checks {
		if !c.ok(c.name) {
			return fmt.Errorf("config: %s %q not registered", c.kind, c.name)
		}
	}
	for i, j := range cfg.Jobs {
		if strings.TrimSpace(j.Output) == "" {
			return fmt.Errorf("config: jobs[%d].output is required", i)
		}
	}
	return nil
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只合成 raw JSON。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	var comp pipeline.Components
	if err := Validate(cfg); err != nil {
		return comp, pipeline.Settings{}, err
	}
	d := Defaults().Components

	projOpts, err := patchRaw(cfg.Options.Projector, projectionKeys(cfg.Projection))
	if err != nil {
		return comp, pipeline.Settings{}, fmt.Errorf("config: options.projector: %w", err)
	}
	writerOpts := cfg.Options.Writer
	if cfg.OutputDir != "" {
		if writerOpts, err = patchRaw(writerOpts, map[string]any{"output_dir": cfg.OutputDir}); err != nil {
			return comp, pipeline.Settings{}, fmt.Errorf("config: options.writer: %w", err)
		}
	}

	if comp.Reader, err = registry.Reader[effName(cfg.Components.Reader, d.Reader)](cfg.Options.Reader); err != nil {
		return comp, pipeline.Settings{}, fmt.Errorf("config: reader: %w", err)
	}
	if comp.Source, err = registry.Splitter[effName(cfg.Components.SourceSplitter, d.SourceSplitter)](cfg.Options.SourceSplitter); err != nil {
		return comp, pipeline.Settings{}, fmt.Errorf("config: source_splitter: %w", err)
	}
	if comp.Target, err = registry.TargetSplitter[effName(cfg.Components.TargetSplitter, d.TargetSplitter)](cfg.Options.TargetSplitter); err != nil {
		return comp, pipeline.Settings{}, fmt.Errorf("config: target_splitter: %w", err)
	}
	if comp.Align, err = registry.Decoder[effName(cfg.Components.Decoder, d.Decoder)](cfg.Options.Decoder); err != nil {
		return comp, pipeline.Settings{}, fmt.Errorf("config: decoder: %w", err)
	}
	if comp.Batcher, err = registry.Batcher[effName(cfg.Components.Batcher, d.Batcher)](cfg.Options.Batcher); err != nil {
		return comp, pipeline.Settings{}, fmt.Errorf("config: batcher: %w", err)
	}
	if comp.Projector, err = registry.Projector[effName(cfg.Components.Projector, d.Projector)](projOpts); err != nil {
		return comp, pipeline.Settings{}, fmt.Errorf("config: projector: %w", err)
	}
	// 丢弃计数接入指标
	if sp, ok := comp.Projector.(*pspan.Projector); ok {
		comp.Projector = sp.WithObserver(diag.SpanDropped{})
	}
	if comp.Assembler, err = registry.Assembler[effName(cfg.Components.Assembler, d.Assembler)](cfg.Options.Assembler); err != nil {
		return comp, pipeline.Settings{}, fmt.Errorf("config: assembler: %w", err)
	}
	if comp.Writer, err = registry.Writer[effName(cfg.Components.Writer, d.Writer)](writerOpts); err != nil {
		return comp, pipeline.Settings{}, fmt.Errorf("config: writer: %w", err)
	}

	set := pipeline.Settings{BatchSize: cfg.BatchSize, Concurrency: cfg.Concurrency}
	if set.Concurrency == 0 {
		set.Concurrency = runtime.NumCPU()
	}
	return comp, set, nil
}

// Jobs 展开显式作业与语料发现结果。
func Jobs(cfg Config) ([]pipeline.Job, error) {
	jobs := make([]pipeline.Job, 0, len(cfg.Jobs))
	for i, j := range cfg.Jobs {
		name := j.Name
		if name == "" {
			name = fmt.Sprintf("job%d", i)
		}
		jobs = append(jobs, pipeline.Job{
			Name:      name,
			Source:    j.Source,
			Target:    j.Target,
			Alignment: j.Alignment,
			Output:    contract.ArtifactID(j.Output),
		})
	}
	return plan.Jobs(jobs, cfg.Corpus)
}

func projectionKeys(p Projection) map[string]any {
	kv := map[string]any{}
	if p.RemovePunct != nil {
		kv["remove_punct"] = *p.RemovePunct
	}
	if p.FillGapSize != nil {
		kv["fill_gap_size"] = *p.FillGapSize
	}
	if p.PunctFold != "" {
		kv["punct_fold"] = p.PunctFold
	}
	return kv
}

// patchRaw 在 JSON 对象上覆盖若干键；raw 为空时视为空对象。
func patchRaw(raw json.RawMessage, kv map[string]any) (json.RawMessage, error) {
	if len(kv) == 0 {
		return raw, nil
	}
	obj := map[string]json.RawMessage{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, err
		}
		if obj == nil {
			obj = map[string]json.RawMessage{}
		}
	}
	for k, v := range kv {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		obj[k] = b
	}
	return json.Marshal(obj)
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
