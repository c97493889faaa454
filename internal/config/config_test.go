package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spanproj/internal/pipeline"
	"spanproj/internal/plan"
	"spanproj/pkg/contract"
	pspan "spanproj/plugins/projector/span"
)

// UT-CFG-01: 解析完整 JSON 配置
func TestLoadJSONFile(t *testing.T) {
	cfg, err := LoadFile("../../testdata/config/basic.json")
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if cfg.BatchSize != 500 || cfg.Concurrency != 4 {
		t.Fatalf("字段映射错误: %+v", cfg)
	}
	require.NotNil(t, cfg.Projection.FillGapSize)
	assert.Equal(t, 2, *cfg.Projection.FillGapSize)
	require.Len(t, cfg.Jobs, 1)
	assert.Equal(t, "dev.tsv", cfg.Jobs[0].Output)
	if err := Validate(Merge(Defaults(), cfg)); err != nil {
		t.Fatalf("校验失败: %v", err)
	}
}

// UT-CFG-02: YAML 与 JSON 等价
func TestLoadYAMLFile(t *testing.T) {
	y, err := LoadFile("../../testdata/config/basic.yaml")
	require.NoError(t, err)
	j, err := LoadFile("../../testdata/config/basic.json")
	require.NoError(t, err)
	assert.Equal(t, j.BatchSize, y.BatchSize)
	assert.Equal(t, j.Jobs, y.Jobs)
	assert.Equal(t, *j.Projection.RemovePunct, *y.Projection.RemovePunct)
	require.NotNil(t, y.Corpus)
	assert.Equal(t, []string{"fast_align", "awesome"}, y.Corpus.Methods)
	assert.Equal(t, "en.test.conll", y.Corpus.Splits["test"].Source)
}

// UT-CFG-03: 含非法字段
func TestLoadUnknown(t *testing.T) {
	if _, err := LoadJSON([]byte(`{"unknown":1}`)); err == nil {
		t.Fatalf("应当返回错误")
	}
	if _, err := LoadYAML([]byte("projection:\n  fill_gap: 1\n")); err == nil {
		t.Fatalf("YAML 未知字段应当返回错误")
	}
	if _, err := LoadYAML([]byte("")); err == nil {
		t.Fatalf("空文档应当返回错误")
	}
}

// UT-CFG-04: ENV 覆盖部分字段
func TestEnvOverlay(t *testing.T) {
	env := []string{
		"SPANPROJ_BATCH_SIZE=20",
		"SPANPROJ_CONCURRENCY=3",
		"SPANPROJ_REMOVE_PUNCT=false",
		"SPANPROJ_FILL_GAP_SIZE=0",
		"SPANPROJ_COMPONENTS_WRITER=fs",
		"SPANPROJ_OUTPUT_DIR=/tmp/x",
		"OTHER_BATCH_SIZE=99",
		"PATH=/bin",
	}
	over, err := EnvOverlay(env)
	if err != nil {
		t.Fatalf("EnvOverlay 错误: %v", err)
	}
	if over.BatchSize != 20 || over.Concurrency != 3 || over.Components.Writer != "fs" {
		t.Fatalf("覆盖结果不正确: %+v", over)
	}
	require.NotNil(t, over.Projection.RemovePunct)
	assert.False(t, *over.Projection.RemovePunct)
	require.NotNil(t, over.Projection.FillGapSize)
	assert.Equal(t, 0, *over.Projection.FillGapSize)
	assert.Equal(t, "/tmp/x", over.OutputDir)

	cfg := Merge(Defaults(), over)
	assert.Equal(t, 0, *cfg.Projection.FillGapSize)
	assert.Equal(t, "conll", cfg.Components.Assembler)

	empty, err := EnvOverlay(nil)
	require.NoError(t, err)
	assert.Nil(t, empty.Projection.RemovePunct)

	_, err = EnvOverlay([]string{"SPANPROJ_BATCH_SIZE=many"})
	require.Error(t, err)
}

func TestMergeKeepsBase(t *testing.T) {
	base := Defaults()
	base.Options.Writer = json.RawMessage(`{"output_dir":"a"}`)
	out := Merge(base, Config{Logging: Logging{Level: " debug "}})
	assert.Equal(t, "debug", out.Logging.Level)
	assert.Equal(t, "logs", out.Logging.Dir)
	assert.JSONEq(t, `{"output_dir":"a"}`, string(out.Options.Writer))
	assert.Equal(t, 10000, out.BatchSize)
}

// 补充覆盖: Validate 错误分支
func TestValidateErrors(t *testing.T) {
	if err := Validate(Config{}); err == nil {
		t.Fatal("空配置应失败")
	}
	neg := -1
	cases := map[string]func(*Config){
		"concurrency": func(c *Config) { c.Concurrency = -2 },
		"level":       func(c *Config) { c.Logging.Level = "loud" },
		"fill":        func(c *Config) { c.Projection.FillGapSize = &neg },
		"fold":        func(c *Config) { c.Projection.PunctFold = "nfd" },
		"component":   func(c *Config) { c.Components.Decoder = "pharaoh" },
		"job":         func(c *Config) { c.Jobs = []Job{{Source: "a"}} },
	}
	for name, mut := range cases {
		cfg := DefaultTemplateConfig()
		mut(&cfg)
		if err := Validate(cfg); err == nil {
			t.Fatalf("%s: 应失败", name)
		}
	}
	require.NoError(t, Validate(DefaultTemplateConfig()))
}

// UT-CFG-05: 组装组件；projection 覆盖 options.projector
func TestAssemble(t *testing.T) {
	cfg := DefaultTemplateConfig()
	cfg.OutputDir = t.TempDir()
	cfg.Options.Projector = json.RawMessage(`{"fill_gap_size":5,"punct_fold":"nfkc"}`)
	comp, set, err := Assemble(cfg)
	require.NoError(t, err)
	assert.Equal(t, 10000, set.BatchSize)
	assert.GreaterOrEqual(t, set.Concurrency, 1)
	_, ok := comp.Projector.(*pspan.Projector)
	assert.True(t, ok)

	// fill=1（projection 段）覆盖 options 中的 5：间隙 2 不合并
	src := contract.SourceSentence{Words: []string{"a"}, Spans: []contract.Span{{Type: "X", Indices: []int{0}}}}
	al := contract.Alignment{0: {0, 3}}
	tags, err := comp.Projector.Project(src, []string{"p", "q", "r", "s"}, al)
	require.NoError(t, err)
	assert.Equal(t, []string{"B-X", "O", "O", "O"}, tags)

	cfg.Options.Projector = json.RawMessage(`[1]`)
	_, _, err = Assemble(cfg)
	require.Error(t, err)

	cfg = DefaultTemplateConfig()
	cfg.Options.Writer = json.RawMessage(`{}`)
	_, _, err = Assemble(cfg)
	require.ErrorIs(t, err, contract.ErrPathInvalid)
}

func TestPatchRaw(t *testing.T) {
	out, err := patchRaw(nil, map[string]any{"a": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(out))
	out, err = patchRaw(json.RawMessage(`{"a":0,"b":"x"}`), map[string]any{"a": true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":true,"b":"x"}`, string(out))
	same, err := patchRaw(json.RawMessage(`{"k":1}`), nil)
	require.NoError(t, err)
	assert.Equal(t, `{"k":1}`, string(same))
}

// UT-CFG-06: 显式作业与语料发现合并
func TestJobs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.awesome.dev.talp"), nil, 0o644))
	cfg := DefaultTemplateConfig()
	cfg.Corpus.AlignmentsDir = dir
	cfg.Corpus.Methods = []string{"awesome"}
	cfg.Corpus.Name = "c"
	cfg.Corpus.Splits = map[string]plan.Split{"dev": {Source: "s", Target: "t"}}
	cfg.Jobs = []Job{{Source: "a", Target: "b", Alignment: "c", Output: "x.tsv"}}
	jobs, err := Jobs(cfg)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, pipeline.Job{Name: "job0", Source: "a", Target: "b", Alignment: "c", Output: "x.tsv"}, jobs[0])
	assert.Equal(t, contract.ArtifactID("c.awesome.dev.tsv"), jobs[1].Output)
}

// 模板可往返 JSON 且满足严格解码
func TestTemplateRoundTrip(t *testing.T) {
	b, err := json.MarshalIndent(DefaultTemplateConfig(), "", "  ")
	require.NoError(t, err)
	cfg, err := LoadJSON(b)
	require.NoError(t, err)
	require.NoError(t, Validate(Merge(Defaults(), cfg)))
}
