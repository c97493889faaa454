package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "spanproj/internal/config"
	"spanproj/internal/diag"
	"spanproj/internal/pipeline"
	"spanproj/internal/report"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errb bytes.Buffer
	code := execute(context.Background(), args, &out, &errb)
	return code, out.String(), errb.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

// 最小三元组：两句
func fixture(t *testing.T, dir string) (src, tgt, aln string) {
	src = writeFile(t, dir, "en.conll", "John B-PER\nSmith I-PER\nvisited O\nParis B-LOC\n.\tO\n\nHello O\n\n")
	tgt = writeFile(t, dir, "de.txt", "John Smith besuchte Paris .\nHallo\n")
	aln = writeFile(t, dir, "de.talp", "0-0 1-1 2-2 3-3 4-4\n0-0\n")
	return
}

func TestVersion(t *testing.T) {
	code, out, _ := runCLI(t, "version")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "spanproj dev\n", out)
}

// UT-CLI-01: init-config 生成模板，不覆盖
func TestInitConfig(t *testing.T) {
	dir := t.TempDir()
	code, out, _ := runCLI(t, "init-config", dir)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "config.json")
	cfg, err := cfgpkg.LoadFile(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	require.NoError(t, cfgpkg.Validate(cfgpkg.Merge(cfgpkg.Defaults(), cfg)))
	env, err := os.ReadFile(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Contains(t, string(env), "SPANPROJ_FILL_GAP_SIZE=\n")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("{}"), 0o644))
	code, out, _ = runCLI(t, "init-config", dir)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "跳过")
	b, _ := os.ReadFile(filepath.Join(dir, "config.json"))
	assert.Equal(t, "{}", string(b))
}

func TestInitConfigYAML(t *testing.T) {
	dir := t.TempDir()
	code, _, _ := runCLI(t, "init-config", "--format", "yaml", dir)
	require.Equal(t, exitOK, code)
	cfg, err := cfgpkg.LoadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	require.NotNil(t, cfg.Corpus)
	assert.Equal(t, []string{"fast_align", "simalign"}, cfg.Corpus.Methods)

	code, _, errOut := runCLI(t, "init-config", "--format", "toml", dir)
	assert.Equal(t, exitConfig, code)
	assert.Contains(t, errOut, "toml")
}

// UT-CLI-02: project 单作业端到端
func TestProject(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	src, tgt, aln := fixture(t, dir)
	outPath := filepath.Join(dir, "out", "de.tsv")
	manifest := filepath.Join(dir, "out", "manifest.json")
	code, out, errOut := runCLI(t, "project", "--status=false",
		"--source", src, "--target", tgt, "--alignment", aln, "--output", outPath,
		"--manifest", manifest, "--metrics-file", filepath.Join(dir, "m.prom"), "--concurrency", "2")
	require.Equal(t, exitOK, code, errOut)
	got, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "John B-PER\nSmith I-PER\nbesuchte O\nParis B-LOC\n. O\n\nHallo O\n\n", string(got))
	assert.Contains(t, out, outPath)

	m, err := report.Read(manifest)
	require.NoError(t, err)
	require.True(t, m.OK)
	require.Len(t, m.Outputs, 1)
	assert.Equal(t, int64(2), m.Outputs[0].Sentences)
	assert.Len(t, m.Outputs[0].BLAKE3, 64)

	prom, err := os.ReadFile(filepath.Join(dir, "m.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), `spanproj_sentences_total{result="projected"} 2`)
}

// UT-CLI-03: 句数不一致 → 退出码 1
func TestProjectCountMismatch(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	src, tgt, _ := fixture(t, dir)
	aln := writeFile(t, dir, "short.talp", "0-0\n")
	code, _, errOut := runCLI(t, "project", "--status=false",
		"--source", src, "--target", tgt, "--alignment", aln, "--output", filepath.Join(dir, "o", "x.tsv"))
	assert.Equal(t, exitRun, code)
	assert.Contains(t, errOut, "sentence counts differ")
	_, err := os.Stat(filepath.Join(dir, "o", "x.tsv"))
	assert.True(t, os.IsNotExist(err))
}

// UT-CLI-04: 配置错误 → 退出码 3
func TestConfigErrors(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	bad := writeFile(t, dir, "bad.json", `{"nope":1}`)
	code, _, errOut := runCLI(t, "run", "--config", bad)
	assert.Equal(t, exitConfig, code)
	assert.Contains(t, errOut, "配置解析失败")

	code, _, _ = runCLI(t, "run", "--no-such-flag")
	assert.Equal(t, exitConfig, code)

	code, _, _ = runCLI(t, "project", "--source", "a")
	assert.Equal(t, exitConfig, code)

	code, _, errOut = runCLI(t, "run", "--fill-gap-size", "-1")
	assert.Equal(t, exitConfig, code)
	assert.Contains(t, errOut, "fill_gap_size")

	// 输出目录为普通文件
	f := writeFile(t, dir, "file", "x")
	src, tgt, aln := fixture(t, dir)
	code, _, errOut = runCLI(t, "project", "--status=false", "--output-dir", f,
		"--source", src, "--target", tgt, "--alignment", aln, "--output", "o.tsv")
	assert.Equal(t, exitConfig, code)
	assert.Contains(t, errOut, "不是目录")

	// STDIN 作为作业输入：计数会耗尽输入，规划阶段即拒绝
	out := filepath.Join(dir, "stdin-out")
	code, _, errOut = runCLI(t, "project", "--status=false", "--output-dir", out,
		"--source", "-", "--target", tgt, "--alignment", aln, "--output", "x.tsv")
	assert.Equal(t, exitConfig, code)
	assert.Contains(t, errOut, "cannot be stdin")
	_, err := os.Stat(filepath.Join(out, "x.tsv"))
	assert.True(t, os.IsNotExist(err), "不应生成输出文件")
}

// UT-CLI-05: run 读取默认配置并展开语料作业
func TestRunCorpus(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeFile(t, dir, "alignments/ner.awesome.dev.talp", "0-0\n")
	writeFile(t, dir, "alignments/ner.simalign.dev.itermax.talp", "0-0\n")
	writeFile(t, dir, "config.yaml", `
batch_size: 7
options:
  writer: {output_dir: out}
corpus:
  output_name: ner
  alignments_dir: alignments
  methods: [awesome, simalign]
  splits:
    dev: {source: en.conll, target: de.txt}
`)
	var got []pipeline.Job
	var gotSet pipeline.Settings
	orig := pipelineRun
	pipelineRun = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, jobs []pipeline.Job, logger *diag.Logger) ([]pipeline.Result, error) {
		got, gotSet = jobs, set
		return nil, nil
	}
	defer func() { pipelineRun = orig }()

	code, _, errOut := runCLI(t, "run", "--status=false", "--concurrency", "3")
	require.Equal(t, exitOK, code, errOut)
	require.Len(t, got, 2)
	assert.Equal(t, "awesome.dev", got[0].Name)
	assert.Equal(t, filepath.Join("alignments", "ner.simalign.dev.itermax.talp"), got[1].Alignment)
	assert.Equal(t, 7, gotSet.BatchSize)
	assert.Equal(t, 3, gotSet.Concurrency)
}

// UT-CLI-06: extract 输出每行一句
func TestExtract(t *testing.T) {
	dir := t.TempDir()
	src, _, _ := fixture(t, dir)
	code, out, _ := runCLI(t, "extract", "--source", src)
	require.Equal(t, exitOK, code)
	assert.Equal(t, "John Smith visited Paris .\nHello\n", out)

	dest := filepath.Join(dir, "txt", "en.txt")
	code, out, _ = runCLI(t, "extract", "--source", src, "--output", dest)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "已写出 2 句")
	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "John Smith visited Paris .\nHello\n", string(b))

	bad := writeFile(t, dir, "bad.conll", "x B-\n\n")
	code, _, errOut := runCLI(t, "extract", "--source", bad, "--output", filepath.Join(dir, "bad.txt"))
	assert.Equal(t, exitRun, code)
	assert.Contains(t, errOut, "malformed")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, ".env", strings.Join([]string{
		"# comment",
		"export SPANPROJ_T_A=1",
		`SPANPROJ_T_B="x\ty"`,
		"SPANPROJ_T_C='q'",
		"SPANPROJ_T_KEEP=new",
		"broken",
	}, "\n"))
	t.Setenv("SPANPROJ_T_KEEP", "old")
	for _, k := range []string{"SPANPROJ_T_A", "SPANPROJ_T_B", "SPANPROJ_T_C"} {
		k := k
		t.Cleanup(func() { _ = os.Unsetenv(k) })
	}
	require.NoError(t, loadDotEnv(p))
	assert.Equal(t, "1", os.Getenv("SPANPROJ_T_A"))
	assert.Equal(t, "x\ty", os.Getenv("SPANPROJ_T_B"))
	assert.Equal(t, "q", os.Getenv("SPANPROJ_T_C"))
	assert.Equal(t, "old", os.Getenv("SPANPROJ_T_KEEP"))
	require.NoError(t, loadDotEnv(filepath.Join(dir, "missing")))
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent to testing.T.Chdir, Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
