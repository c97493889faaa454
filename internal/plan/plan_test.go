package plan

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spanproj/internal/pipeline"
	"spanproj/pkg/contract"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("0-0\n"), 0o644))
	return p
}

// UT-PLN-01: 已知方法使用固定后缀；未知方法走 glob
func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	fa := touch(t, dir, "ner.fast_align.train.grow_diag_final-and.talp")
	sa := touch(t, dir, "ner.simalign.train.itermax.talp")
	aw := touch(t, dir, "ner.awesome.train.talp")
	cu := touch(t, dir, "ner.custom.train.union.talp")
	touch(t, dir, "ner.fast_align.dev.grow_diag_final-and.talp")
	touch(t, dir, "ner.simalign.dev.itermax.talp")
	touch(t, dir, "ner.awesome.dev.talp")
	touch(t, dir, "ner.custom.dev.talp")

	c := Corpus{
		Name:          "ner",
		AlignmentsDir: dir,
		Methods:       []string{"fast_align", "simalign", "awesome", "custom"},
		Splits: map[string]Split{
			"dev":   {Source: "en.dev.conll", Target: "de.dev.txt"},
			"train": {Source: "en.train.conll", Target: "de.train.txt"},
		},
	}
	jobs, err := Discover(c)
	require.NoError(t, err)
	require.Len(t, jobs, 8)
	assert.Equal(t, pipeline.Job{
		Name: "fast_align.train", Source: "en.train.conll", Target: "de.train.txt",
		Alignment: fa, Output: "ner.fast_align.train.tsv",
	}, jobs[0])
	assert.Equal(t, "fast_align.dev", jobs[1].Name)
	assert.Equal(t, sa, jobs[2].Alignment)
	assert.Equal(t, aw, jobs[4].Alignment)
	assert.Equal(t, cu, jobs[6].Alignment)
	assert.Equal(t, contract.ArtifactID("ner.custom.dev.tsv"), jobs[7].Output)
}

// UT-PLN-02: 切分只给出一侧 → 前置错误
func TestDiscoverUnpaired(t *testing.T) {
	c := Corpus{Name: "x", Methods: []string{"awesome"}, Splits: map[string]Split{"test": {Source: "a"}}}
	_, err := Discover(c)
	if !errors.Is(err, contract.ErrPrecondition) {
		t.Fatalf("应返回前置错误, got %v", err)
	}
}

// UT-PLN-03: 缺失与歧义的对齐文件
func TestDiscoverMissingAndAmbiguous(t *testing.T) {
	dir := t.TempDir()
	c := Corpus{Name: "x", AlignmentsDir: dir, Methods: []string{"m"}, Splits: map[string]Split{"train": {Source: "s", Target: "t"}}}
	_, err := Discover(c)
	require.ErrorIs(t, err, contract.ErrPrecondition)
	assert.Contains(t, err.Error(), "no alignment file")

	touch(t, dir, "x.m.train.a.talp")
	touch(t, dir, "x.m.train.b.talp")
	_, err = Discover(c)
	require.ErrorIs(t, err, contract.ErrPrecondition)
	assert.Contains(t, err.Error(), "ambiguous")
}

func TestDiscoverOrderAndValidation(t *testing.T) {
	dir := t.TempDir()
	for _, s := range []string{"test", "train", "aug", "dev"} {
		touch(t, dir, "c.awesome."+s+".talp")
	}
	splits := map[string]Split{}
	for _, s := range []string{"test", "train", "aug", "dev"} {
		splits[s] = Split{Source: s + ".src", Target: s + ".tgt"}
	}
	jobs, err := Discover(Corpus{Name: "c", AlignmentsDir: dir, Methods: []string{"awesome"}, Splits: splits})
	require.NoError(t, err)
	var names []string
	for _, j := range jobs {
		names = append(names, j.Name)
	}
	assert.Equal(t, []string{"awesome.train", "awesome.dev", "awesome.test", "awesome.aug"}, names)

	_, err = Discover(Corpus{Methods: []string{"awesome"}, Splits: splits})
	require.ErrorIs(t, err, contract.ErrPrecondition)
	_, err = Discover(Corpus{Name: "c", Splits: splits})
	require.ErrorIs(t, err, contract.ErrPrecondition)
}

func TestQuoteMeta(t *testing.T) {
	assert.Equal(t, `a\[1\]\*b`, quoteMeta("a[1]*b"))
}

// UT-PLN-04: 显式作业合并、校验与输出去重
func TestJobs(t *testing.T) {
	j := pipeline.Job{Name: "a", Source: "s", Target: "t", Alignment: "a.talp", Output: "o.tsv"}
	got, err := Jobs([]pipeline.Job{j}, nil)
	require.NoError(t, err)
	assert.Equal(t, []pipeline.Job{j}, got)

	_, err = Jobs(nil, nil)
	require.ErrorIs(t, err, contract.ErrPrecondition)

	bad := j
	bad.Alignment = ""
	_, err = Jobs([]pipeline.Job{bad}, nil)
	require.ErrorIs(t, err, contract.ErrPrecondition)

	for _, field := range []string{"source", "target", "alignment"} {
		in := j
		switch field {
		case "source":
			in.Source = "-"
		case "target":
			in.Target = " - "
		case "alignment":
			in.Alignment = "-"
		}
		_, err = Jobs([]pipeline.Job{in}, nil)
		require.ErrorIs(t, err, contract.ErrPrecondition, field)
		assert.Contains(t, err.Error(), field+" cannot be stdin")
	}

	dup := j
	dup.Name = "b"
	_, err = Jobs([]pipeline.Job{j, dup}, nil)
	require.ErrorIs(t, err, contract.ErrPrecondition)
	assert.Contains(t, err.Error(), `"o.tsv"`)
}
