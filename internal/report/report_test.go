package report

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spanproj/internal/pipeline"
	"spanproj/pkg/contract"
)

type prefixResolver string

func (p prefixResolver) Resolve(id contract.ArtifactID) (string, error) {
	if id == "bad" {
		return "", contract.ErrPathInvalid
	}
	return string(p) + "/" + string(id), nil
}

func sample() []pipeline.Result {
	return []pipeline.Result{
		{Job: pipeline.Job{Name: "a", Source: "s", Target: "t", Alignment: "al", Output: "a.tsv"},
			Sentences: 12345, Batches: 2, Empty: 1, Bytes: 10, Digest: strings.Repeat("ab", 32), Duration: 1500 * time.Millisecond},
		{Job: pipeline.Job{Name: "b", Output: "bad"}, Sentences: 1, Batches: 1},
	}
}

// UT-RPT-01: 清单字段与落盘
func TestManifestRoundTrip(t *testing.T) {
	set := pipeline.Settings{BatchSize: 10, Concurrency: 2}
	m := Build("cid", time.Now(), set, sample(), nil, prefixResolver("/out"))
	require.True(t, m.OK)
	require.Len(t, m.Outputs, 2)
	assert.Equal(t, "/out/a.tsv", m.Outputs[0].Path)
	assert.Empty(t, m.Outputs[1].Path)
	assert.Equal(t, int64(1500), m.Outputs[0].DurMS)

	p := filepath.Join(t.TempDir(), "sub", "manifest.json")
	require.NoError(t, Write(p, m))
	got, err := Read(p)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestManifestError(t *testing.T) {
	m := Build("cid", time.Now(), pipeline.Settings{}, nil, errors.New("boom"), nil)
	assert.False(t, m.OK)
	assert.Equal(t, "boom", m.Error)
	assert.NotNil(t, m.Outputs)
}

// UT-RPT-02: 摘要按英文分组格式化数字
func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, Build("c", time.Now(), pipeline.Settings{}, sample(), nil, prefixResolver("/o")))
	out := buf.String()
	assert.Contains(t, out, "输出文件 (2):")
	assert.Contains(t, out, "/o/a.tsv  句子=12,345")
	assert.Contains(t, out, "blake3=abababababababab\n")
	assert.Contains(t, out, "  bad  句子=1")

	buf.Reset()
	PrintSummary(&buf, Manifest{})
	assert.Equal(t, "未生成输出文件\n", buf.String())
}
