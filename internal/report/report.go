// Package report 生成运行清单（JSON）与终端摘要。
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"spanproj/internal/pipeline"
	"spanproj/pkg/contract"
)

// Output: 单个输出工件的摘要。
type Output struct {
	Name      string `json:"name"`
	Artifact  string `json:"artifact"`
	Path      string `json:"path,omitempty"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	Alignment string `json:"alignment"`
	Sentences int64  `json:"sentences"`
	Batches   int    `json:"batches"`
	Empty     int64  `json:"empty_source"`
	Skipped   int64  `json:"empty_target"`
	Bytes     int64  `json:"bytes"`
	BLAKE3    string `json:"blake3"`
	DurMS     int64  `json:"dur_ms"`
}

// Manifest: 一次运行的清单。Error 非空表示运行失败（Outputs 为失败前已完成的作业）。
type Manifest struct {
	CorrID      string   `json:"corr_id"`
	StartedAt   string   `json:"started_at"`
	FinishedAt  string   `json:"finished_at"`
	OK          bool     `json:"ok"`
	Error       string   `json:"error,omitempty"`
	Concurrency int      `json:"concurrency"`
	BatchSize   int      `json:"batch_size"`
	Outputs     []Output `json:"outputs"`
}

// Resolver 将工件标识映射为落盘路径（例如 fs Writer）。
type Resolver interface {
	Resolve(id contract.ArtifactID) (string, error)
}

// Build 由运行结果生成清单；res 为 nil 时不填 Path。
func Build(corrID string, start time.Time, set pipeline.Settings, results []pipeline.Result, runErr error, res Resolver) Manifest {
	m := Manifest{
		CorrID:      corrID,
		StartedAt:   start.UTC().Format(time.RFC3339),
		FinishedAt:  time.Now().UTC().Format(time.RFC3339),
		OK:          runErr == nil,
		Concurrency: set.Concurrency,
		BatchSize:   set.BatchSize,
		Outputs:     make([]Output, 0, len(results)),
	}
	if runErr != nil {
		m.Error = runErr.Error()
	}
	for _, r := range results {
		o := Output{
			Name:      r.Job.Name,
			Artifact:  string(r.Job.Output),
			Source:    r.Job.Source,
			Target:    r.Job.Target,
			Alignment: r.Job.Alignment,
			Sentences: r.Sentences,
			Batches:   r.Batches,
			Empty:     r.Empty,
			Skipped:   r.Skipped,
			Bytes:     r.Bytes,
			BLAKE3:    r.Digest,
			DurMS:     r.Duration.Milliseconds(),
		}
		if res != nil {
			if p, err := res.Resolve(r.Job.Output); err == nil {
				o.Path = p
			}
		}
		m.Outputs = append(m.Outputs, o)
	}
	return m
}

// Write 以缩进 JSON 写出清单；先写临时文件再替换。
func Write(path string, m Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".manifest-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(append(b, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("manifest: %w", err)
	}
	return nil
}

// Read 读取清单（测试与对比用）。
func Read(path string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}

// PrintSummary 输出已生成的文件列表。
func PrintSummary(w io.Writer, m Manifest) {
	p := message.NewPrinter(language.English)
	if len(m.Outputs) == 0 {
		p.Fprintf(w, "未生成输出文件\n")
		return
	}
	p.Fprintf(w, "输出文件 (%d):\n", len(m.Outputs))
	for _, o := range m.Outputs {
		loc := o.Path
		if loc == "" {
			loc = o.Artifact
		}
		p.Fprintf(w, "  %s  句子=%d 空源=%d 空目标=%d  blake3=%s\n", loc, o.Sentences, o.Empty, o.Skipped, short(o.BLAKE3))
	}
}

func short(h string) string {
	if len(h) > 16 {
		return h[:16]
	}
	return h
}
