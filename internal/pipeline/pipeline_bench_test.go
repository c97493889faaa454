package pipeline

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"testing"

	"spanproj/pkg/contract"
)

// discardWriter 丢弃所有输出，避免磁盘开销。
type discardWriter struct{}

func (discardWriter) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	_, err := io.Copy(io.Discard, r)
	return err
}

// BenchmarkPipeline 测试完整流水线（内存输入）的吞吐。
func BenchmarkPipeline(b *testing.B) {
	in := synth(20000)
	for _, c := range []int{1, runtime.NumCPU()} {
		b.Run(fmt.Sprintf("C=%d", c), func(b *testing.B) {
			comp := components(b, in, discardWriter{})
			set := Settings{BatchSize: 2000, Concurrency: c}
			ctx := context.Background()
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := Run(ctx, comp, set, []Job{basicJob}, nil); err != nil {
					b.Fatalf("运行失败: %v", err)
				}
			}
		})
	}
}
