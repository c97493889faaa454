package diag

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// 指标：
// - spanproj_op_total{comp,stage,result}
// - spanproj_error_total{comp,code}
// - spanproj_op_duration_ms{comp,stage}
// - spanproj_sentences_total{result}
// - spanproj_spans_dropped_total{reason}
type metricSet struct {
	reg     *prometheus.Registry
	ops     *prometheus.CounterVec
	errs    *prometheus.CounterVec
	dur     *prometheus.HistogramVec
	sents   *prometheus.CounterVec
	dropped *prometheus.CounterVec
}

var (
	metricsMu sync.RWMutex
	metrics   = newMetricSet()
)

func newMetricSet() *metricSet {
	m := &metricSet{
		reg: prometheus.NewRegistry(),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spanproj", Name: "op_total", Help: "Component operations by result.",
		}, []string{"comp", "stage", "result"}),
		errs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spanproj", Name: "error_total", Help: "Errors by component and class.",
		}, []string{"comp", "code"}),
		dur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "spanproj", Name: "op_duration_ms", Help: "Stage duration in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"comp", "stage"}),
		sents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spanproj", Name: "sentences_total", Help: "Sentences processed by result.",
		}, []string{"result"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spanproj", Name: "spans_dropped_total", Help: "Projected spans discarded, by reason.",
		}, []string{"reason"}),
	}
	m.reg.MustRegister(m.ops, m.errs, m.dur, m.sents, m.dropped)
	return m
}

func current() *metricSet {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return metrics
}

// ResetMetrics 以空白计数器替换全部指标（每次运行或测试开始时调用）。
func ResetMetrics() {
	metricsMu.Lock()
	metrics = newMetricSet()
	metricsMu.Unlock()
}

// Registry 返回当前指标注册表。
func Registry() *prometheus.Registry { return current().reg }

// IncOp 累加操作计数（result=success|error）。
func IncOp(comp, stage, result string) {
	current().ops.WithLabelValues(comp, stage, result).Inc()
}

// IncError 按分类累加错误计数。
func IncError(comp, code string) {
	current().errs.WithLabelValues(comp, code).Inc()
}

// ObserveDuration 记录阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	current().dur.WithLabelValues(comp, stage).Observe(float64(durMS))
}

// AddSentences 累加句子计数（result=projected|empty|skipped）。
func AddSentences(result string, n int) {
	if n > 0 {
		current().sents.WithLabelValues(result).Add(float64(n))
	}
}

// SpanDropped 累加被丢弃的 span 数；满足投影器的 Observer 接口。
type SpanDropped struct{}

func (SpanDropped) SpanDropped(reason string, n int) {
	current().dropped.WithLabelValues(reason).Add(float64(n))
}

// WriteMetricsFile 以 Prometheus textfile 格式写出当前指标（原子替换）。
func WriteMetricsFile(path string) error {
	return prometheus.WriteToTextfile(path, Registry())
}
