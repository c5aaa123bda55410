package monitor

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	queriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geokd_queries_total",
		Help: "Total spatial queries by kind",
	}, []string{"kind"})
	queryDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geokd_query_duration_ms",
		Help:    "Spatial query duration in milliseconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50, 100},
	}, []string{"kind"})
	mutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geokd_mutations_total",
		Help: "Total tree mutations by kind",
	}, []string{"kind"})
	skippedLinesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geokd_csv_skipped_lines_total",
		Help: "Malformed CSV lines dropped during import",
	})
	treeRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "geokd_tree_records",
		Help: "Records currently indexed",
	})
	treeHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "geokd_tree_height",
		Help: "Height of the current KD-tree",
	})
)

func init() {
	prometheus.MustRegister(queriesTotal)
	prometheus.MustRegister(queryDurationMs)
	prometheus.MustRegister(mutationsTotal)
	prometheus.MustRegister(skippedLinesTotal)
	prometheus.MustRegister(treeRecords)
	prometheus.MustRegister(treeHeight)
}

// Handler 暴露已注册的指标，挂载在 /metrics
func Handler() http.Handler { return promhttp.Handler() }

// WorkloadStats 进程内计数，同时镜像到 Prometheus 指标
type WorkloadStats struct {
	NearestCount uint64
	RangeCount   uint64
	LookupCount  uint64
	InsertCount  uint64
	RebuildCount uint64
	SkippedLines uint64
}

func NewWorkloadStats() *WorkloadStats {
	return &WorkloadStats{}
}

func observe(kind string, start time.Time) {
	queriesTotal.WithLabelValues(kind).Inc()
	queryDurationMs.WithLabelValues(kind).Observe(float64(time.Since(start).Microseconds()) / 1000)
}

func (ws *WorkloadStats) RecordNearest(start time.Time) {
	atomic.AddUint64(&ws.NearestCount, 1)
	observe("nearest", start)
}

func (ws *WorkloadStats) RecordRange(start time.Time) {
	atomic.AddUint64(&ws.RangeCount, 1)
	observe("range", start)
}

func (ws *WorkloadStats) RecordLookup(start time.Time) {
	atomic.AddUint64(&ws.LookupCount, 1)
	observe("lookup", start)
}

func (ws *WorkloadStats) RecordInsert(balanced bool) {
	atomic.AddUint64(&ws.InsertCount, 1)
	if balanced {
		mutationsTotal.WithLabelValues("insert_balanced").Inc()
		return
	}
	mutationsTotal.WithLabelValues("insert_raw").Inc()
}

func (ws *WorkloadStats) RecordRebuild() {
	atomic.AddUint64(&ws.RebuildCount, 1)
	mutationsTotal.WithLabelValues("rebuild").Inc()
}

func (ws *WorkloadStats) RecordSkipped(n int) {
	if n <= 0 {
		return
	}
	atomic.AddUint64(&ws.SkippedLines, uint64(n))
	skippedLinesTotal.Add(float64(n))
}

// SetShape 记录当前树的规模与高度
func (ws *WorkloadStats) SetShape(records, height int) {
	treeRecords.Set(float64(records))
	treeHeight.Set(float64(height))
}

// Snapshot 返回一致读取的计数副本
func (ws *WorkloadStats) Snapshot() WorkloadStats {
	return WorkloadStats{
		NearestCount: atomic.LoadUint64(&ws.NearestCount),
		RangeCount:   atomic.LoadUint64(&ws.RangeCount),
		LookupCount:  atomic.LoadUint64(&ws.LookupCount),
		InsertCount:  atomic.LoadUint64(&ws.InsertCount),
		RebuildCount: atomic.LoadUint64(&ws.RebuildCount),
		SkippedLines: atomic.LoadUint64(&ws.SkippedLines),
	}
}

func (ws *WorkloadStats) GetReadWriteRatio() float64 {
	s := ws.Snapshot()
	reads := s.NearestCount + s.RangeCount + s.LookupCount
	writes := s.InsertCount + s.RebuildCount

	if writes == 0 {
		if reads > 0 {
			return 100.0
		}
		return 0.0
	}
	return float64(reads) / float64(writes)
}
