// Package telemetry 导入流水线的 Prometheus 指标
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsTotal 按来源与结果统计的行数
	RowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cmpulse",
			Subsystem: "ingest",
			Name:      "rows_total",
			Help:      "Rows seen by source transforms, by outcome",
		},
		[]string{"source", "outcome"},
	)

	// FilesTotal 按来源与状态统计的文件数
	FilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cmpulse",
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "Files processed by ingestion runs, by status",
		},
		[]string{"source", "status"},
	)

	// RecordsTotal 持久化结果
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cmpulse",
			Subsystem: "persist",
			Name:      "records_total",
			Help:      "Merged metric records by persistence outcome",
		},
		[]string{"outcome"},
	)

	// RunDuration 导入运行耗时
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cmpulse",
			Subsystem: "ingest",
			Name:      "run_duration_seconds",
			Help:      "Duration of ingestion runs in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"trigger", "status"},
	)

	// RunsInFlight 正在执行的导入
	RunsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cmpulse",
			Subsystem: "ingest",
			Name:      "runs_in_flight",
			Help:      "Number of ingestion runs currently executing",
		},
	)
)

// RecordFile 记录单个文件的转换结果
func RecordFile(source, status string, accepted, rejected int) {
	FilesTotal.WithLabelValues(source, status).Inc()
	if accepted > 0 {
		RowsTotal.WithLabelValues(source, "accepted").Add(float64(accepted))
	}
	if rejected > 0 {
		RowsTotal.WithLabelValues(source, "rejected").Add(float64(rejected))
	}
}

// RecordPersist 记录持久化计数
func RecordPersist(created, updated, skipped, failed int) {
	RecordsTotal.WithLabelValues("created").Add(float64(created))
	RecordsTotal.WithLabelValues("updated").Add(float64(updated))
	RecordsTotal.WithLabelValues("skipped_duplicate").Add(float64(skipped))
	RecordsTotal.WithLabelValues("failed").Add(float64(failed))
}

// RecordRun 记录一次导入运行
func RecordRun(trigger, status string, durationSeconds float64) {
	RunDuration.WithLabelValues(trigger, status).Observe(durationSeconds)
}
