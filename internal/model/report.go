package model

import (
	"fmt"
	"time"
)

// RejectedRow 被拒绝的行
type RejectedRow struct {
	File   string         `json:"file"`
	Row    int            `json:"row"`
	Reason string         `json:"reason"`
	Data   map[string]any `json:"data,omitempty"`
}

// SourceReport 单个来源的导入统计
type SourceReport struct {
	Source           SourceType        `json:"source"`
	Files            []string          `json:"files"`
	Received         int               `json:"received"`
	Accepted         int               `json:"accepted"`
	Updated          int               `json:"updated"`
	SkippedDuplicate int               `json:"skippedDuplicate"`
	Rejected         []RejectedRow     `json:"rejected"`
	ColumnsDetected  []string          `json:"columnsDetected"`
	ColumnsMapped    map[string]string `json:"columnsMapped"`
}

// ReportTotals 导入汇总
type ReportTotals struct {
	FilesProcessed   int `json:"filesProcessed"`
	Received         int `json:"received"`
	Accepted         int `json:"accepted"`
	Updated          int `json:"updated"`
	Created          int `json:"created"`
	SkippedDuplicate int `json:"skippedDuplicate"`
	Rejected         int `json:"rejected"`
}

// IngestionReport 导入报告（返回给调用方）
type IngestionReport struct {
	RunID        string               `json:"runId"`
	Timestamp    time.Time            `json:"timestamp"`
	Sources      []SourceReport       `json:"sources"`
	Totals       ReportTotals         `json:"totals"`
	Coverage     map[string]int       `json:"coverage"`
	MentorCount  int                  `json:"mentorCount"`
	TeamCount    int                  `json:"teamCount"`
	StatusCounts map[MetricStatus]int `json:"statusCounts"`
	Invalid      []InvalidRecord      `json:"invalid,omitempty"`
	Errors       []string             `json:"errors"`
	Duration     int64                `json:"duration"` // ms
}

// InvalidRecord 校验未通过的合并记录
type InvalidRecord struct {
	Mentor string `json:"mentor"`
	Reason string `json:"reason"`
}

// AddErrorf 追加一条非致命错误
func (r *IngestionReport) AddErrorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Summary 单行摘要
func (r *IngestionReport) Summary() string {
	t := r.Totals
	return fmt.Sprintf("%d file(s): received %d, accepted %d, rejected %d; created %d, updated %d, skipped %d; %d error(s)",
		t.FilesProcessed, t.Received, t.Accepted, t.Rejected, t.Created, t.Updated, t.SkippedDuplicate, len(r.Errors))
}
