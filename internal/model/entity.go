package model

import "time"

// UnassignedTeam 无团队 mentor 的兜底团队
const UnassignedTeam = "Unassigned"

// DateLayout 周期日期格式
const DateLayout = "2006-01-02"

// Team 团队
type Team struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Mentor 被跟踪的人员；ExternalID 为规范化姓名
type Mentor struct {
	ID          string    `json:"id"`
	ExternalID  string    `json:"externalId"`
	DisplayName string    `json:"displayName"`
	TeamID      string    `json:"teamId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// MetricRecord 持久化的 mentor 周期指标
type MetricRecord struct {
	ID          string    `json:"id"`
	MentorID    string    `json:"mentorId"`
	TeamID      string    `json:"teamId"`
	PeriodDate  time.Time `json:"periodDate"`
	WeekOfMonth int       `json:"weekOfMonth"`
	Checksum    string    `json:"checksum"`

	MetricValues

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ImportRun 一次导入运行的审计记录
type ImportRun struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"` // upload/folder/cli
	Files      []string       `json:"files"`
	Totals     ReportTotals   `json:"totals"`
	Errors     []string       `json:"errors"`
	Coverage   map[string]int `json:"coverage"`
	DurationMs int64          `json:"durationMs"`
	CreatedAt  time.Time      `json:"createdAt"`
}
