package model

// MetricStatus 绩效状态
type MetricStatus string

const (
	StatusAbove   MetricStatus = "ABOVE"
	StatusWarning MetricStatus = "WARNING"
	StatusBelow   MetricStatus = "BELOW"
)

// CoreMetrics 四项核心指标（目标或权重）
type CoreMetrics struct {
	CC    float64 `json:"cc" toml:"cc" validate:"gte=0"`
	SC    float64 `json:"sc" toml:"sc" validate:"gte=0"`
	UP    float64 `json:"up" toml:"up" validate:"gte=0"`
	Fixed float64 `json:"fixed" toml:"fixed" validate:"gte=0"`
}

// Sum 四项之和
func (c CoreMetrics) Sum() float64 {
	return c.CC + c.SC + c.UP + c.Fixed
}

// ScoringConfig 全局评分配置（月度目标、权重、阈值）
type ScoringConfig struct {
	Targets          CoreMetrics `json:"targets" toml:"targets"`
	Weights          CoreMetrics `json:"weights" toml:"weights"`
	AboveThreshold   float64     `json:"aboveThreshold" toml:"above_threshold" validate:"gt=0"`
	WarningThreshold float64     `json:"warningThreshold" toml:"warning_threshold" validate:"gt=0,ltefield=AboveThreshold"`
}

// DefaultScoringConfig 默认评分配置
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Targets:          CoreMetrics{CC: 80, SC: 15, UP: 20, Fixed: 60},
		Weights:          CoreMetrics{CC: 40, SC: 20, UP: 20, Fixed: 20},
		AboveThreshold:   100,
		WarningThreshold: 90,
	}
}

// Scorecard 单条记录的评分结果
type Scorecard struct {
	WeightedScore float64      `json:"weightedScore"`
	Status        MetricStatus `json:"status"`
	TargetsHit    int          `json:"targetsHit"`
	Targets       CoreMetrics  `json:"targets"`
}

// MentorScore 记分板中的一行：持久化指标 + 评分
type MentorScore struct {
	MentorID    string       `json:"mentorId"`
	ExternalID  string       `json:"externalId"`
	DisplayName string       `json:"displayName"`
	TeamID      string       `json:"teamId"`
	TeamName    string       `json:"teamName"`
	PeriodDate  string       `json:"periodDate"`
	WeekOfMonth int          `json:"weekOfMonth"`
	Values      MetricValues `json:"values"`
	Scorecard   Scorecard    `json:"scorecard"`
}

// Scoreboard 某周期的全部评分
type Scoreboard struct {
	PeriodDate   string               `json:"periodDate"`
	Config       ScoringConfig        `json:"config"`
	Rows         []MentorScore        `json:"rows"`
	StatusCounts map[MetricStatus]int `json:"statusCounts"`
}
