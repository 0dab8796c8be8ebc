package enums

import "fmt"

// StageStatus tracks a single production stage of an order.
type StageStatus string

const (
	StageStatusPending    StageStatus = "pending"
	StageStatusInProgress StageStatus = "in_progress"
	StageStatusCompleted  StageStatus = "completed"
)

var validStageStatuses = []StageStatus{
	StageStatusPending,
	StageStatusInProgress,
	StageStatusCompleted,
}

// String implements fmt.Stringer.
func (s StageStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StageStatus.
func (s StageStatus) IsValid() bool {
	for _, candidate := range validStageStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Label returns the display name used on the progress timeline.
func (s StageStatus) Label() string {
	switch s {
	case StageStatusPending:
		return "待处理"
	case StageStatusInProgress:
		return "进行中"
	case StageStatusCompleted:
		return "已完成"
	}
	return "未知"
}

// Icon returns the timeline glyph for the status.
func (s StageStatus) Icon() string {
	switch s {
	case StageStatusPending:
		return "⏸️"
	case StageStatusInProgress:
		return "🔄"
	case StageStatusCompleted:
		return "✅"
	}
	return "❓"
}

// ParseStageStatus converts raw input into a StageStatus.
func ParseStageStatus(value string) (StageStatus, error) {
	for _, candidate := range validStageStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stage status %q", value)
}
