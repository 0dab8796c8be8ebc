package models

import (
	"time"

	"github.com/kendall-kelly/memorial-diamonds-api/enums"
	"github.com/kendall-kelly/memorial-diamonds-api/statemachine"
)

// StageProgress tracks one production stage of one order
type StageProgress struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	OrderID     uint              `gorm:"not null;uniqueIndex:idx_order_stage;index" json:"order_id"`
	StageID     string            `gorm:"not null;size:32;uniqueIndex:idx_order_stage" json:"stage_id"`
	StageName   string            `gorm:"not null" json:"stage_name"`
	StageOrder  int               `gorm:"not null" json:"stage_order"`
	Status      enums.StageStatus `gorm:"not null;default:'pending'" json:"status"`
	StartedAt   *time.Time        `json:"started_at"`   // set once on entering in_progress
	CompletedAt *time.Time        `json:"completed_at"` // set once on entering completed
	Notes       *string           `gorm:"type:text" json:"notes"`
	Operator    string            `json:"operator"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// TableName specifies the table name for the StageProgress model
func (StageProgress) TableName() string {
	return "order_progress"
}

// ToStage converts the record into the state machine's view of it
func (p StageProgress) ToStage() statemachine.Stage {
	return statemachine.Stage{
		ID:     p.StageID,
		Name:   p.StageName,
		Order:  p.StageOrder,
		Status: p.Status,
	}
}

// ProgressOf validates an order's stage records and builds a statemachine.Progress
func ProgressOf(records []StageProgress) (statemachine.Progress, error) {
	stages := make([]statemachine.Stage, len(records))
	for i, record := range records {
		stages[i] = record.ToStage()
	}
	return statemachine.NewProgress(stages)
}
