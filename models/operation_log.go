package models

import (
	"time"

	"gorm.io/datatypes"
)

// Operation names recorded in the audit trail
const (
	OperationCreateOrder      = "create_order"
	OperationUpdateOrder      = "update_order"
	OperationCancelOrder      = "cancel_order"
	OperationDeleteOrder      = "delete_order"
	OperationStartStage       = "start_stage"
	OperationCompleteStage    = "complete_stage"
	OperationUploadMedia      = "upload_media"
	OperationDeleteMedia      = "delete_media"
	OperationSendNotification = "send_notification"
)

// OperationLog is an append-only audit record of a change to an order
type OperationLog struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	OrderID     uint           `gorm:"not null;index" json:"order_id"`
	OrderNumber string         `gorm:"index" json:"order_number"`
	Operation   string         `gorm:"not null;index" json:"operation"`
	Operator    string         `json:"operator"`
	Description string         `json:"description"`
	Details     datatypes.JSON `json:"details"`
	CreatedAt   time.Time      `json:"created_at"`
}

// TableName specifies the table name for the OperationLog model
func (OperationLog) TableName() string {
	return "operation_logs"
}

// AllModels lists every model for auto-migration
func AllModels() []any {
	return []any{
		&ProductionStage{},
		&Order{},
		&StageProgress{},
		&Media{},
		&OperationLog{},
	}
}
