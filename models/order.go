package models

import (
	"time"

	"github.com/kendall-kelly/memorial-diamonds-api/enums"
)

// Order represents a memorial diamond order and its derived production state
type Order struct {
	ID                  uint              `gorm:"primaryKey" json:"id"`
	OrderNumber         string            `gorm:"uniqueIndex;not null;size:32" json:"order_number"`
	CustomerName        string            `gorm:"not null;index" json:"customer_name"`
	CustomerPhone       string            `gorm:"not null;index;size:32" json:"customer_phone"`
	CustomerEmail       *string           `json:"customer_email"`
	DiamondType         enums.DiamondType `gorm:"not null" json:"diamond_type"`
	DiamondSize         enums.DiamondSize `gorm:"not null" json:"diamond_size"`
	SpecialRequirements *string           `gorm:"type:text" json:"special_requirements"`
	Status              enums.OrderStatus `gorm:"not null;default:'pending';index" json:"order_status"`
	ProgressPercentage  int               `gorm:"not null;default:0" json:"progress_percentage"` // derived from stage progress, 0..100
	CurrentStage        string            `json:"current_stage"`                                 // derived, see statemachine.CurrentStageName
	EstimatedCompletion *time.Time        `json:"estimated_completion"`
	Notes               *string           `gorm:"type:text" json:"notes"`
	CreatedBy           string            `json:"created_by"`
	IsDeleted           bool              `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedAt           *time.Time        `json:"deleted_at,omitempty"` // set together with IsDeleted; rows are never removed
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
	StageProgress       []StageProgress   `gorm:"foreignKey:OrderID" json:"-"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}
