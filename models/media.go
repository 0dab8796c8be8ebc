package models

import (
	"time"

	"github.com/kendall-kelly/memorial-diamonds-api/enums"
)

// Media is a photo or video attached to one stage of one order
type Media struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	OrderID        uint            `gorm:"not null;index:idx_media_order_stage" json:"order_id"`
	StageID        string          `gorm:"not null;size:32;index:idx_media_order_stage" json:"stage_id"`
	StageName      string          `json:"stage_name"`
	MediaType      enums.MediaType `gorm:"not null" json:"media_type"`
	S3Key          string          `gorm:"not null" json:"-"`
	ThumbnailS3Key *string         `json:"-"`
	ContentType    string          `json:"content_type"`
	FileSize       int64           `json:"file_size"`
	Description    string          `json:"description"`
	SortOrder      int             `gorm:"not null;default:0" json:"sort_order"`
	UploadedBy     string          `json:"uploaded_by"`
	UploadedAt     time.Time       `gorm:"not null" json:"uploaded_at"`
	IsDeleted      bool            `gorm:"not null;default:false;index" json:"-"`
	DeletedAt      *time.Time      `json:"-"`
	URL            string          `gorm:"-" json:"url,omitempty"`           // computed field, presigned URL
	ThumbnailURL   string          `gorm:"-" json:"thumbnail_url,omitempty"` // computed field, presigned URL
}

// TableName specifies the table name for the Media model
func (Media) TableName() string {
	return "order_media"
}
